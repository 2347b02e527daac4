package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine("cli")
		if err != nil {
			return err
		}
		defer e.Close()

		zap.S().Info("db migrated")
		return nil
	},
}
