package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blustreamin/corpus-engine/internal/corpus"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit the corpus and print the reset verdict",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine("cli")
		if err != nil {
			return err
		}
		defer e.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		report := e.audit.RunAudit(ctx, corpus.CategoryIDs())
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}
