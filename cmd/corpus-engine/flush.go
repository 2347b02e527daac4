package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var flushToken string

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Delete every corpus record",
	Long: `Delete every corpus record, record group by record group.
Non-sandbox projects require --token "FLUSH <project-id>".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine("cli")
		if err != nil {
			return err
		}
		defer e.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		deleted, err := e.flush.FlushAll(ctx, flushToken, func(line string) {
			fmt.Println(line)
		}, "")
		if err != nil {
			return err
		}
		fmt.Printf("%d records deleted\n", deleted)
		return nil
	},
}

func init() {
	flushCmd.Flags().StringVar(&flushToken, "token", "", "confirmation token")
}
