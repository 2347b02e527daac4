package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blustreamin/corpus-engine/internal/corpus"
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Audit the corpus and repair broken index pointers",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine("cli")
		if err != nil {
			return err
		}
		defer e.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		report := e.audit.RunAudit(ctx, corpus.CategoryIDs())
		fmt.Printf("audit verdict: %s\n", report.Verdict)

		for _, line := range e.repair.Repair(ctx, report) {
			fmt.Println(line)
		}
		return nil
	},
}
