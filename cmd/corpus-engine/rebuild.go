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

var rebuildCmd = &cobra.Command{
	Use:   "rebuild [category]",
	Short: "Rebuild snapshots from seed keywords",
	Long: `Rebuild the snapshot for one category, or for every core category in
order when none is given. Existing data is left in place; each rebuild writes
a fresh snapshot and repoints the category index.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine("cli")
		if err != nil {
			return err
		}
		defer e.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		categories := corpus.CoreCategories
		if len(args) == 1 {
			category, ok := corpus.ByID(args[0])
			if !ok {
				return fmt.Errorf("unknown category %q", args[0])
			}
			categories = []corpus.Category{category}
		}

		for _, category := range categories {
			result, err := e.rebuild.RebuildCategory(ctx, category)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s (%d keywords, %d valid)\n",
				category.ID, result.SnapshotID, result.Keywords, result.Valid)
		}
		return nil
	},
}
