package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "corpus-engine",
	Short: "Reset-rebuild orchestration engine for the keyword corpus",
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(flushCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(rebuildCmd)
}
