package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "razel",
	Short: "razel — a content-addressed task orchestrator",
	Long: `razel builds a dependency DAG from a set of commands' declared
input and output files, then runs them concurrently, bounded by a worker
budget, caching results by a digest of each command's canonical action.`,
}

func init() {
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(buildCmd())
	rootCmd.AddCommand(cleanCmd())
	rootCmd.AddCommand(envCmd())
}
