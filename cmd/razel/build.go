package main

import (
	"github.com/spf13/cobra"
)

// buildCmd is an alias for run: razel's task manifests describe arbitrary
// commands, not specifically compiler invocations, but "build" is the verb
// most users instinctively reach for first.
func buildCmd() *cobra.Command {
	c := runCmd()
	c.Use = "build <tasks-file>"
	c.Short = "Alias for run"
	return c
}
