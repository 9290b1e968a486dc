// Command razel is a content-addressed build/task orchestrator: point it
// at a task manifest (CSV, JSONL, or textproto) and it builds the
// producer/consumer dependency graph and runs the described commands
// bounded by a worker budget.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
