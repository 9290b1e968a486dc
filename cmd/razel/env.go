package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/razel-build/razel/internal/config"
)

func envCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print razel's environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("RAZEL_BIN_DIR=%s\n", config.BinDir)
			fmt.Printf("RAZEL_CACHE_DIR=%s\n", config.CacheDir)
			fmt.Printf("GOMAXPROCS=%d\n", runtime.GOMAXPROCS(0))
			return nil
		},
	}
}
