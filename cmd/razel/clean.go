package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/razel-build/razel/internal/config"
)

func cleanCmd() *cobra.Command {
	var binDirFlag string

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove the output directory",
		Long:  `razel clean removes every file razel has written under the output directory.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			binDir := config.BinDir
			if binDirFlag != "" {
				binDir = binDirFlag
			}
			s, err := schedulerAt(binDir)
			if err != nil {
				return err
			}
			s.Clean()
			fmt.Println("removed", binDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&binDirFlag, "bin-dir", "", "override the output directory name")
	return cmd
}
