// Package commands implements CLI command handlers for lanepack.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/lanepack/pkg/version"
)

// NewRootCommand creates the lanepack root command with all subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lanepack",
		Short: "Lanepack - greedy lane layout for interval features",
		Long: `Lanepack stacks interval features into the lowest free lanes.

Commands:
  pack      Lay out feature files and print the resulting rectangles
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewPackCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "lanepack %s\n", version.String())

			return err
		},
	}
}
