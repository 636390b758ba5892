package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TFMV/bdt/version"
)

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of bdt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.GetInfo()
			_, err := fmt.Fprintf(a.stdout, "bdt %s (commit %s, built %s)\n", info.Version, info.Commit, info.BuildDate)
			return err
		},
	}
}
