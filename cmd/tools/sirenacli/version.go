package main

import (
	"github.com/spf13/cobra"

	"sirena/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			version.WriteVersionInfo(cmd.OutOrStdout())
		},
	}
}
