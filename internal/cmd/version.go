package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/taskchain/version"
)

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// Needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			if a.opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "taskchain", info.String())
			return nil
		},
	}
}
