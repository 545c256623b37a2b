package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/websearch-worker/internal/config"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the worker version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", config.DefaultServerName, config.DefaultVersion)
			return err
		},
	}
}
