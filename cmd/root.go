// Package cmd defines the CLI for the websearch-worker executable.
//
// The worker speaks a line-delimited JSON protocol: requests arrive on stdin,
// responses leave on stdout, and logs go to stderr. Running the root command
// with no subcommand starts serving.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	cfgFile string
	debug   bool
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "websearch-worker",
		Short: "Web search and scraping tools over a stdio JSON protocol.",
		Long: `websearch-worker exposes webSearch, fetchWebpage, extractLinks and
scrapeData to a single controlling client. Each request is one JSON object
per line on stdin; each response is one JSON object per line on stdout.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (YAML, optional)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "websearch-worker: %v\n", err)
		os.Exit(1)
	}
}
