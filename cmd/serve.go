package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/websearch-worker/internal/config"
	"github.com/JakeFAU/websearch-worker/internal/server"
)

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.debug {
		cfg.Logging.Debug = true
	}

	app, err := server.Build(cfg, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("build worker: %w", err)
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			app.Logger().Warn("close failed", zap.Error(cerr))
		}
	}()

	if err := app.Run(cmd.Context(), cmd.InOrStdin()); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
