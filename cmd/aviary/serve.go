package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/casualjim/aviary/pkg/slogx"
	"github.com/casualjim/aviary/registry"
	"github.com/casualjim/aviary/server"
	"github.com/spf13/cobra"
)

func newServeCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the provider catalog over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ro.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := newLogger(cmd.ErrOrStderr(), cfg.Logging, cfg.SlogLevel())
			slog.SetDefault(logger)

			reg := registry.LoadEmbedded(
				registry.WithLogger(slogx.Named(logger, "aviary.registry", cfg.Logging.ShowTarget)),
			)
			if reg.Count() == 0 {
				return fmt.Errorf("no provider definitions could be loaded")
			}
			logger.Info("provider catalog loaded", slog.Any("catalog", reg))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(reg, cfg, server.WithLogger(logger))
			if err := srv.Run(ctx); err != nil {
				logger.Error("server stopped", slogx.Error(err))
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}
}
