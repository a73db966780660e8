package main

import (
	"io"
	"log/slog"
	"time"

	"github.com/casualjim/aviary/config"
	"github.com/fatih/color"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	noColor    bool
}

func newRootCmd() *cobra.Command {
	ro := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "aviary",
		Short:         "AI provider catalog server",
		Long:          "aviary serves a static catalog of AI inference providers and their models, with pricing and capability metadata.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if ro.noColor {
				color.NoColor = true
			}
		},
	}
	cmd.PersistentFlags().StringVar(&ro.configFile, "config", "", "config file (default: $AVIARY_CONFIG or ./config.{toml,yaml,json})")
	cmd.PersistentFlags().BoolVar(&ro.noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(
		newServeCmd(ro),
		newProvidersCmd(ro),
		newProviderCmd(ro),
		newCostCmd(ro),
		newSchemaCmd(),
		newValidateCmd(ro),
	)
	return cmd
}

func (ro *rootOptions) loadConfig() (config.Config, error) {
	if ro.configFile != "" {
		return config.Load(config.WithFile(ro.configFile))
	}
	return config.Load()
}

// newLogger builds the slog logger backed by zerolog.
func newLogger(w io.Writer, cfg config.LoggingConfig, level slog.Level) *slog.Logger {
	var zl zerolog.Logger
	if cfg.JSONFormat {
		zl = zerolog.New(w).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Stamp, NoColor: color.NoColor}
		zl = zerolog.New(output).With().Timestamp().Logger()
	}
	return slog.New(zeroslog.NewHandler(zl, &zeroslog.HandlerOptions{Level: level}))
}

// cliLogger is used by the inspection commands, which only report problems.
func cliLogger(cmd *cobra.Command) *slog.Logger {
	return newLogger(cmd.ErrOrStderr(), config.LoggingConfig{}, slog.LevelWarn)
}

func discardLogger() *slog.Logger {
	return slog.New(zeroslog.NewHandler(zerolog.Nop(), &zeroslog.HandlerOptions{}))
}
