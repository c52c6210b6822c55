package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/perpsignal/crashwatch/internal/config"
)

func Execute(ctx context.Context) error {
	var configPath string

	root := &cobra.Command{
		Use:   "crashwatch",
		Short: "Crash-risk scoring and monitoring for perpetual futures",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(monitorCmd(ctx, &configPath))
	root.AddCommand(backtestCmd(ctx, &configPath))
	root.AddCommand(serveCmd(ctx, &configPath))
	return root.ExecuteContext(ctx)
}

// loadConfig resolves configuration and applies the configured log
// level globally.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return config.Config{}, fmt.Errorf("bad log level %q: %w", cfg.Log.Level, err)
	}
	zerolog.SetGlobalLevel(level)
	log.Info().Str("config", path).Strs("symbols", cfg.Symbols).Msg("configuration loaded")
	return cfg, nil
}
