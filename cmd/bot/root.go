package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Proton-105/budget-bot/pkg/config"
	"github.com/Proton-105/budget-bot/pkg/logger"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var flagConfig string

var rootCmd = &cobra.Command{
	Use:           "budget-bot",
	Short:         "Telegram bot tracking a personal daily budget",
	Long:          "budget-bot keeps a per-user spending budget and reports how much is left for today.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "budget-bot:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file (defaults to ./configs/$APP_ENV.yaml)")
}

// loadConfig reads the configuration and builds the process logger.
func loadConfig() (*config.Config, *viper.Viper, *slog.Logger, error) {
	if flagConfig != "" {
		if err := os.Setenv("CONFIG_FILE", flagConfig); err != nil {
			return nil, nil, nil, fmt.Errorf("set config file: %w", err)
		}
	}

	cfg, v, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	log := logger.New(*cfg).With(slog.String("version", version))
	slog.SetDefault(log)

	return cfg, v, log, nil
}
