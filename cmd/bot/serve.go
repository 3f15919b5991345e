package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	apperrors "github.com/Proton-105/budget-bot/internal/errors"
	"github.com/Proton-105/budget-bot/internal/lifecycle"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot with its metrics and health endpoints",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, v, log, err := loadConfig()
	if err != nil {
		return err
	}

	flushSentry, err := apperrors.InitSentry(cfg.Sentry, cfg.AppEnv, version)
	if err != nil {
		log.Warn("sentry disabled", slog.Any("error", err))
	}
	defer flushSentry()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting budget bot",
		slog.String("mode", cfg.Bot.Mode),
		slog.String("database", cfg.Database.Driver),
		slog.Bool("redis", cfg.Redis.Enabled()),
	)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		a.close(context.Background())
		return err
	}

	a.watchConfig(v)

	go a.bot.Start()

	serverErr := make(chan error, 1)
	go func() { serverErr <- a.server.ListenAndServe(ctx) }()

	serverRunning := true
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err = <-serverErr:
		log.Error("http server stopped unexpectedly", slog.Any("error", err))
		serverRunning = false
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if serverRunning {
		a.shutdown.Register(lifecycle.PhaseDrain, "http", func(context.Context) error { return <-serverErr })
	}

	a.probes.MarkDraining()
	shutdownErr := a.shutdown.Execute(shutdownCtx)

	log.Info("budget bot stopped")

	return errors.Join(err, shutdownErr)
}
