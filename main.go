package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"secondbrain/internal/app"
	"secondbrain/internal/config"
	"secondbrain/internal/logger"
	"secondbrain/internal/observability"
)

func main() {
	log := logger.New(os.Stdout, slog.LevelInfo)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    cfg.OTELServiceName,
		ServiceVersion: app.Version,
		OTLPEndpoint:   cfg.OTELEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()

	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	a, err := app.New(cfg, deps, log)
	if err != nil {
		return err
	}
	defer a.Close()

	stopConsumers, err := a.StartConsumers(deps)
	if err != nil {
		return err
	}
	defer stopConsumers()

	return a.Run(ctx)
}
