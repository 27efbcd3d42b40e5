package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/chatcommerce/commerce-service/internal/app"
	"github.com/chatcommerce/commerce-service/internal/config"
	"github.com/chatcommerce/commerce-service/internal/observability"
)

// sweep runs one expiration and escalation pass and exits, for use from an
// external cron or task scheduler.
func main() {
	exitCode := 0
	defer func() { os.Exit(exitCode) }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.App, cfg.Tracing, logger)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing(context.WithoutCancel(ctx)) //nolint:errcheck

	container, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}
	defer container.Close(logger)

	stats, err := container.Sweeps.RunOnce(ctx)
	if err != nil {
		logger.Error("sweep failed", zap.Error(err))
		exitCode = 1
		return
	}
	logger.Info("sweep complete",
		zap.Bool("skipped", stats.Skipped),
		zap.Int("orders_expired", stats.Orders.Expired),
		zap.Int("tickets_escalated", stats.TicketsEscalated))
}
