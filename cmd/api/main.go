package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/chatcommerce/commerce-service/internal/api/http"
	"github.com/chatcommerce/commerce-service/internal/api/http/handlers"
	"github.com/chatcommerce/commerce-service/internal/app"
	"github.com/chatcommerce/commerce-service/internal/auth"
	"github.com/chatcommerce/commerce-service/internal/config"
	"github.com/chatcommerce/commerce-service/internal/observability"
	"github.com/chatcommerce/commerce-service/internal/worker"
)

func main() {
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

	container, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}
	defer container.Close(logger)

	authMiddleware := auth.NewAuthMiddleware(auth.NewTokenManager(cfg.Auth.JWTSecret))

	server := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(server, logger, container.Metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, container.Postgres, container.Redis),
		Products:       handlers.NewProductsHandler(container.Products),
		Orders:         handlers.NewOrdersHandler(container.Orders, container.Payments),
		CrmTickets:     handlers.NewCrmTicketsHandler(container.Tickets, container.Sla),
		Agents:         handlers.NewAgentsHandler(container.Agents),
		Sweeps:         handlers.NewSweepsHandler(container.Sweeps),
		Metrics:        container.Metrics,
		AuthMiddleware: authMiddleware,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		return server.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return server.ShutdownWithTimeout(10 * time.Second)
	})
	if cfg.Sweep.Enabled {
		sweeper := worker.NewSweepWorker(container.Sweeps, cfg.Sweep.Interval(), logger)
		g.Go(func() error { return sweeper.Run(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped with error", zap.Error(err))
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Warn("failed to flush traces", zap.Error(err))
	}
}
