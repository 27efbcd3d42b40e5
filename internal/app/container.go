// Package app assembles the services shared by the api and sweep binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chatcommerce/commerce-service/internal/cache"
	"github.com/chatcommerce/commerce-service/internal/config"
	"github.com/chatcommerce/commerce-service/internal/events"
	"github.com/chatcommerce/commerce-service/internal/messaging"
	"github.com/chatcommerce/commerce-service/internal/observability"
	"github.com/chatcommerce/commerce-service/internal/persistence"
	"github.com/chatcommerce/commerce-service/internal/repository"
	"github.com/chatcommerce/commerce-service/internal/repository/memory"
	"github.com/chatcommerce/commerce-service/internal/service"
	"github.com/chatcommerce/commerce-service/internal/worker"
)

// Container holds the wired infrastructure and services.
type Container struct {
	Postgres *persistence.Postgres
	Redis    *persistence.Redis
	Metrics  *observability.Metrics
	Store    *repository.Store

	Products      *service.ProductService
	Ledger        *service.InventoryLedger
	Orders        *service.OrderService
	Payments      *service.PaymentService
	Tickets       *service.CrmTicketService
	Sla           *service.SlaService
	Agents        *service.CrmAgentService
	Sweeps        *service.SweepService
	Notifications *service.NotificationService

	publisher messaging.Publisher
}

// Build connects to the configured backends and wires every service. Without
// a Postgres DSN the in-process store is used; without Redis the in-process
// idempotency store and lock.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	rds := persistence.NewRedis(cfg.Redis, logger)

	c := &Container{
		Postgres: pg,
		Redis:    rds,
		Metrics:  observability.NewMetrics(),
	}

	if pg.Enabled() {
		c.Store = repository.NewPostgresStore(pg.PoolHandle())
	} else {
		c.Store = memory.NewStore()
	}

	var (
		idempotency cache.IdempotencyStore
		locker      cache.Locker
	)
	if rds.Enabled() {
		idempotency = cache.NewRedisIdempotencyStore(rds.Client, "")
		locker = cache.NewRedisLocker(rds.Client)
	} else {
		idempotency = cache.NewMemoryIdempotencyStore()
		locker = cache.NewMemoryLocker()
	}

	dispatcher := events.NewInMemoryDispatcher()
	c.publisher = messaging.NewPublisher(cfg.Kafka, logger)
	c.Notifications = service.NewNotificationService(dispatcher, c.publisher, logger, cfg.Kafka.QueueSize)
	worker.StartNotificationWorker(c.Notifications)

	c.Ledger = service.NewInventoryLedger(service.LedgerDependencies{
		ProductRepo: c.Store.Products,
		Dispatcher:  dispatcher,
		Metrics:     c.Metrics,
		Logger:      logger,
		MaxRetries:  cfg.Orders.LedgerMaxRetries,
	})
	c.Products = service.NewProductService(c.Store.Products, c.Ledger, logger)
	c.Orders = service.NewOrderService(service.OrderDependencies{
		OrderRepo:       c.Store.Orders,
		AuditRepo:       c.Store.OrderAudit,
		ProductRepo:     c.Store.Products,
		Ledger:          c.Ledger,
		Dispatcher:      dispatcher,
		Metrics:         c.Metrics,
		Logger:          logger,
		ReservationTTL:  cfg.Orders.ReservationTTL(),
		DuplicateWindow: cfg.Orders.DuplicateWindow(),
	})
	c.Payments = service.NewPaymentService(service.PaymentDependencies{
		Orders:         c.Orders,
		Idempotency:    idempotency,
		Dispatcher:     dispatcher,
		Metrics:        c.Metrics,
		Logger:         logger,
		IdempotencyTTL: cfg.Orders.PaymentIdempotencyTTL(),
	})
	c.Sla = service.NewSlaService(service.SlaDependencies{
		PolicyRepo: c.Store.SlaPolicies,
		TicketRepo: c.Store.Tickets,
		Dispatcher: dispatcher,
		Metrics:    c.Metrics,
		Logger:     logger,
		BatchSize:  cfg.Sweep.BatchSize,
	})
	c.Tickets = service.NewCrmTicketService(service.CrmTicketDependencies{
		TicketRepo:  c.Store.Tickets,
		HistoryRepo: c.Store.TicketHistory,
		AgentRepo:   c.Store.Agents,
		Sla:         c.Sla,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	c.Agents = service.NewCrmAgentService(c.Store.Agents, logger)
	c.Sweeps = service.NewSweepService(service.SweepDependencies{
		Orders:      c.Orders,
		Sla:         c.Sla,
		TicketRepo:  c.Store.Tickets,
		Locker:      locker,
		Metrics:     c.Metrics,
		Logger:      logger,
		BatchSize:   cfg.Sweep.BatchSize,
		Concurrency: cfg.Sweep.VendorConcurrency,
		LockTTL:     cfg.Sweep.LockTTL(),
	})
	return c, nil
}

// Close releases connections and flushes the event publisher.
func (c *Container) Close(logger *zap.Logger) {
	if c.Notifications != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.Notifications.Stop(ctx); err != nil {
			logger.Warn("pending events were not forwarded", zap.Error(err))
		}
		cancel()
	}
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			logger.Warn("failed to close event publisher", zap.Error(err))
		}
	}
	c.Redis.Close()
	c.Postgres.Close()
}
