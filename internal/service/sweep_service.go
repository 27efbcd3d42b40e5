package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chatcommerce/commerce-service/internal/cache"
	"github.com/chatcommerce/commerce-service/internal/domain"
	"github.com/chatcommerce/commerce-service/internal/observability"
	"github.com/chatcommerce/commerce-service/internal/repository"
)

const sweepLockKey = "sweep"

// SweepService runs the periodic order expiration and ticket escalation pass.
type SweepService struct {
	orders      *OrderService
	sla         *SlaService
	tickets     repository.CrmTicketRepository
	locker      cache.Locker
	metrics     *observability.Metrics
	logger      *zap.Logger
	clock       Clock
	batchSize   int
	concurrency int
	lockTTL     time.Duration
}

// SweepDependencies bundles collaborators for the sweep.
type SweepDependencies struct {
	Orders      *OrderService
	Sla         *SlaService
	TicketRepo  repository.CrmTicketRepository
	Locker      cache.Locker
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Clock       Clock
	BatchSize   int
	Concurrency int
	LockTTL     time.Duration
}

// SweepStats summarizes one sweep run.
type SweepStats struct {
	Skipped          bool            `json:"skipped"`
	Orders           ExpirationStats `json:"orders"`
	Vendors          int             `json:"vendors"`
	TicketsEscalated int             `json:"ticketsEscalated"`
	DurationMs       int64           `json:"durationMs"`
}

// NewSweepService constructs the service.
func NewSweepService(deps SweepDependencies) *SweepService {
	s := &SweepService{
		orders:      deps.Orders,
		sla:         deps.Sla,
		tickets:     deps.TicketRepo,
		locker:      deps.Locker,
		metrics:     deps.Metrics,
		logger:      loggerOrNop(deps.Logger),
		clock:       clockOrDefault(deps.Clock),
		batchSize:   deps.BatchSize,
		concurrency: deps.Concurrency,
		lockTTL:     deps.LockTTL,
	}
	if s.batchSize <= 0 {
		s.batchSize = 500
	}
	if s.concurrency <= 0 {
		s.concurrency = 4
	}
	if s.lockTTL <= 0 {
		s.lockTTL = time.Minute
	}
	return s
}

// RunOnce expires overdue orders and escalates breaching tickets of every
// vendor. Overlapping runs skip when another instance holds the lock.
func (s *SweepService) RunOnce(ctx context.Context) (stats SweepStats, err error) {
	started := time.Now()
	defer func() {
		stats.DurationMs = time.Since(started).Milliseconds()
		if !stats.Skipped {
			s.metrics.RecordSweep(err, time.Since(started))
		}
	}()

	if s.locker != nil {
		unlock, ok, lockErr := s.locker.TryLock(ctx, sweepLockKey, s.lockTTL)
		if lockErr != nil {
			s.logger.Warn("sweep lock unavailable, running unguarded", zap.Error(lockErr))
		} else if !ok {
			s.logger.Info("sweep already running elsewhere, skipping")
			stats.Skipped = true
			return stats, nil
		} else {
			defer func() {
				if unlockErr := unlock(context.WithoutCancel(ctx)); unlockErr != nil {
					s.logger.Warn("failed to release sweep lock", zap.Error(unlockErr))
				}
			}()
		}
	}

	stats.Orders, err = s.expireOrders(ctx)
	if err != nil {
		return stats, err
	}

	stats.Vendors, stats.TicketsEscalated, err = s.escalateTickets(ctx)
	if err != nil {
		return stats, err
	}

	s.logger.Info("sweep finished",
		zap.Int("orders_scanned", stats.Orders.Scanned),
		zap.Int("orders_expired", stats.Orders.Expired),
		zap.Int("orders_failed", stats.Orders.Failed),
		zap.Int("vendors", stats.Vendors),
		zap.Int("tickets_escalated", stats.TicketsEscalated))
	return stats, nil
}

func (s *SweepService) expireOrders(ctx context.Context) (ExpirationStats, error) {
	var total ExpirationStats
	for {
		batch, err := s.orders.ExpireDue(ctx, s.batchSize)
		total.Scanned += batch.Scanned
		total.Expired += batch.Expired
		total.Failed += batch.Failed
		if err != nil {
			return total, err
		}
		if batch.Scanned < s.batchSize || batch.Expired == 0 {
			return total, nil
		}
	}
}

func (s *SweepService) escalateTickets(ctx context.Context) (int, int, error) {
	vendors, err := s.tickets.ListVendorsWithEscalationDue(ctx, s.clock())
	if err != nil {
		return 0, 0, mapRepoError(err, "ticket", nil)
	}

	var (
		mu        sync.Mutex
		escalated int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, vendorID := range vendors {
		vendorID := vendorID
		g.Go(func() error {
			n, err := s.sla.RunAutoEscalation(gctx, vendorID, domain.ActorSystem)
			if err != nil {
				s.logger.Warn("vendor escalation failed", zap.String("vendor_id", vendorID), zap.Error(err))
			}
			mu.Lock()
			escalated += n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return len(vendors), escalated, err
	}
	return len(vendors), escalated, ctx.Err()
}
