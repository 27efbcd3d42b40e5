package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chatcommerce/commerce-service/internal/service"
)

// SweepWorker triggers the sweep on a fixed interval until its context ends.
type SweepWorker struct {
	sweeps   *service.SweepService
	interval time.Duration
	logger   *zap.Logger
}

// NewSweepWorker constructs the worker.
func NewSweepWorker(sweeps *service.SweepService, interval time.Duration, logger *zap.Logger) *SweepWorker {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	return &SweepWorker{sweeps: sweeps, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled. A failed run is logged and retried on the next tick.
func (w *SweepWorker) Run(ctx context.Context) error {
	w.logger.Info("sweep worker started", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sweep worker stopped")
			return nil
		case <-ticker.C:
			if _, err := w.sweeps.RunOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}
