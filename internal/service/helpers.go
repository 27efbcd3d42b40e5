package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatcommerce/commerce-service/internal/events"
	"github.com/chatcommerce/commerce-service/internal/repository"
	apperrors "github.com/chatcommerce/commerce-service/pkg/util/errorutil"
)

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return systemClock
	}
	return c
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// mapRepoError converts repository sentinels into API errors.
func mapRepoError(err error, resource string, details map[string]any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, details)
	case errors.Is(err, repository.ErrConflict):
		return apperrors.NewConflict(fmt.Sprintf("%s already exists", resource), details)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewInternalError(fmt.Errorf("%s: %w", resource, err))
}

func newID() string {
	return uuid.NewString()
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = newID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("aggregate_id", event.AggregateID),
			zap.Error(err))
	}
}
