package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/chatcommerce/commerce-service/internal/domain"
	"github.com/chatcommerce/commerce-service/internal/events"
	"github.com/chatcommerce/commerce-service/internal/observability"
	"github.com/chatcommerce/commerce-service/internal/repository"
	apperrors "github.com/chatcommerce/commerce-service/pkg/util/errorutil"
)

const (
	ledgerOpReserve = "reserve"
	ledgerOpRelease = "release"
	ledgerOpCommit  = "commit"
	ledgerOpDeduct  = "deduct"
	ledgerOpAdjust  = "adjust"
)

// InventoryLedger is the only writer of product stock counters. Every
// operation is a single atomic read-modify-write retried on contention.
type InventoryLedger struct {
	products   repository.ProductRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	maxRetries uint64
}

// LedgerDependencies bundles collaborators for the ledger.
type LedgerDependencies struct {
	ProductRepo repository.ProductRepository
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	MaxRetries  int
}

// NewInventoryLedger constructs the ledger.
func NewInventoryLedger(deps LedgerDependencies) *InventoryLedger {
	retries := deps.MaxRetries
	if retries <= 0 {
		retries = 5
	}
	return &InventoryLedger{
		products:   deps.ProductRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     loggerOrNop(deps.Logger),
		maxRetries: uint64(retries),
	}
}

// Reserve holds qty units. It fails with InsufficientStock when available stock is short.
func (l *InventoryLedger) Reserve(ctx context.Context, productID string, qty int) (*domain.Product, error) {
	return l.mutate(ctx, ledgerOpReserve, productID, qty, func(p *domain.Product) error { return p.Reserve(qty) })
}

// Release drops a reservation, never below zero.
func (l *InventoryLedger) Release(ctx context.Context, productID string, qty int) (*domain.Product, error) {
	return l.mutate(ctx, ledgerOpRelease, productID, qty, func(p *domain.Product) error { return p.Release(qty) })
}

// Commit converts a reservation into a stock deduction.
func (l *InventoryLedger) Commit(ctx context.Context, productID string, qty int) (*domain.Product, error) {
	return l.mutate(ctx, ledgerOpCommit, productID, qty, func(p *domain.Product) error { return p.Commit(qty) })
}

// Deduct consumes unreserved stock for orders paid without a reservation.
func (l *InventoryLedger) Deduct(ctx context.Context, productID string, qty int) (*domain.Product, error) {
	return l.mutate(ctx, ledgerOpDeduct, productID, qty, func(p *domain.Product) error { return p.Deduct(qty) })
}

// AdjustStock sets the on-hand quantity. It cannot drop below reserved stock.
func (l *InventoryLedger) AdjustStock(ctx context.Context, productID string, stock int) (*domain.Product, error) {
	return l.mutate(ctx, ledgerOpAdjust, productID, stock, func(p *domain.Product) error { return p.SetStock(stock) })
}

// TransitionOrder swaps the order status from expected and applies the stock
// operation op for the order's quantity in one transaction. It reports whether
// the swap applied; when it did not, stock is untouched.
func (l *InventoryLedger) TransitionOrder(ctx context.Context, orders repository.OrderRepository, order *domain.Order, expected domain.OrderStatus, op string) (bool, error) {
	qty := order.Quantity
	var fn repository.StockMutation
	switch op {
	case ledgerOpCommit:
		fn = func(p *domain.Product) error { return p.Commit(qty) }
	case ledgerOpDeduct:
		fn = func(p *domain.Product) error { return p.Deduct(qty) }
	case ledgerOpRelease:
		fn = func(p *domain.Product) error { return p.Release(qty) }
	default:
		return false, apperrors.NewInternalError(errors.New("unsupported order stock operation " + op))
	}

	applied := false
	_, err := l.run(ctx, op, order.ProductID, qty, func(ctx context.Context) (*domain.Product, *domain.Product, error) {
		ok, before, after, err := orders.TransitionWithStock(ctx, order, expected, fn)
		applied = ok
		return before, after, err
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (l *InventoryLedger) mutate(ctx context.Context, op, productID string, qty int, fn repository.StockMutation) (*domain.Product, error) {
	return l.run(ctx, op, productID, qty, func(ctx context.Context) (*domain.Product, *domain.Product, error) {
		return l.products.MutateStock(ctx, productID, fn)
	})
}

type stockWrite func(ctx context.Context) (before, after *domain.Product, err error)

func (l *InventoryLedger) run(ctx context.Context, op, productID string, qty int, write stockWrite) (*domain.Product, error) {
	ctx, span := observability.Tracer().Start(ctx, "ledger."+op, trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.Int("ledger.quantity", qty),
	))
	defer span.End()

	var before, after *domain.Product
	attempts := 0
	operation := func() error {
		attempts++
		b, a, err := write(ctx)
		if err != nil {
			if errors.Is(err, repository.ErrContention) {
				return err
			}
			return backoff.Permanent(err)
		}
		before, after = b, a
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(l.retryPolicy(), l.maxRetries), ctx))
	l.metrics.RecordLedger(op, err)
	span.SetAttributes(attribute.Int("ledger.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if attempts > 1 {
			l.logger.Warn("ledger operation failed after retries",
				zap.String("op", op), zap.String("product_id", productID), zap.Int("attempts", attempts), zap.Error(err))
		}
		return nil, l.mapError(err, productID, qty)
	}

	if before != nil && after != nil && before.AvailableStock() > 0 && after.AvailableStock() == 0 {
		publishEvent(context.WithoutCancel(ctx), l.dispatcher, l.logger, events.Event{
			Type:        events.EventProductOutOfStock,
			VendorID:    after.VendorID,
			AggregateID: after.ID,
			Actor:       domain.ActorSystem,
			Payload: events.ProductOutOfStockPayload{
				ProductID: after.ID,
				Keyword:   after.Keyword,
				Stock:     after.Stock,
				Reserved:  after.ReservedStock,
			},
		})
	}
	return after, nil
}

func (l *InventoryLedger) retryPolicy() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 5 * time.Second
	return policy
}

func (l *InventoryLedger) mapError(err error, productID string, qty int) error {
	details := map[string]any{"product_id": productID, "quantity": qty}
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return apperrors.NewInsufficientStock(details)
	case errors.Is(err, domain.ErrInvalidQuantity):
		return apperrors.NewValidationError("quantity must be positive", details)
	case errors.Is(err, domain.ErrStockBelowReserved):
		return apperrors.NewValidationError("stock cannot drop below reserved stock", details)
	case errors.Is(err, repository.ErrContention):
		return apperrors.NewConflict("product stock is busy, please retry", details)
	}
	return mapRepoError(err, "product", details)
}
