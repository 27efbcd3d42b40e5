package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chatcommerce/commerce-service/internal/domain"
	"github.com/chatcommerce/commerce-service/internal/events"
	"github.com/chatcommerce/commerce-service/internal/observability"
	"github.com/chatcommerce/commerce-service/internal/repository"
	apperrors "github.com/chatcommerce/commerce-service/pkg/util/errorutil"
)

const (
	defaultReservationTTL  = 30 * time.Minute
	defaultDuplicateWindow = 30 * time.Second
)

// OrderService drives the chat order lifecycle:
// pending -> reserved -> paid | expired | cancelled.
type OrderService struct {
	orders          repository.OrderRepository
	audit           repository.OrderAuditRepository
	products        repository.ProductRepository
	ledger          *InventoryLedger
	dispatcher      events.Dispatcher
	metrics         *observability.Metrics
	logger          *zap.Logger
	clock           Clock
	reservationTTL  time.Duration
	duplicateWindow time.Duration
}

// OrderDependencies bundles collaborators for the order service.
type OrderDependencies struct {
	OrderRepo       repository.OrderRepository
	AuditRepo       repository.OrderAuditRepository
	ProductRepo     repository.ProductRepository
	Ledger          *InventoryLedger
	Dispatcher      events.Dispatcher
	Metrics         *observability.Metrics
	Logger          *zap.Logger
	Clock           Clock
	ReservationTTL  time.Duration
	DuplicateWindow time.Duration
}

// OrderCreateInput describes an order captured from a chat conversation.
type OrderCreateInput struct {
	VendorID    string
	ProductID   string
	ClientPhone string
	ClientName  string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalAmount decimal.Decimal
	ExpiresAt   *time.Time
	// DeferReservation persists the order as pending without holding stock.
	DeferReservation bool
	ChangedBy        domain.ChangedBy
}

// PaymentConfirmation carries the settlement details of a payment.
type PaymentConfirmation struct {
	Method    domain.PaymentMethod
	Reference string
	ChangedBy domain.ChangedBy
}

// PaymentResult reports the outcome of ConfirmPayment.
type PaymentResult struct {
	Order       *domain.Order
	AlreadyPaid bool
}

// ExpirationStats summarizes one expiration pass.
type ExpirationStats struct {
	Scanned int `json:"scanned"`
	Expired int `json:"expired"`
	Failed  int `json:"failed"`
}

// NewOrderService constructs the service.
func NewOrderService(deps OrderDependencies) *OrderService {
	ttl := deps.ReservationTTL
	if ttl <= 0 {
		ttl = defaultReservationTTL
	}
	window := deps.DuplicateWindow
	if window <= 0 {
		window = defaultDuplicateWindow
	}
	return &OrderService{
		orders:          deps.OrderRepo,
		audit:           deps.AuditRepo,
		products:        deps.ProductRepo,
		ledger:          deps.Ledger,
		dispatcher:      deps.Dispatcher,
		metrics:         deps.Metrics,
		logger:          loggerOrNop(deps.Logger),
		clock:           clockOrDefault(deps.Clock),
		reservationTTL:  ttl,
		duplicateWindow: window,
	}
}

// Create validates input, reserves stock unless deferred and persists the order.
func (s *OrderService) Create(ctx context.Context, input OrderCreateInput) (*domain.Order, error) {
	result, product, err := s.validateCreation(ctx, input)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, apperrors.NewValidationFailure("order validation failed", result.Errors)
	}

	now := s.clock()
	expiresAt := now.Add(s.reservationTTL)
	if input.ExpiresAt != nil {
		expiresAt = input.ExpiresAt.UTC()
	}
	order := &domain.Order{
		ID:          newID(),
		VendorID:    input.VendorID,
		ProductID:   product.ID,
		ProductName: product.Name,
		ClientPhone: domain.NormalizePhone(input.ClientPhone),
		ClientName:  strings.TrimSpace(input.ClientName),
		Quantity:    input.Quantity,
		UnitPrice:   input.UnitPrice,
		TotalAmount: input.TotalAmount,
		Status:      domain.OrderStatusPending,
		CreatedAt:   now,
		ExpiresAt:   &expiresAt,
	}

	if !input.DeferReservation {
		if _, err := s.ledger.Reserve(ctx, product.ID, order.Quantity); err != nil {
			return nil, err
		}
		order.Status = domain.OrderStatusReserved
		order.ReservedAt = &now
	}

	if err := s.orders.Create(ctx, order); err != nil {
		if order.HoldsReservation() {
			if _, relErr := s.ledger.Release(ctx, product.ID, order.Quantity); relErr != nil {
				s.logger.Error("failed to release reservation after order persist failure",
					zap.String("product_id", product.ID), zap.Int("quantity", order.Quantity), zap.Error(relErr))
			}
		}
		return nil, mapRepoError(err, "order", nil)
	}

	changedBy := changedByOrDefault(input.ChangedBy, domain.ChangedByVendor)
	s.recordAudit(ctx, order, domain.OrderAuditCreated, nil, domain.OrderStatusPending, changedBy)
	if order.HoldsReservation() {
		pending := domain.OrderStatusPending
		s.recordAudit(ctx, order, domain.OrderAuditReserved, &pending, domain.OrderStatusReserved, changedBy)
	}
	s.metrics.RecordOrderTransition(string(order.Status))
	s.publish(ctx, events.EventOrderCreated, order, nil, string(changedBy))

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("vendor_id", order.VendorID),
		zap.String("status", string(order.Status)))
	return order, nil
}

// ConfirmPayment moves the order to paid and settles stock. A second call on a
// paid order succeeds without touching stock.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID string, payment PaymentConfirmation) (*PaymentResult, error) {
	order, err := s.getByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.OrderStatusPaid {
		return &PaymentResult{Order: order, AlreadyPaid: true}, nil
	}

	result, err := s.ValidateForPayment(ctx, order)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, apperrors.NewValidationFailure("order cannot be paid", result.Errors)
	}

	previous := order.Status
	now := s.clock()
	paid := *order
	paid.Status = domain.OrderStatusPaid
	paid.PaidAt = &now
	paid.PaymentMethod = payment.Method
	paid.PaymentReference = payment.Reference

	op := ledgerOpDeduct
	if previous == domain.OrderStatusReserved {
		op = ledgerOpCommit
	}
	applied, err := s.ledger.TransitionOrder(ctx, s.orders, &paid, previous, op)
	if err != nil {
		return nil, err
	}
	if !applied {
		return s.resolveLostPayment(ctx, orderID)
	}

	// committed; follow-up writes outlive the caller
	ctx = context.WithoutCancel(ctx)
	changedBy := changedByOrDefault(payment.ChangedBy, domain.ChangedByWebhook)
	s.recordAudit(ctx, &paid, domain.OrderAuditPaymentReceived, &previous, domain.OrderStatusPaid, changedBy)
	s.metrics.RecordOrderTransition(string(domain.OrderStatusPaid))
	s.publish(ctx, events.EventOrderPaid, &paid, &previous, string(changedBy))
	return &PaymentResult{Order: &paid}, nil
}

// resolveLostPayment handles a payment whose status swap lost a race.
func (s *OrderService) resolveLostPayment(ctx context.Context, orderID string) (*PaymentResult, error) {
	current, err := s.getByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.OrderStatusPaid {
		return &PaymentResult{Order: current, AlreadyPaid: true}, nil
	}
	result := domain.NewValidationResult()
	result.Add(domain.IssueInvalidStatus, "status", "order is "+string(current.Status))
	return nil, apperrors.NewValidationFailure("order cannot be paid", result.Errors)
}

// CheckDuplicatePayment reports whether another paid order for the same client
// and product was created within the duplicate window before now. This is a
// best-effort heuristic, not an idempotency key.
func (s *OrderService) CheckDuplicatePayment(ctx context.Context, order *domain.Order) (bool, error) {
	if order == nil {
		return false, nil
	}
	since := s.clock().Add(-s.duplicateWindow)
	paid, err := s.orders.ListPaidSince(ctx, order.VendorID, order.ClientPhone, order.ProductID, since)
	if err != nil {
		return false, mapRepoError(err, "order", nil)
	}
	for _, other := range paid {
		if other.ID != order.ID {
			return true, nil
		}
	}
	return false, nil
}

// Expire moves an overdue pending or reserved order to expired and releases
// its reservation. It reports whether this call expired the order.
func (s *OrderService) Expire(ctx context.Context, order *domain.Order) (bool, error) {
	if order == nil || !order.Payable() || !order.IsExpired(s.clock()) {
		return false, nil
	}
	previous := order.Status
	expired := *order
	expired.Status = domain.OrderStatusExpired

	applied, err := s.transition(ctx, &expired, previous)
	if err != nil || !applied {
		return false, err
	}
	*order = expired

	ctx = context.WithoutCancel(ctx)
	s.recordAudit(ctx, order, domain.OrderAuditExpired, &previous, domain.OrderStatusExpired, domain.ChangedBySystem)
	s.metrics.RecordOrderTransition(string(domain.OrderStatusExpired))
	s.publish(ctx, events.EventOrderExpired, order, &previous, domain.ActorSystem)
	return true, nil
}

// ExpireDue expires every overdue order up to limit.
func (s *OrderService) ExpireDue(ctx context.Context, limit int) (ExpirationStats, error) {
	var stats ExpirationStats
	due, err := s.orders.ListExpirable(ctx, s.clock(), limit)
	if err != nil {
		return stats, mapRepoError(err, "order", nil)
	}
	stats.Scanned = len(due)
	for i := range due {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		expired, err := s.Expire(ctx, &due[i])
		if err != nil {
			stats.Failed++
			s.logger.Warn("failed to expire order", zap.String("order_id", due[i].ID), zap.Error(err))
			continue
		}
		if expired {
			stats.Expired++
		}
	}
	return stats, nil
}

// Cancel closes an open order on behalf of the vendor and frees its stock.
func (s *OrderService) Cancel(ctx context.Context, vendorID, orderID string, changedBy domain.ChangedBy) (*domain.Order, error) {
	order, err := s.Get(ctx, vendorID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.OrderStatusCancelled {
		return order, nil
	}
	if !order.Payable() {
		return nil, apperrors.NewInvalidTransition("order cannot be cancelled",
			map[string]any{"order_id": orderID, "status": order.Status})
	}

	previous := order.Status
	cancelled := *order
	cancelled.Status = domain.OrderStatusCancelled
	applied, err := s.transition(ctx, &cancelled, previous)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, apperrors.NewConflict("order was just updated, please refresh", map[string]any{"order_id": orderID})
	}

	ctx = context.WithoutCancel(ctx)
	changedBy = changedByOrDefault(changedBy, domain.ChangedByVendor)
	s.recordAudit(ctx, &cancelled, domain.OrderAuditCancelled, &previous, domain.OrderStatusCancelled, changedBy)
	s.metrics.RecordOrderTransition(string(domain.OrderStatusCancelled))
	s.publish(ctx, events.EventOrderCancelled, &cancelled, &previous, string(changedBy))
	return &cancelled, nil
}

// Get returns an order owned by vendorID.
func (s *OrderService) Get(ctx context.Context, vendorID, orderID string) (*domain.Order, error) {
	order, err := s.getByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.VendorID != vendorID {
		return nil, apperrors.NewNotFound("order", map[string]any{"order_id": orderID})
	}
	return order, nil
}

// List returns the vendor's orders, newest first.
func (s *OrderService) List(ctx context.Context, vendorID string, statuses []domain.OrderStatus, limit, offset int) ([]domain.Order, error) {
	orders, err := s.orders.List(ctx, repository.OrderFilter{
		VendorID: vendorID,
		Statuses: statuses,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, mapRepoError(err, "order", nil)
	}
	return orders, nil
}

// AuditTrail returns the recorded changes of an order.
func (s *OrderService) AuditTrail(ctx context.Context, vendorID, orderID string) ([]domain.OrderAuditLog, error) {
	if _, err := s.Get(ctx, vendorID, orderID); err != nil {
		return nil, err
	}
	entries, err := s.audit.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, mapRepoError(err, "order audit", nil)
	}
	return entries, nil
}

// transition closes an open order, releasing its reservation in the same write.
func (s *OrderService) transition(ctx context.Context, order *domain.Order, previous domain.OrderStatus) (bool, error) {
	if previous == domain.OrderStatusReserved {
		return s.ledger.TransitionOrder(ctx, s.orders, order, previous, ledgerOpRelease)
	}
	applied, err := s.orders.CompareAndSetStatus(ctx, order, previous)
	if err != nil {
		return false, mapRepoError(err, "order", map[string]any{"order_id": order.ID})
	}
	return applied, nil
}

func (s *OrderService) getByID(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, mapRepoError(err, "order", map[string]any{"order_id": orderID})
	}
	return order, nil
}

// recordAudit appends an audit entry. Failures are logged and never fail the caller.
func (s *OrderService) recordAudit(ctx context.Context, order *domain.Order, action domain.OrderAuditAction, previous *domain.OrderStatus, next domain.OrderStatus, changedBy domain.ChangedBy) {
	if s.audit == nil {
		return
	}
	entry := &domain.OrderAuditLog{
		ID:             newID(),
		OrderID:        order.ID,
		VendorID:       order.VendorID,
		Action:         action,
		PreviousStatus: previous,
		NewStatus:      next,
		ChangedBy:      changedBy,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to write order audit log",
			zap.String("order_id", order.ID), zap.String("action", string(action)), zap.Error(err))
	}
}

func (s *OrderService) publish(ctx context.Context, eventType events.EventType, order *domain.Order, previous *domain.OrderStatus, actor string) {
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:        eventType,
		VendorID:    order.VendorID,
		AggregateID: order.ID,
		Actor:       actor,
		Payload: events.OrderPayload{
			ProductID:   order.ProductID,
			ClientPhone: order.ClientPhone,
			Quantity:    order.Quantity,
			TotalAmount: order.TotalAmount,
			OldStatus:   previous,
			NewStatus:   order.Status,
		},
	})
}

func changedByOrDefault(changedBy, fallback domain.ChangedBy) domain.ChangedBy {
	if changedBy == "" {
		return fallback
	}
	return changedBy
}
