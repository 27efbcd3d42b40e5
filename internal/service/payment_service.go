package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chatcommerce/commerce-service/internal/cache"
	"github.com/chatcommerce/commerce-service/internal/domain"
	"github.com/chatcommerce/commerce-service/internal/events"
	"github.com/chatcommerce/commerce-service/internal/observability"
	apperrors "github.com/chatcommerce/commerce-service/pkg/util/errorutil"
)

const defaultPaymentIdempotencyTTL = 24 * time.Hour

// PaymentService turns gateway webhooks into order payment confirmations.
type PaymentService struct {
	orders      *OrderService
	idempotency cache.IdempotencyStore
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	ttl         time.Duration
}

// PaymentDependencies bundles collaborators for the payment service.
type PaymentDependencies struct {
	Orders         *OrderService
	Idempotency    cache.IdempotencyStore
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	IdempotencyTTL time.Duration
}

// PaymentWebhookInput is the payment confirmation sent by a gateway.
type PaymentWebhookInput struct {
	OrderID           string
	Method            domain.PaymentMethod
	Amount            decimal.Decimal
	ExternalReference string
}

// PaymentWebhookResult reports what the webhook did.
type PaymentWebhookResult struct {
	Processed          bool          `json:"processed"`
	AlreadyPaid        bool          `json:"alreadyPaid"`
	DuplicateSuspected bool          `json:"duplicateSuspected"`
	Order              *domain.Order `json:"-"`
}

// NewPaymentService constructs the service.
func NewPaymentService(deps PaymentDependencies) *PaymentService {
	ttl := deps.IdempotencyTTL
	if ttl <= 0 {
		ttl = defaultPaymentIdempotencyTTL
	}
	return &PaymentService{
		orders:      deps.Orders,
		idempotency: deps.Idempotency,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      loggerOrNop(deps.Logger),
		ttl:         ttl,
	}
}

// HandleWebhook confirms the payment of an order. A replayed external
// reference is acknowledged without being processed again.
func (s *PaymentService) HandleWebhook(ctx context.Context, input PaymentWebhookInput) (result *PaymentWebhookResult, err error) {
	if err := validateWebhook(input); err != nil {
		return nil, err
	}

	key := idempotencyKey(input)
	if key != "" && s.idempotency != nil {
		fresh, markErr := s.idempotency.MarkProcessed(ctx, key, s.ttl)
		if markErr != nil {
			return nil, apperrors.NewExternalServiceError("idempotency store", markErr)
		}
		if !fresh {
			s.logger.Info("payment webhook replay ignored",
				zap.String("order_id", input.OrderID), zap.String("reference", input.ExternalReference))
			s.metrics.RecordPayment(string(input.Method), "replayed")
			return &PaymentWebhookResult{Processed: false}, nil
		}
		defer func() {
			if err == nil {
				return
			}
			if forgetErr := s.idempotency.Forget(context.WithoutCancel(ctx), key); forgetErr != nil {
				s.logger.Warn("failed to release payment idempotency key", zap.String("key", key), zap.Error(forgetErr))
			}
		}()
	}

	order, err := s.orders.getByID(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.OrderStatusPaid {
		s.metrics.RecordPayment(string(input.Method), "already_paid")
		return &PaymentWebhookResult{Processed: true, AlreadyPaid: true, Order: order}, nil
	}
	if input.Amount.Sub(order.TotalAmount).Abs().GreaterThan(domain.AmountTolerance) {
		s.metrics.RecordPayment(string(input.Method), "rejected")
		validation := domain.NewValidationResult()
		validation.Add(domain.IssueAmountMismatch, "amount",
			"paid amount "+input.Amount.String()+" does not match order total "+order.TotalAmount.String())
		return nil, apperrors.NewValidationFailure("payment amount mismatch", validation.Errors)
	}

	duplicate, err := s.orders.CheckDuplicatePayment(ctx, order)
	if err != nil {
		s.logger.Warn("duplicate payment check failed", zap.String("order_id", order.ID), zap.Error(err))
		duplicate = false
	}
	if duplicate {
		s.logger.Warn("possible duplicate payment",
			zap.String("order_id", order.ID),
			zap.String("vendor_id", order.VendorID),
			zap.String("product_id", order.ProductID))
		s.metrics.RecordPayment(string(input.Method), "duplicate_suspected")
		publishEvent(ctx, s.dispatcher, s.logger, events.Event{
			Type:        events.EventDuplicatePayment,
			VendorID:    order.VendorID,
			AggregateID: order.ID,
			Actor:       string(domain.ChangedByWebhook),
			Payload: events.DuplicatePaymentPayload{
				ClientPhone:      order.ClientPhone,
				ProductID:        order.ProductID,
				PaymentReference: input.ExternalReference,
			},
		})
	}

	confirmed, err := s.orders.ConfirmPayment(ctx, order.ID, PaymentConfirmation{
		Method:    input.Method,
		Reference: input.ExternalReference,
		ChangedBy: domain.ChangedByWebhook,
	})
	if err != nil {
		s.metrics.RecordPayment(string(input.Method), "rejected")
		return nil, err
	}
	s.metrics.RecordPayment(string(input.Method), "confirmed")
	return &PaymentWebhookResult{
		Processed:          true,
		AlreadyPaid:        confirmed.AlreadyPaid,
		DuplicateSuspected: duplicate,
		Order:              confirmed.Order,
	}, nil
}

func validateWebhook(input PaymentWebhookInput) error {
	result := domain.NewValidationResult()
	if strings.TrimSpace(input.OrderID) == "" {
		result.Add(domain.IssueMissingField, "orderId", "orderId is required")
	}
	if !input.Method.Valid() {
		result.Add(domain.IssueMissingField, "method", "unsupported payment method")
	}
	if !input.Amount.IsPositive() {
		result.Add(domain.IssueInvalidTotal, "amount", "amount must be greater than zero")
	}
	if !result.Valid {
		return apperrors.NewValidationFailure("invalid payment notification", result.Errors)
	}
	return nil
}

func idempotencyKey(input PaymentWebhookInput) string {
	ref := strings.TrimSpace(input.ExternalReference)
	if ref == "" {
		return ""
	}
	return "payment:" + string(input.Method) + ":" + ref
}
