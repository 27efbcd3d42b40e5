package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/chatcommerce/commerce-service/internal/domain"
)

// CreateOrderRequest payload. Field rules are checked by the order
// validator so that every problem is reported together.
type CreateOrderRequest struct {
	ProductID        string          `json:"productId"`
	ClientPhone      string          `json:"clientPhone"`
	ClientName       string          `json:"clientName" validate:"max=255"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	ExpiresAt        *time.Time      `json:"expiresAt"`
	DeferReservation bool            `json:"deferReservation"`
}

// ConfirmPaymentRequest payload for POST /orders/:id/payment.
type ConfirmPaymentRequest struct {
	Method    domain.PaymentMethod `json:"method" validate:"required,oneof=wave orange_money card cash mtn_momo moov_money free_money paydunya"`
	Reference string               `json:"reference" validate:"max=128"`
}

// PaymentWebhookRequest is what a gateway posts once a payment settles.
type PaymentWebhookRequest struct {
	OrderID           string               `json:"orderId" validate:"required"`
	Method            domain.PaymentMethod `json:"method" validate:"required,oneof=wave orange_money card cash mtn_momo moov_money free_money paydunya"`
	Amount            decimal.Decimal      `json:"amount"`
	ExternalReference string               `json:"externalReference" validate:"max=128"`
}

// OrderResponse describes an order.
type OrderResponse struct {
	ID               string               `json:"id"`
	VendorID         string               `json:"vendorId"`
	ProductID        string               `json:"productId"`
	ProductName      string               `json:"productName,omitempty"`
	ClientPhone      string               `json:"clientPhone"`
	ClientName       string               `json:"clientName,omitempty"`
	Quantity         int                  `json:"quantity"`
	UnitPrice        decimal.Decimal      `json:"unitPrice"`
	TotalAmount      decimal.Decimal      `json:"totalAmount"`
	Status           domain.OrderStatus   `json:"status"`
	PaymentMethod    domain.PaymentMethod `json:"paymentMethod,omitempty"`
	PaymentReference string               `json:"paymentReference,omitempty"`
	ReservedAt       *time.Time           `json:"reservedAt,omitempty"`
	ExpiresAt        *time.Time           `json:"expiresAt,omitempty"`
	PaidAt           *time.Time           `json:"paidAt,omitempty"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

// NewOrderResponse maps an order.
func NewOrderResponse(o *domain.Order) OrderResponse {
	return OrderResponse{
		ID:               o.ID,
		VendorID:         o.VendorID,
		ProductID:        o.ProductID,
		ProductName:      o.ProductName,
		ClientPhone:      o.ClientPhone,
		ClientName:       o.ClientName,
		Quantity:         o.Quantity,
		UnitPrice:        o.UnitPrice,
		TotalAmount:      o.TotalAmount,
		Status:           o.Status,
		PaymentMethod:    o.PaymentMethod,
		PaymentReference: o.PaymentReference,
		ReservedAt:       o.ReservedAt,
		ExpiresAt:        o.ExpiresAt,
		PaidAt:           o.PaidAt,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

// OrderAuditResponse describes one audit entry.
type OrderAuditResponse struct {
	ID             string                  `json:"id"`
	Action         domain.OrderAuditAction `json:"action"`
	PreviousStatus *domain.OrderStatus     `json:"previousStatus,omitempty"`
	NewStatus      domain.OrderStatus      `json:"newStatus"`
	ChangedBy      domain.ChangedBy        `json:"changedBy"`
	CreatedAt      time.Time               `json:"createdAt"`
}

// NewOrderAuditResponse maps an audit entry.
func NewOrderAuditResponse(entry *domain.OrderAuditLog) OrderAuditResponse {
	return OrderAuditResponse{
		ID:             entry.ID,
		Action:         entry.Action,
		PreviousStatus: entry.PreviousStatus,
		NewStatus:      entry.NewStatus,
		ChangedBy:      entry.ChangedBy,
		CreatedAt:      entry.CreatedAt,
	}
}
