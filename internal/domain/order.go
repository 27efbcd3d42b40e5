package domain

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus enumerates lifecycle states for chat orders.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusReserved  OrderStatus = "reserved"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusExpired   OrderStatus = "expired"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusReserved, OrderStatusPaid, OrderStatusExpired, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusPaid || s == OrderStatusExpired || s == OrderStatusCancelled
}

// PaymentMethod identifies how an order was settled.
type PaymentMethod string

const (
	PaymentMethodWave        PaymentMethod = "wave"
	PaymentMethodOrangeMoney PaymentMethod = "orange_money"
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodMTNMomo     PaymentMethod = "mtn_momo"
	PaymentMethodMoovMoney   PaymentMethod = "moov_money"
	PaymentMethodFreeMoney   PaymentMethod = "free_money"
	PaymentMethodPayDunya    PaymentMethod = "paydunya"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodWave, PaymentMethodOrangeMoney, PaymentMethodCard, PaymentMethodCash,
		PaymentMethodMTNMomo, PaymentMethodMoovMoney, PaymentMethodFreeMoney, PaymentMethodPayDunya:
		return true
	}
	return false
}

// AmountTolerance is the accepted gap between totalAmount and quantity x unitPrice.
var AmountTolerance = decimal.NewFromFloat(0.01)

var phonePattern = regexp.MustCompile(`^\d{10,15}$`)
var nonDigits = regexp.MustCompile(`\D`)

// NormalizePhone strips every non-digit character.
func NormalizePhone(phone string) string {
	return nonDigits.ReplaceAllString(phone, "")
}

// IsValidPhoneNumber checks the digits-only form against the 10-15 digit rule.
func IsValidPhoneNumber(phone string) bool {
	return phone != "" && phonePattern.MatchString(NormalizePhone(phone))
}

// ExpectedTotal returns quantity x unitPrice.
func ExpectedTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// AmountMatches reports whether total is within AmountTolerance of quantity x unitPrice.
func AmountMatches(quantity int, unitPrice, total decimal.Decimal) bool {
	return total.Sub(ExpectedTotal(quantity, unitPrice)).Abs().LessThanOrEqual(AmountTolerance)
}

// Order is a purchase placed through a chat conversation.
type Order struct {
	ID               string
	VendorID         string
	ProductID        string
	ProductName      string
	ClientPhone      string
	ClientName       string
	Quantity         int
	UnitPrice        decimal.Decimal
	TotalAmount      decimal.Decimal
	Status           OrderStatus
	PaymentMethod    PaymentMethod
	PaymentReference string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ReservedAt       *time.Time
	ExpiresAt        *time.Time
	PaidAt           *time.Time
}

// IsExpired reports whether the payment window has closed at now.
func (o *Order) IsExpired(now time.Time) bool {
	return o.ExpiresAt != nil && now.After(*o.ExpiresAt)
}

// Payable reports whether the order may still move to paid.
func (o *Order) Payable() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusReserved
}

// CanModify mirrors the dashboard rule: open and not past its window.
func (o *Order) CanModify(now time.Time) bool {
	return o.Payable() && !o.IsExpired(now)
}

// HoldsReservation reports whether stock is currently reserved for this order.
func (o *Order) HoldsReservation() bool {
	return o.Status == OrderStatusReserved
}

// OrderAuditAction enumerates audit log actions for orders.
type OrderAuditAction string

const (
	OrderAuditCreated         OrderAuditAction = "created"
	OrderAuditReserved        OrderAuditAction = "reserved"
	OrderAuditPaymentReceived OrderAuditAction = "payment_received"
	OrderAuditCancelled       OrderAuditAction = "cancelled"
	OrderAuditExpired         OrderAuditAction = "expired"
)

// ChangedBy identifies the origin of an order change.
type ChangedBy string

const (
	ChangedBySystem  ChangedBy = "system"
	ChangedByWebhook ChangedBy = "webhook"
	ChangedByVendor  ChangedBy = "vendor"
	ChangedByAdmin   ChangedBy = "admin"
)

// OrderAuditLog is an append-only record of an order change.
type OrderAuditLog struct {
	ID             string
	OrderID        string
	VendorID       string
	Action         OrderAuditAction
	PreviousStatus *OrderStatus
	NewStatus      OrderStatus
	ChangedBy      ChangedBy
	CreatedAt      time.Time
}
