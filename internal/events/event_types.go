package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/chatcommerce/commerce-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventProductOutOfStock      EventType = "product_out_of_stock"
	EventOrderCreated           EventType = "order_created"
	EventOrderPaid              EventType = "order_paid"
	EventOrderExpired           EventType = "order_expired"
	EventOrderCancelled         EventType = "order_cancelled"
	EventDuplicatePayment       EventType = "order_duplicate_payment_suspected"
	EventCrmTicketCreated       EventType = "crm_ticket_created"
	EventCrmTicketStatusChanged EventType = "crm_ticket_status_changed"
	EventCrmTicketAssigned      EventType = "crm_ticket_assigned"
	EventCrmTicketEscalated     EventType = "crm_ticket_escalated"
)

// AllEventTypes lists every type the service emits.
func AllEventTypes() []EventType {
	return []EventType{
		EventProductOutOfStock,
		EventOrderCreated,
		EventOrderPaid,
		EventOrderExpired,
		EventOrderCancelled,
		EventDuplicatePayment,
		EventCrmTicketCreated,
		EventCrmTicketStatusChanged,
		EventCrmTicketAssigned,
		EventCrmTicketEscalated,
	}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	VendorID    string    `json:"vendor_id"`
	AggregateID string    `json:"aggregate_id"`
	Actor       string    `json:"actor"`
	Timestamp   time.Time `json:"timestamp"`
	Payload     any       `json:"payload"`
}

// ProductOutOfStockPayload payload.
type ProductOutOfStockPayload struct {
	ProductID string `json:"product_id"`
	Keyword   string `json:"keyword"`
	Stock     int    `json:"stock"`
	Reserved  int    `json:"reserved_stock"`
}

// OrderPayload describes an order state change.
type OrderPayload struct {
	ProductID   string              `json:"product_id"`
	ClientPhone string              `json:"client_phone"`
	Quantity    int                 `json:"quantity"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	OldStatus   *domain.OrderStatus `json:"old_status,omitempty"`
	NewStatus   domain.OrderStatus  `json:"new_status"`
}

// DuplicatePaymentPayload payload.
type DuplicatePaymentPayload struct {
	ClientPhone      string `json:"client_phone"`
	ProductID        string `json:"product_id"`
	PaymentReference string `json:"payment_reference,omitempty"`
}

// CrmTicketCreatedPayload payload.
type CrmTicketCreatedPayload struct {
	Module      domain.CrmModule   `json:"module"`
	SourceRefID string             `json:"source_ref_id"`
	Priority    domain.CrmPriority `json:"priority"`
	Title       string             `json:"title"`
	SlaDueAt    *time.Time         `json:"sla_due_at,omitempty"`
}

// CrmTicketStatusChangedPayload payload.
type CrmTicketStatusChangedPayload struct {
	OldStatus domain.CrmTicketStatus `json:"old_status"`
	NewStatus domain.CrmTicketStatus `json:"new_status"`
	Reason    string                 `json:"reason,omitempty"`
}

// CrmTicketAssignedPayload payload.
type CrmTicketAssignedPayload struct {
	PreviousAgentID *string `json:"previous_agent_id,omitempty"`
	AgentID         string  `json:"agent_id"`
}

// CrmTicketEscalatedPayload payload.
type CrmTicketEscalatedPayload struct {
	Level           int        `json:"level"`
	Reason          string     `json:"reason"`
	EscalationDueAt *time.Time `json:"escalation_due_at,omitempty"`
}
