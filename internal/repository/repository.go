package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatcommerce/commerce-service/internal/domain"
)

var (
	// ErrNotFound is returned when a record does not exist for the vendor.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a uniqueness constraint is violated.
	ErrConflict = errors.New("record conflicts with an existing one")
	// ErrContention is returned when a transaction lost a race and may be retried.
	ErrContention = errors.New("concurrent update contention")
)

// StockMutation mutates a locked product snapshot. Returning an error aborts the write.
type StockMutation func(p *domain.Product) error

// ProductRepository encapsulates product persistence.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	// Update persists catalog fields only; stock counters go through MutateStock.
	Update(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetByKeyword(ctx context.Context, vendorID, keyword string) (*domain.Product, error)
	ListByVendor(ctx context.Context, vendorID string, limit, offset int) ([]domain.Product, error)
	// MutateStock applies fn to the product inside one atomic read-modify-write and
	// returns the product before and after the change.
	MutateStock(ctx context.Context, productID string, fn StockMutation) (before, after *domain.Product, err error)
}

// OrderFilter captures listing parameters.
type OrderFilter struct {
	VendorID string
	Statuses []domain.OrderStatus
	Limit    int
	Offset   int
}

// OrderRepository encapsulates order persistence.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, error)
	// CompareAndSetStatus persists order's status and payment fields only if the stored
	// status still equals expected. It reports whether the write was applied.
	CompareAndSetStatus(ctx context.Context, order *domain.Order, expected domain.OrderStatus) (bool, error)
	// TransitionWithStock performs CompareAndSetStatus and applies fn to the order's
	// product in the same transaction. When the status swap does not apply nothing is
	// written and before/after are nil; any error rolls both writes back.
	TransitionWithStock(ctx context.Context, order *domain.Order, expected domain.OrderStatus, fn StockMutation) (applied bool, before, after *domain.Product, err error)
	// ListPaidSince returns paid orders for the same client and product created at or after since.
	ListPaidSince(ctx context.Context, vendorID, clientPhone, productID string, since time.Time) ([]domain.Order, error)
	// ListExpirable returns pending or reserved orders whose ExpiresAt is before now.
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]domain.Order, error)
}

// OrderAuditRepository stores order audit entries.
type OrderAuditRepository interface {
	Create(ctx context.Context, entry *domain.OrderAuditLog) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.OrderAuditLog, error)
}

// CrmTicketFilter captures ticket search parameters.
type CrmTicketFilter struct {
	VendorID        string
	Module          *domain.CrmModule
	Statuses        []domain.CrmTicketStatus
	AssignedAgentID *string
	EscalatedOnly   bool
	Limit           int
	Offset          int
}

// CrmTicketRepository encapsulates ticket persistence. Every write carries the
// history entry describing it and both are persisted atomically.
type CrmTicketRepository interface {
	Create(ctx context.Context, ticket *domain.CrmTicket, entry *domain.CrmTicketHistory) error
	GetByID(ctx context.Context, vendorID, id string) (*domain.CrmTicket, error)
	GetBySource(ctx context.Context, vendorID string, module domain.CrmModule, sourceRefID string) (*domain.CrmTicket, error)
	List(ctx context.Context, filter CrmTicketFilter) ([]domain.CrmTicket, error)
	// Apply persists the mutable fields of ticket if the stored version equals
	// ticket.Version, bumping the version and appending entry. It reports whether
	// the write was applied.
	Apply(ctx context.Context, ticket *domain.CrmTicket, entry *domain.CrmTicketHistory) (bool, error)
	// ListEscalationDue returns escalatable tickets of the vendor whose escalation window elapsed before now.
	ListEscalationDue(ctx context.Context, vendorID string, now time.Time, limit int) ([]domain.CrmTicket, error)
	// ListVendorsWithEscalationDue returns vendors owning at least one ticket due for escalation.
	ListVendorsWithEscalationDue(ctx context.Context, now time.Time) ([]string, error)
}

// CrmTicketHistoryRepository reads audit entries. Writes happen through CrmTicketRepository.
type CrmTicketHistoryRepository interface {
	ListByTicket(ctx context.Context, vendorID, ticketID string, limit, offset int) ([]domain.CrmTicketHistory, error)
}

// CrmSlaPolicyRepository stores per-module SLA policies.
type CrmSlaPolicyRepository interface {
	// Upsert inserts or replaces the policy keyed by (VendorID, Module).
	Upsert(ctx context.Context, policy *domain.CrmSlaPolicy) error
	GetByModule(ctx context.Context, vendorID string, module domain.CrmModule) (*domain.CrmSlaPolicy, error)
	ListByVendor(ctx context.Context, vendorID string) ([]domain.CrmSlaPolicy, error)
}

// CrmAgentRepository stores back-office agents.
type CrmAgentRepository interface {
	Create(ctx context.Context, agent *domain.CrmAgent) error
	Update(ctx context.Context, agent *domain.CrmAgent) error
	GetByID(ctx context.Context, vendorID, id string) (*domain.CrmAgent, error)
	ListByVendor(ctx context.Context, vendorID string, limit int) ([]domain.CrmAgent, error)
}

// Store bundles every repository the services depend on.
type Store struct {
	Products      ProductRepository
	Orders        OrderRepository
	OrderAudit    OrderAuditRepository
	Tickets       CrmTicketRepository
	TicketHistory CrmTicketHistoryRepository
	SlaPolicies   CrmSlaPolicyRepository
	Agents        CrmAgentRepository
}

// NormalizeLimit applies the default page size.
func NormalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return limit
}

// NewPostgresStore wires every Postgres-backed repository onto pool.
func NewPostgresStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Products:      NewProductRepository(pool),
		Orders:        NewOrderRepository(pool),
		OrderAudit:    NewOrderAuditRepository(pool),
		Tickets:       NewCrmTicketRepository(pool),
		TicketHistory: NewCrmTicketHistoryRepository(pool),
		SlaPolicies:   NewCrmSlaPolicyRepository(pool),
		Agents:        NewCrmAgentRepository(pool),
	}
}
