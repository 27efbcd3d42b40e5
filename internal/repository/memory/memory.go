// Package memory provides process-local repositories used when no database is
// configured and as the backend for service tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/chatcommerce/commerce-service/internal/domain"
	"github.com/chatcommerce/commerce-service/internal/repository"
)

type state struct {
	mu         sync.RWMutex
	products   map[string]domain.Product
	orders     map[string]domain.Order
	orderAudit []domain.OrderAuditLog
	tickets    map[string]domain.CrmTicket
	history    []domain.CrmTicketHistory
	policies   map[string]domain.CrmSlaPolicy
	agents     map[string]domain.CrmAgent
}

// NewStore returns a Store whose repositories share one in-memory state.
func NewStore() *repository.Store {
	s := &state{
		products: map[string]domain.Product{},
		orders:   map[string]domain.Order{},
		tickets:  map[string]domain.CrmTicket{},
		policies: map[string]domain.CrmSlaPolicy{},
		agents:   map[string]domain.CrmAgent{},
	}
	return &repository.Store{
		Products:      &productRepository{s},
		Orders:        &orderRepository{s},
		OrderAudit:    &orderAuditRepository{s},
		Tickets:       &ticketRepository{s},
		TicketHistory: &historyRepository{s},
		SlaPolicies:   &policyRepository{s},
		Agents:        &agentRepository{s},
	}
}

func page[T any](items []T, limit, offset, fallback int) []T {
	limit = repository.NormalizeLimit(limit, fallback)
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

type productRepository struct{ s *state }

func (r *productRepository) Create(_ context.Context, product *domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[product.ID]; ok {
		return repository.ErrConflict
	}
	for _, existing := range r.s.products {
		if existing.VendorID == product.VendorID && existing.Keyword == product.Keyword {
			return fmt.Errorf("%w: products_vendor_keyword_key", repository.ErrConflict)
		}
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	r.s.products[product.ID] = *product
	return nil
}

func (r *productRepository) Update(_ context.Context, product *domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.products[product.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, existing := range r.s.products {
		if id != product.ID && existing.VendorID == stored.VendorID && existing.Keyword == product.Keyword {
			return fmt.Errorf("%w: products_vendor_keyword_key", repository.ErrConflict)
		}
	}
	stored.Keyword = product.Keyword
	stored.Name = product.Name
	stored.Price = product.Price
	stored.Active = product.Active
	stored.UpdatedAt = time.Now().UTC()
	r.s.products[product.ID] = stored
	product.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *productRepository) GetByID(_ context.Context, id string) (*domain.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	product, ok := r.s.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &product, nil
}

func (r *productRepository) GetByKeyword(_ context.Context, vendorID, keyword string) (*domain.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	keyword = domain.NormalizeKeyword(keyword)
	for _, product := range r.s.products {
		if product.VendorID == vendorID && product.Keyword == keyword {
			return &product, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *productRepository) ListByVendor(_ context.Context, vendorID string, limit, offset int) ([]domain.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Product
	for _, product := range r.s.products {
		if product.VendorID == vendorID {
			result = append(result, product)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return page(result, limit, offset, 50), nil
}

func (r *productRepository) MutateStock(_ context.Context, productID string, fn repository.StockMutation) (*domain.Product, *domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.products[productID]
	if !ok {
		return nil, nil, repository.ErrNotFound
	}
	before := stored
	after := stored
	if err := fn(&after); err != nil {
		return nil, nil, err
	}
	if !after.StockConsistent() {
		return nil, nil, fmt.Errorf("constraint products_stock_bounds violated for product %s", productID)
	}
	after.UpdatedAt = time.Now().UTC()
	r.s.products[productID] = after
	return &before, &after, nil
}

type orderRepository struct{ s *state }

func (r *orderRepository) Create(_ context.Context, order *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[order.ID]; ok {
		return repository.ErrConflict
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	order.UpdatedAt = order.CreatedAt
	r.s.orders[order.ID] = *order
	return nil
}

func (r *orderRepository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	order, ok := r.s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &order, nil
}

func (r *orderRepository) List(_ context.Context, filter repository.OrderFilter) ([]domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Order
	for _, order := range r.s.orders {
		if order.VendorID != filter.VendorID {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, order.Status) {
			continue
		}
		result = append(result, order)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return page(result, filter.Limit, filter.Offset, 20), nil
}

func (r *orderRepository) CompareAndSetStatus(_ context.Context, order *domain.Order, expected domain.OrderStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.orders[order.ID]
	if !ok || stored.Status != expected {
		return false, nil
	}
	stored.Status = order.Status
	stored.PaymentMethod = order.PaymentMethod
	stored.PaymentReference = order.PaymentReference
	stored.ReservedAt = order.ReservedAt
	stored.PaidAt = order.PaidAt
	stored.UpdatedAt = time.Now().UTC()
	r.s.orders[order.ID] = stored
	order.UpdatedAt = stored.UpdatedAt
	return true, nil
}

// TransitionWithStock stages both writes and commits them together. A context
// cancelled before the commit discards them, as a rolled-back transaction would.
func (r *orderRepository) TransitionWithStock(ctx context.Context, order *domain.Order, expected domain.OrderStatus, fn repository.StockMutation) (bool, *domain.Product, *domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, nil, nil, err
	}
	stored, ok := r.s.orders[order.ID]
	if !ok || stored.Status != expected {
		return false, nil, nil, nil
	}
	product, ok := r.s.products[order.ProductID]
	if !ok {
		return false, nil, nil, repository.ErrNotFound
	}
	before := product
	after := product
	if err := fn(&after); err != nil {
		return false, nil, nil, err
	}
	if !after.StockConsistent() {
		return false, nil, nil, fmt.Errorf("constraint products_stock_bounds violated for product %s", order.ProductID)
	}
	if err := ctx.Err(); err != nil {
		return false, nil, nil, err
	}

	now := time.Now().UTC()
	stored.Status = order.Status
	stored.PaymentMethod = order.PaymentMethod
	stored.PaymentReference = order.PaymentReference
	stored.ReservedAt = order.ReservedAt
	stored.PaidAt = order.PaidAt
	stored.UpdatedAt = now
	after.UpdatedAt = now
	r.s.orders[order.ID] = stored
	r.s.products[order.ProductID] = after
	order.UpdatedAt = now
	return true, &before, &after, nil
}

func (r *orderRepository) ListPaidSince(_ context.Context, vendorID, clientPhone, productID string, since time.Time) ([]domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Order
	for _, order := range r.s.orders {
		if order.VendorID == vendorID && order.ClientPhone == clientPhone && order.ProductID == productID &&
			order.Status == domain.OrderStatusPaid && !order.CreatedAt.Before(since) {
			result = append(result, order)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (r *orderRepository) ListExpirable(_ context.Context, now time.Time, limit int) ([]domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Order
	for _, order := range r.s.orders {
		if order.Payable() && order.ExpiresAt != nil && order.ExpiresAt.Before(now) {
			result = append(result, order)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ExpiresAt.Before(*result[j].ExpiresAt) })
	return page(result, limit, 0, 500), nil
}

type orderAuditRepository struct{ s *state }

func (r *orderAuditRepository) Create(_ context.Context, entry *domain.OrderAuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.CreatedAt = time.Now().UTC()
	r.s.orderAudit = append(r.s.orderAudit, *entry)
	return nil
}

func (r *orderAuditRepository) ListByOrder(_ context.Context, orderID string) ([]domain.OrderAuditLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.OrderAuditLog
	for _, entry := range r.s.orderAudit {
		if entry.OrderID == orderID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type ticketRepository struct{ s *state }

func (r *ticketRepository) Create(_ context.Context, ticket *domain.CrmTicket, entry *domain.CrmTicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[ticket.ID]; ok {
		return repository.ErrConflict
	}
	for _, existing := range r.s.tickets {
		if existing.VendorID == ticket.VendorID && existing.Module == ticket.Module && existing.SourceRefID == ticket.SourceRefID {
			return fmt.Errorf("%w: crm_tickets_vendor_module_source_key", repository.ErrConflict)
		}
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}
	ticket.UpdatedAt = ticket.CreatedAt
	r.s.tickets[ticket.ID] = *ticket
	r.appendHistory(entry)
	return nil
}

func (r *ticketRepository) appendHistory(entry *domain.CrmTicketHistory) {
	if entry == nil {
		return
	}
	entry.CreatedAt = time.Now().UTC()
	r.s.history = append(r.s.history, *entry)
}

func (r *ticketRepository) GetByID(_ context.Context, vendorID, id string) (*domain.CrmTicket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticket, ok := r.s.tickets[id]
	if !ok || ticket.VendorID != vendorID {
		return nil, repository.ErrNotFound
	}
	return &ticket, nil
}

func (r *ticketRepository) GetBySource(_ context.Context, vendorID string, module domain.CrmModule, sourceRefID string) (*domain.CrmTicket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, ticket := range r.s.tickets {
		if ticket.VendorID == vendorID && ticket.Module == module && ticket.SourceRefID == sourceRefID {
			return &ticket, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *ticketRepository) List(_ context.Context, filter repository.CrmTicketFilter) ([]domain.CrmTicket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.CrmTicket
	for _, ticket := range r.s.tickets {
		if ticket.VendorID != filter.VendorID {
			continue
		}
		if filter.Module != nil && ticket.Module != *filter.Module {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, ticket.Status) {
			continue
		}
		if filter.AssignedAgentID != nil && (ticket.AssignedAgentID == nil || *ticket.AssignedAgentID != *filter.AssignedAgentID) {
			continue
		}
		if filter.EscalatedOnly && !ticket.Escalated {
			continue
		}
		result = append(result, ticket)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return page(result, filter.Limit, filter.Offset, 20), nil
}

func (r *ticketRepository) Apply(_ context.Context, ticket *domain.CrmTicket, entry *domain.CrmTicketHistory) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[ticket.ID]
	if !ok || stored.VendorID != ticket.VendorID || stored.Version != ticket.Version {
		return false, nil
	}
	stored.Status = ticket.Status
	stored.AssignedAgentID = ticket.AssignedAgentID
	stored.EscalationDueAt = ticket.EscalationDueAt
	stored.Escalated = ticket.Escalated
	stored.EscalationLevel = ticket.EscalationLevel
	stored.Notes = ticket.Notes
	stored.Version++
	stored.UpdatedAt = time.Now().UTC()
	r.s.tickets[ticket.ID] = stored
	ticket.Version = stored.Version
	ticket.UpdatedAt = stored.UpdatedAt
	r.appendHistory(entry)
	return true, nil
}

func (r *ticketRepository) ListEscalationDue(_ context.Context, vendorID string, now time.Time, limit int) ([]domain.CrmTicket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.CrmTicket
	for _, ticket := range r.s.tickets {
		if ticket.VendorID == vendorID && ticket.EscalationDue(now) {
			result = append(result, ticket)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EscalationDueAt.Before(*result[j].EscalationDueAt) })
	return page(result, limit, 0, 500), nil
}

func (r *ticketRepository) ListVendorsWithEscalationDue(_ context.Context, now time.Time) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seen := map[string]struct{}{}
	var vendors []string
	for _, ticket := range r.s.tickets {
		if !ticket.EscalationDue(now) {
			continue
		}
		if _, ok := seen[ticket.VendorID]; ok {
			continue
		}
		seen[ticket.VendorID] = struct{}{}
		vendors = append(vendors, ticket.VendorID)
	}
	sort.Strings(vendors)
	return vendors, nil
}

type historyRepository struct{ s *state }

func (r *historyRepository) ListByTicket(_ context.Context, vendorID, ticketID string, limit, offset int) ([]domain.CrmTicketHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.CrmTicketHistory
	for _, entry := range r.s.history {
		if entry.VendorID == vendorID && entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return page(result, limit, offset, 100), nil
}

type policyRepository struct{ s *state }

func policyKey(vendorID string, module domain.CrmModule) string {
	return vendorID + "/" + string(module)
}

func (r *policyRepository) Upsert(_ context.Context, policy *domain.CrmSlaPolicy) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := policyKey(policy.VendorID, policy.Module)
	now := time.Now().UTC()
	if existing, ok := r.s.policies[key]; ok {
		policy.ID = existing.ID
		policy.CreatedAt = existing.CreatedAt
	} else {
		policy.CreatedAt = now
	}
	policy.UpdatedAt = now
	r.s.policies[key] = *policy
	return nil
}

func (r *policyRepository) GetByModule(_ context.Context, vendorID string, module domain.CrmModule) (*domain.CrmSlaPolicy, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	policy, ok := r.s.policies[policyKey(vendorID, module)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &policy, nil
}

func (r *policyRepository) ListByVendor(_ context.Context, vendorID string) ([]domain.CrmSlaPolicy, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.CrmSlaPolicy
	for _, policy := range r.s.policies {
		if policy.VendorID == vendorID {
			result = append(result, policy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Module < result[j].Module })
	return result, nil
}

type agentRepository struct{ s *state }

func (r *agentRepository) Create(_ context.Context, agent *domain.CrmAgent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.agents[agent.ID]; ok {
		return repository.ErrConflict
	}
	now := time.Now().UTC()
	agent.CreatedAt = now
	agent.UpdatedAt = now
	r.s.agents[agent.ID] = *agent
	return nil
}

func (r *agentRepository) Update(_ context.Context, agent *domain.CrmAgent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.agents[agent.ID]
	if !ok || stored.VendorID != agent.VendorID {
		return repository.ErrNotFound
	}
	agent.CreatedAt = stored.CreatedAt
	agent.UpdatedAt = time.Now().UTC()
	r.s.agents[agent.ID] = *agent
	return nil
}

func (r *agentRepository) GetByID(_ context.Context, vendorID, id string) (*domain.CrmAgent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	agent, ok := r.s.agents[id]
	if !ok || agent.VendorID != vendorID {
		return nil, repository.ErrNotFound
	}
	return &agent, nil
}

func (r *agentRepository) ListByVendor(_ context.Context, vendorID string, limit int) ([]domain.CrmAgent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.CrmAgent
	for _, agent := range r.s.agents {
		if agent.VendorID == vendorID {
			result = append(result, agent)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return page(result, limit, 0, 200), nil
}
