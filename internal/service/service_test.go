package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chatcommerce/commerce-service/internal/cache"
	"github.com/chatcommerce/commerce-service/internal/domain"
	"github.com/chatcommerce/commerce-service/internal/events"
	"github.com/chatcommerce/commerce-service/internal/repository"
	"github.com/chatcommerce/commerce-service/internal/repository/memory"
)

const testVendor = "vendor-1"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordedEvents) count(eventType events.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, event := range r.events {
		if event.Type == eventType {
			n++
		}
	}
	return n
}

type testEnv struct {
	store    *repository.Store
	clock    *fakeClock
	events   *recordedEvents
	ledger   *InventoryLedger
	products *ProductService
	orders   *OrderService
	payments *PaymentService
	sla      *SlaService
	tickets  *CrmTicketService
	agents   *CrmAgentService
	sweeps   *SweepService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	recorded := &recordedEvents{}
	dispatcher := events.NewInMemoryDispatcher()
	for _, eventType := range events.AllEventTypes() {
		dispatcher.Subscribe(eventType, recorded.handle)
	}

	env := &testEnv{store: store, clock: clock, events: recorded}
	env.ledger = NewInventoryLedger(LedgerDependencies{
		ProductRepo: store.Products,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	env.products = NewProductService(store.Products, env.ledger, logger)
	env.orders = NewOrderService(OrderDependencies{
		OrderRepo:   store.Orders,
		AuditRepo:   store.OrderAudit,
		ProductRepo: store.Products,
		Ledger:      env.ledger,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Clock:       clock.Now,
	})
	env.payments = NewPaymentService(PaymentDependencies{
		Orders:      env.orders,
		Idempotency: cache.NewMemoryIdempotencyStore(),
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	env.sla = NewSlaService(SlaDependencies{
		PolicyRepo: store.SlaPolicies,
		TicketRepo: store.Tickets,
		Dispatcher: dispatcher,
		Logger:     logger,
		Clock:      clock.Now,
	})
	env.tickets = NewCrmTicketService(CrmTicketDependencies{
		TicketRepo:  store.Tickets,
		HistoryRepo: store.TicketHistory,
		AgentRepo:   store.Agents,
		Sla:         env.sla,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Clock:       clock.Now,
	})
	env.agents = NewCrmAgentService(store.Agents, logger)
	env.sweeps = NewSweepService(SweepDependencies{
		Orders:     env.orders,
		Sla:        env.sla,
		TicketRepo: store.Tickets,
		Locker:     cache.NewMemoryLocker(),
		Logger:     logger,
		Clock:      clock.Now,
	})
	return env
}

func (e *testEnv) createProduct(t *testing.T, keyword string, stock int) *domain.Product {
	t.Helper()
	product, err := e.products.Create(context.Background(), testVendor, ProductInput{
		Keyword: keyword,
		Name:    "Product " + keyword,
		Price:   decimal.NewFromInt(500),
		Stock:   stock,
	})
	require.NoError(t, err)
	return product
}

func (e *testEnv) product(t *testing.T, id string) *domain.Product {
	t.Helper()
	product, err := e.store.Products.GetByID(context.Background(), id)
	require.NoError(t, err)
	return product
}

func (e *testEnv) createOrder(t *testing.T, productID string, qty int) *domain.Order {
	t.Helper()
	order, err := e.orders.Create(context.Background(), orderInput(productID, qty))
	require.NoError(t, err)
	return order
}

func orderInput(productID string, qty int) OrderCreateInput {
	return OrderCreateInput{
		VendorID:    testVendor,
		ProductID:   productID,
		ClientPhone: "+221 77 123 45 67",
		ClientName:  "Awa",
		Quantity:    qty,
		UnitPrice:   decimal.NewFromInt(500),
		TotalAmount: decimal.NewFromInt(int64(500 * qty)),
	}
}

// cancellingOrders cancels the caller's context after the stock change has been
// staged and before it is committed.
type cancellingOrders struct {
	repository.OrderRepository
	cancel context.CancelFunc
}

func (c *cancellingOrders) TransitionWithStock(ctx context.Context, order *domain.Order, expected domain.OrderStatus, fn repository.StockMutation) (bool, *domain.Product, *domain.Product, error) {
	return c.OrderRepository.TransitionWithStock(ctx, order, expected, func(p *domain.Product) error {
		err := fn(p)
		c.cancel()
		return err
	})
}

func (e *testEnv) ordersCancelledMidWrite(cancel context.CancelFunc) *OrderService {
	return NewOrderService(OrderDependencies{
		OrderRepo:   &cancellingOrders{OrderRepository: e.store.Orders, cancel: cancel},
		AuditRepo:   e.store.OrderAudit,
		ProductRepo: e.store.Products,
		Ledger:      e.ledger,
		Logger:      zap.NewNop(),
		Clock:       e.clock.Now,
	})
}
