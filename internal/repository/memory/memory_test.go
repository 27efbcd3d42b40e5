package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatcommerce/commerce-service/internal/domain"
	"github.com/chatcommerce/commerce-service/internal/repository"
)

func seedProduct(t *testing.T, store *repository.Store, stock int) *domain.Product {
	t.Helper()
	product := &domain.Product{
		ID:       "p-1",
		VendorID: "vendor-1",
		Keyword:  "shirt",
		Name:     "Shirt",
		Price:    decimal.NewFromInt(100),
		Stock:    stock,
		Active:   true,
	}
	require.NoError(t, store.Products.Create(context.Background(), product))
	return product
}

func TestProductRepository_MutateStockSerializesWriters(t *testing.T) {
	store := NewStore()
	seedProduct(t, store, 10)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.Products.MutateStock(context.Background(), "p-1", func(p *domain.Product) error {
				return p.Reserve(1)
			})
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrInsufficientStock)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	product, err := store.Products.GetByID(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, 10, product.ReservedStock)
	assert.Equal(t, 15, failed)
}

func TestProductRepository_MutateStockRejectsInconsistentWrite(t *testing.T) {
	store := NewStore()
	seedProduct(t, store, 2)

	_, _, err := store.Products.MutateStock(context.Background(), "p-1", func(p *domain.Product) error {
		p.ReservedStock = 5
		return nil
	})
	require.Error(t, err)

	product, err := store.Products.GetByID(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Zero(t, product.ReservedStock)

	_, _, err = store.Products.MutateStock(context.Background(), "missing", func(*domain.Product) error { return nil })
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestProductRepository_KeywordIsUniquePerVendor(t *testing.T) {
	store := NewStore()
	seedProduct(t, store, 1)

	err := store.Products.Create(context.Background(), &domain.Product{ID: "p-2", VendorID: "vendor-1", Keyword: "shirt"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	err = store.Products.Create(context.Background(), &domain.Product{ID: "p-3", VendorID: "vendor-2", Keyword: "shirt"})
	assert.NoError(t, err)
}

func TestOrderRepository_CompareAndSetStatus(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	order := &domain.Order{ID: "o-1", VendorID: "vendor-1", ProductID: "p-1", Status: domain.OrderStatusReserved}
	require.NoError(t, store.Orders.Create(ctx, order))

	paid := *order
	paid.Status = domain.OrderStatusPaid
	applied, err := store.Orders.CompareAndSetStatus(ctx, &paid, domain.OrderStatusReserved)
	require.NoError(t, err)
	assert.True(t, applied)

	expired := *order
	expired.Status = domain.OrderStatusExpired
	applied, err = store.Orders.CompareAndSetStatus(ctx, &expired, domain.OrderStatusReserved)
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := store.Orders.GetByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, stored.Status)
}

func TestOrderRepository_TransitionWithStockIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seedProduct(t, store, 2)
	_, _, err := store.Products.MutateStock(ctx, "p-1", func(p *domain.Product) error { return p.Reserve(2) })
	require.NoError(t, err)
	order := &domain.Order{ID: "o-1", VendorID: "vendor-1", ProductID: "p-1", Quantity: 3, Status: domain.OrderStatusReserved}
	require.NoError(t, store.Orders.Create(ctx, order))

	paid := *order
	paid.Status = domain.OrderStatusPaid
	applied, _, _, err := store.Orders.TransitionWithStock(ctx, &paid, domain.OrderStatusReserved,
		func(p *domain.Product) error { return p.Commit(paid.Quantity) })
	require.Error(t, err)
	assert.False(t, applied)

	stored, err := store.Orders.GetByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusReserved, stored.Status)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	expired := *order
	expired.Status = domain.OrderStatusExpired
	applied, _, _, err = store.Orders.TransitionWithStock(cancelled, &expired, domain.OrderStatusReserved,
		func(p *domain.Product) error { return p.Release(2) })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, applied)

	applied, before, after, err := store.Orders.TransitionWithStock(ctx, &expired, domain.OrderStatusReserved,
		func(p *domain.Product) error { return p.Release(2) })
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 2, before.ReservedStock)
	assert.Equal(t, 0, after.ReservedStock)

	applied, before, after, err = store.Orders.TransitionWithStock(ctx, &expired, domain.OrderStatusReserved,
		func(p *domain.Product) error { return p.Release(2) })
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Nil(t, before)
	assert.Nil(t, after)
}

func TestTicketRepository_ApplyChecksVersion(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	ticket := &domain.CrmTicket{
		ID: "t-1", VendorID: "vendor-1", Module: domain.ModuleTicketing, SourceRefID: "src-1",
		Status: domain.CrmStatusOpen, Version: 1, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Tickets.Create(ctx, ticket, &domain.CrmTicketHistory{
		ID: "h-1", VendorID: "vendor-1", TicketID: "t-1", Action: domain.HistoryCreated,
	}))

	first := *ticket
	first.Status = domain.CrmStatusInProgress
	applied, err := store.Tickets.Apply(ctx, &first, &domain.CrmTicketHistory{
		ID: "h-2", VendorID: "vendor-1", TicketID: "t-1", Action: domain.HistoryStatusChanged,
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(2), first.Version)

	stale := *ticket
	stale.Status = domain.CrmStatusClosed
	applied, err = store.Tickets.Apply(ctx, &stale, &domain.CrmTicketHistory{
		ID: "h-3", VendorID: "vendor-1", TicketID: "t-1", Action: domain.HistoryStatusChanged,
	})
	require.NoError(t, err)
	assert.False(t, applied)

	entries, err := store.TicketHistory.ListByTicket(ctx, "vendor-1", "t-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "h-2", entries[1].ID)

	_, err = store.Tickets.GetByID(ctx, "vendor-2", "t-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
