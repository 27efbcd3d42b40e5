//go:build integration

package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/chatcommerce/commerce-service/internal/domain"
	"github.com/chatcommerce/commerce-service/internal/persistence"
	"github.com/chatcommerce/commerce-service/internal/repository"
)

func newPostgresStore(t *testing.T) *repository.Store {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("commerce"),
		postgres.WithUsername("commerce"),
		postgres.WithPassword("commerce"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, persistence.RunMigrations(ctx, pool, zap.NewNop()))
	return repository.NewPostgresStore(pool)
}

func TestPostgres_MutateStockUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	store := newPostgresStore(t)

	product := &domain.Product{
		ID:       uuid.NewString(),
		VendorID: "vendor-1",
		Keyword:  "shirt",
		Name:     "Shirt",
		Price:    decimal.NewFromInt(500),
		Stock:    5,
		Active:   true,
	}
	require.NoError(t, store.Products.Create(ctx, product))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := store.Products.MutateStock(ctx, product.ID, func(p *domain.Product) error {
				return p.Reserve(1)
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	stored, err := store.Products.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 5, stored.ReservedStock)
	assert.Equal(t, 5, stored.Stock)

	err = store.Products.Create(ctx, &domain.Product{
		ID: uuid.NewString(), VendorID: "vendor-1", Keyword: "shirt", Name: "Other", Price: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestPostgres_OrderStatusCompareAndSet(t *testing.T) {
	ctx := context.Background()
	store := newPostgresStore(t)

	product := &domain.Product{
		ID: uuid.NewString(), VendorID: "vendor-1", Keyword: "mug", Name: "Mug",
		Price: decimal.NewFromInt(250), Stock: 3, Active: true,
	}
	require.NoError(t, store.Products.Create(ctx, product))

	now := time.Now().UTC().Truncate(time.Microsecond)
	expires := now.Add(-time.Minute)
	order := &domain.Order{
		ID: uuid.NewString(), VendorID: "vendor-1", ProductID: product.ID, ProductName: product.Name,
		ClientPhone: "221771234567", Quantity: 1, UnitPrice: decimal.NewFromInt(250),
		TotalAmount: decimal.NewFromInt(250), Status: domain.OrderStatusReserved,
		CreatedAt: now, ReservedAt: &now, ExpiresAt: &expires,
	}
	require.NoError(t, store.Orders.Create(ctx, order))

	due, err := store.Orders.ListExpirable(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	expired := *order
	expired.Status = domain.OrderStatusExpired
	applied, err := store.Orders.CompareAndSetStatus(ctx, &expired, domain.OrderStatusReserved)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = store.Orders.CompareAndSetStatus(ctx, &expired, domain.OrderStatusReserved)
	require.NoError(t, err)
	assert.False(t, applied)

	due, err = store.Orders.ListExpirable(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestPostgres_TransitionWithStockRollsBackTogether(t *testing.T) {
	ctx := context.Background()
	store := newPostgresStore(t)

	product := &domain.Product{
		ID: uuid.NewString(), VendorID: "vendor-1", Keyword: "cap", Name: "Cap",
		Price: decimal.NewFromInt(100), Stock: 4, ReservedStock: 2, Active: true,
	}
	require.NoError(t, store.Products.Create(ctx, product))
	now := time.Now().UTC().Truncate(time.Microsecond)
	order := &domain.Order{
		ID: uuid.NewString(), VendorID: "vendor-1", ProductID: product.ID, ProductName: product.Name,
		ClientPhone: "221771234567", Quantity: 2, UnitPrice: decimal.NewFromInt(100),
		TotalAmount: decimal.NewFromInt(200), Status: domain.OrderStatusReserved,
		CreatedAt: now, ReservedAt: &now,
	}
	require.NoError(t, store.Orders.Create(ctx, order))

	paid := *order
	paid.Status = domain.OrderStatusPaid
	paid.PaidAt = &now
	applied, _, _, err := store.Orders.TransitionWithStock(ctx, &paid, domain.OrderStatusReserved,
		func(p *domain.Product) error { return p.Commit(5) })
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.False(t, applied)

	stored, err := store.Orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusReserved, stored.Status)
	assert.Nil(t, stored.PaidAt)

	applied, before, after, err := store.Orders.TransitionWithStock(ctx, &paid, domain.OrderStatusReserved,
		func(p *domain.Product) error { return p.Commit(paid.Quantity) })
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 2, before.ReservedStock)
	assert.Equal(t, 2, after.Stock)
	assert.Equal(t, 0, after.ReservedStock)

	applied, _, _, err = store.Orders.TransitionWithStock(ctx, &paid, domain.OrderStatusReserved,
		func(p *domain.Product) error { return p.Commit(paid.Quantity) })
	require.NoError(t, err)
	assert.False(t, applied)
	settled, err := store.Products.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, settled.Stock)
}

func TestPostgres_MalformedIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	store := newPostgresStore(t)

	_, err := store.Orders.GetByID(ctx, "abc")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = store.Products.GetByID(ctx, "abc")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPostgres_TicketApplyWritesHistoryAtomically(t *testing.T) {
	ctx := context.Background()
	store := newPostgresStore(t)

	escalationDue := time.Now().UTC().Add(-time.Minute)
	ticket := &domain.CrmTicket{
		ID: uuid.NewString(), VendorID: "vendor-1", Module: domain.ModuleAppointments,
		SourceRefID: "appt-1", Title: "Reschedule", Priority: domain.CrmPriorityHigh,
		Status: domain.CrmStatusOpen, EscalationDueAt: &escalationDue, EscalationMinutes: 30,
		Version: 1, CreatedAt: time.Now().UTC(),
	}
	open := domain.CrmStatusOpen
	require.NoError(t, store.Tickets.Create(ctx, ticket, &domain.CrmTicketHistory{
		ID: uuid.NewString(), VendorID: "vendor-1", TicketID: ticket.ID,
		Action: domain.HistoryCreated, Actor: domain.ActorSystem, ToStatus: &open,
	}))

	vendors, err := store.Tickets.ListVendorsWithEscalationDue(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor-1"}, vendors)

	stale := *ticket
	ticket.Escalate(time.Now().UTC())
	applied, err := store.Tickets.Apply(ctx, ticket, &domain.CrmTicketHistory{
		ID: uuid.NewString(), VendorID: "vendor-1", TicketID: ticket.ID,
		Action: domain.HistoryEscalated, Actor: domain.ActorSystem,
		FromStatus: &open, ToStatus: &open, Comment: domain.EscalationReasonSLABreach,
	})
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, int64(2), ticket.Version)

	stale.Status = domain.CrmStatusClosed
	applied, err = store.Tickets.Apply(ctx, &stale, &domain.CrmTicketHistory{
		ID: uuid.NewString(), VendorID: "vendor-1", TicketID: ticket.ID,
		Action: domain.HistoryStatusChanged, Actor: "agent-1",
	})
	require.NoError(t, err)
	assert.False(t, applied)

	history, err := store.TicketHistory.ListByTicket(ctx, "vendor-1", ticket.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.HistoryEscalated, history[1].Action)

	duplicate := *ticket
	duplicate.ID = uuid.NewString()
	err = store.Tickets.Create(ctx, &duplicate, nil)
	assert.ErrorIs(t, err, repository.ErrConflict)
}
