package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatcommerce/commerce-service/internal/events"
	apperrors "github.com/chatcommerce/commerce-service/pkg/util/errorutil"
)

func TestInventoryLedger_ConcurrentReservationsNeverOversell(t *testing.T) {
	env := newTestEnv(t)
	product := env.createProduct(t, "shoes", 5)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.ledger.Reserve(context.Background(), product.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if apperrors.HasCode(err, apperrors.CodeInsufficientStock) {
				insufficient++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 15, insufficient)
	stored := env.product(t, product.ID)
	assert.Equal(t, 5, stored.Stock)
	assert.Equal(t, 5, stored.ReservedStock)
	assert.Equal(t, 1, env.events.count(events.EventProductOutOfStock))
}

func TestInventoryLedger_ReserveCommitRelease(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	product := env.createProduct(t, "bag", 10)

	_, err := env.ledger.Reserve(ctx, product.ID, 4)
	require.NoError(t, err)
	after, err := env.ledger.Commit(ctx, product.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, after.Stock)
	assert.Equal(t, 1, after.ReservedStock)

	after, err = env.ledger.Release(ctx, product.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, after.ReservedStock, "release floors at zero")
	assert.Equal(t, 7, after.AvailableStock())
}

func TestInventoryLedger_RejectsInvalidMovements(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	product := env.createProduct(t, "hat", 3)

	_, err := env.ledger.Reserve(ctx, product.ID, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = env.ledger.Reserve(ctx, product.ID, 4)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientStock))

	_, err = env.ledger.Reserve(ctx, "missing", 1)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = env.ledger.Reserve(ctx, product.ID, 2)
	require.NoError(t, err)
	_, err = env.ledger.AdjustStock(ctx, product.ID, 1)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	stored := env.product(t, product.ID)
	assert.Equal(t, 3, stored.Stock)
	assert.Equal(t, 2, stored.ReservedStock)
}

func TestInventoryLedger_OutOfStockEventOnlyOnTransition(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	product := env.createProduct(t, "cap", 2)

	_, err := env.ledger.Reserve(ctx, product.ID, 2)
	require.NoError(t, err)
	_, err = env.ledger.Commit(ctx, product.ID, 2)
	require.NoError(t, err)

	assert.Equal(t, 1, env.events.count(events.EventProductOutOfStock))
}
