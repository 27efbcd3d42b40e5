package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryIdempotencyStore()
	store.now = func() time.Time { return now }

	first, err := store.MarkProcessed(ctx, "payment:wave:ref-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := store.MarkProcessed(ctx, "payment:wave:ref-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, second)

	require.NoError(t, store.Forget(ctx, "payment:wave:ref-1"))
	again, err := store.MarkProcessed(ctx, "payment:wave:ref-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, again)

	now = now.Add(2 * time.Hour)
	afterExpiry, err := store.MarkProcessed(ctx, "payment:wave:ref-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, afterExpiry)
}

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	unlock, ok, err := locker.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, unlock(ctx))
	_, ok, err = locker.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
