package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatcommerce/commerce-service/internal/domain"
)

func TestSweepService_RunOnceExpiresOrdersAndEscalatesTickets(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	product := env.createProduct(t, "shoes", 10)
	env.createOrder(t, product.ID, 2)
	env.createOrder(t, product.ID, 3)

	env.upsertPolicy(t, domain.ModuleAppointments, SlaPolicyInput{TargetMinutesNormal: intPtr(10), EscalationMinutes: intPtr(10)})
	env.createTicket(t, domain.ModuleAppointments, "appt-1", domain.CrmPriorityNormal)
	env.createTicket(t, domain.ModuleAppointments, "appt-2", domain.CrmPriorityNormal)

	env.clock.Advance(45 * time.Minute)
	stats, err := env.sweeps.RunOnce(ctx)
	require.NoError(t, err)

	assert.False(t, stats.Skipped)
	assert.Equal(t, 2, stats.Orders.Expired)
	assert.Zero(t, stats.Orders.Failed)
	assert.Equal(t, 1, stats.Vendors)
	assert.Equal(t, 2, stats.TicketsEscalated)
	assert.Equal(t, 0, env.product(t, product.ID).ReservedStock)

	again, err := env.sweeps.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Orders.Expired)
	assert.Zero(t, again.TicketsEscalated)
}

func TestSweepService_RunOnceSkipsWhileLockHeld(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	unlock, ok, err := env.sweeps.locker.TryLock(ctx, sweepLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	stats, err := env.sweeps.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, stats.Skipped)

	require.NoError(t, unlock(ctx))
	stats, err = env.sweeps.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, stats.Skipped)
}

type recordingLocker struct {
	keys []string
}

func (l *recordingLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(context.Context) error, bool, error) {
	l.keys = append(l.keys, key)
	return func(context.Context) error { return nil }, true, nil
}

func TestSweepService_LocksUnprefixedKey(t *testing.T) {
	env := newTestEnv(t)
	locker := &recordingLocker{}
	sweeps := NewSweepService(SweepDependencies{
		Orders:     env.orders,
		Sla:        env.sla,
		TicketRepo: env.store.Tickets,
		Locker:     locker,
		Clock:      env.clock.Now,
	})

	_, err := sweeps.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sweep"}, locker.keys, "lockers add their own namespace prefix")
}
