package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_ReserveReleaseCommit(t *testing.T) {
	p := &Product{Stock: 10}

	require.NoError(t, p.Reserve(3))
	assert.Equal(t, 3, p.ReservedStock)
	assert.Equal(t, 7, p.AvailableStock())

	require.NoError(t, p.Commit(3))
	assert.Equal(t, 7, p.Stock)
	assert.Equal(t, 0, p.ReservedStock)
	assert.True(t, p.StockConsistent())
}

func TestProduct_ReserveRejectsOverAllocation(t *testing.T) {
	p := &Product{Stock: 5, ReservedStock: 4}

	err := p.Reserve(2)

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 4, p.ReservedStock)
}

func TestProduct_ReleaseFloorsAtZero(t *testing.T) {
	p := &Product{Stock: 5, ReservedStock: 1}

	require.NoError(t, p.Release(4))

	assert.Equal(t, 0, p.ReservedStock)
}

func TestProduct_SetStockKeepsReservations(t *testing.T) {
	p := &Product{Stock: 5, ReservedStock: 3}

	assert.ErrorIs(t, p.SetStock(2), ErrStockBelowReserved)
	require.NoError(t, p.SetStock(3))
	assert.Equal(t, 0, p.AvailableStock())
}

func TestProduct_InvalidQuantity(t *testing.T) {
	p := &Product{Stock: 5}
	assert.ErrorIs(t, p.Reserve(0), ErrInvalidQuantity)
	assert.ErrorIs(t, p.Deduct(-1), ErrInvalidQuantity)
}

func TestAmountMatches(t *testing.T) {
	unit := decimal.NewFromInt(500)

	assert.True(t, AmountMatches(2, unit, decimal.NewFromInt(1000)))
	assert.True(t, AmountMatches(2, unit, decimal.RequireFromString("1000.01")))
	assert.False(t, AmountMatches(2, unit, decimal.NewFromInt(999)))
	assert.Equal(t, "1000", ExpectedTotal(2, unit).String())
}

func TestIsValidPhoneNumber(t *testing.T) {
	assert.True(t, IsValidPhoneNumber("+221 77 123 45 67"))
	assert.True(t, IsValidPhoneNumber("221771234567"))
	assert.False(t, IsValidPhoneNumber("12345"))
	assert.False(t, IsValidPhoneNumber(""))
	assert.False(t, IsValidPhoneNumber("1234567890123456"))
}

func TestOrder_IsExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(-time.Minute)
	o := &Order{Status: OrderStatusReserved, ExpiresAt: &expires}

	assert.True(t, o.IsExpired(now))
	assert.False(t, o.CanModify(now))

	o.ExpiresAt = nil
	assert.False(t, o.IsExpired(now))
	assert.True(t, o.CanModify(now))
}
