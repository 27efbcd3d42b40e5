package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientStock is returned when a reservation exceeds available stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidQuantity is returned for non-positive stock movements.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrStockBelowReserved is returned when a stock adjustment would drop below held reservations.
	ErrStockBelowReserved = errors.New("stock cannot drop below reserved stock")
)

// Product is a sellable item matched by keyword in chat conversations.
type Product struct {
	ID            string
	VendorID      string
	Keyword       string
	Name          string
	Price         decimal.Decimal
	Stock         int
	ReservedStock int
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AvailableStock is the stock not held by a reservation.
func (p *Product) AvailableStock() int {
	return p.Stock - p.ReservedStock
}

// NormalizeKeyword returns the canonical keyword used for uniqueness checks.
func NormalizeKeyword(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}

// Reserve holds qty units for a pending payment.
func (p *Product) Reserve(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if p.AvailableStock() < qty {
		return ErrInsufficientStock
	}
	p.ReservedStock += qty
	return nil
}

// Release drops a reservation. ReservedStock never goes below zero.
func (p *Product) Release(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	p.ReservedStock -= qty
	if p.ReservedStock < 0 {
		p.ReservedStock = 0
	}
	return nil
}

// Commit turns a reservation into a permanent deduction.
func (p *Product) Commit(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if p.Stock < qty {
		return ErrInsufficientStock
	}
	p.Stock -= qty
	p.ReservedStock -= qty
	if p.ReservedStock < 0 {
		p.ReservedStock = 0
	}
	return nil
}

// Deduct consumes unreserved stock directly.
func (p *Product) Deduct(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if p.AvailableStock() < qty {
		return ErrInsufficientStock
	}
	p.Stock -= qty
	return nil
}

// SetStock replaces the on-hand quantity, keeping existing reservations valid.
func (p *Product) SetStock(stock int) error {
	if stock < 0 {
		return ErrInvalidQuantity
	}
	if stock < p.ReservedStock {
		return ErrStockBelowReserved
	}
	p.Stock = stock
	return nil
}

// StockConsistent reports whether 0 <= ReservedStock <= Stock holds.
func (p *Product) StockConsistent() bool {
	return p.ReservedStock >= 0 && p.ReservedStock <= p.Stock
}
