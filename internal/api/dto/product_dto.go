package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/chatcommerce/commerce-service/internal/domain"
)

// ProductRequest payload for create and update.
type ProductRequest struct {
	Keyword string          `json:"keyword" validate:"required,max=64"`
	Name    string          `json:"name" validate:"required,max=255"`
	Price   decimal.Decimal `json:"price"`
	Stock   int             `json:"stock" validate:"gte=0"`
	Active  *bool           `json:"active"`
}

// StockRequest payload for PUT /products/:id/stock.
type StockRequest struct {
	Stock *int `json:"stock" validate:"required,gte=0"`
}

// ProductResponse describes a catalog item.
type ProductResponse struct {
	ID             string          `json:"id"`
	VendorID       string          `json:"vendorId"`
	Keyword        string          `json:"keyword"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	Stock          int             `json:"stock"`
	ReservedStock  int             `json:"reservedStock"`
	AvailableStock int             `json:"availableStock"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// NewProductResponse maps a product.
func NewProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:             p.ID,
		VendorID:       p.VendorID,
		Keyword:        p.Keyword,
		Name:           p.Name,
		Price:          p.Price,
		Stock:          p.Stock,
		ReservedStock:  p.ReservedStock,
		AvailableStock: p.AvailableStock(),
		Active:         p.Active,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}
