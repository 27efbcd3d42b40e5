package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chatcommerce/commerce-service/internal/domain"
	"github.com/chatcommerce/commerce-service/internal/repository"
	apperrors "github.com/chatcommerce/commerce-service/pkg/util/errorutil"
)

// ProductService manages the vendor catalog. Stock counters are only changed
// through the InventoryLedger.
type ProductService struct {
	products repository.ProductRepository
	ledger   *InventoryLedger
	logger   *zap.Logger
}

// ProductInput describes catalog fields supplied by a vendor.
type ProductInput struct {
	Keyword string
	Name    string
	Price   decimal.Decimal
	Stock   int
	Active  *bool
}

// NewProductService constructs the service.
func NewProductService(products repository.ProductRepository, ledger *InventoryLedger, logger *zap.Logger) *ProductService {
	return &ProductService{products: products, ledger: ledger, logger: loggerOrNop(logger)}
}

// Create adds a product to the vendor catalog.
func (s *ProductService) Create(ctx context.Context, vendorID string, input ProductInput) (*domain.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}
	if input.Stock < 0 {
		return nil, apperrors.NewValidationError("stock cannot be negative", map[string]any{"field": "stock"})
	}
	product := &domain.Product{
		ID:       newID(),
		VendorID: vendorID,
		Keyword:  domain.NormalizeKeyword(input.Keyword),
		Name:     strings.TrimSpace(input.Name),
		Price:    input.Price,
		Stock:    input.Stock,
		Active:   true,
	}
	if input.Active != nil {
		product.Active = *input.Active
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, mapRepoError(err, "product", map[string]any{"keyword": product.Keyword})
	}
	s.logger.Info("product created", zap.String("vendor_id", vendorID), zap.String("product_id", product.ID))
	return product, nil
}

// Update changes catalog fields; stock is left to AdjustStock.
func (s *ProductService) Update(ctx context.Context, vendorID, productID string, input ProductInput) (*domain.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}
	product, err := s.Get(ctx, vendorID, productID)
	if err != nil {
		return nil, err
	}
	product.Keyword = domain.NormalizeKeyword(input.Keyword)
	product.Name = strings.TrimSpace(input.Name)
	product.Price = input.Price
	if input.Active != nil {
		product.Active = *input.Active
	}
	if err := s.products.Update(ctx, product); err != nil {
		return nil, mapRepoError(err, "product", map[string]any{"product_id": productID})
	}
	return product, nil
}

// Get returns a product owned by the vendor.
func (s *ProductService) Get(ctx context.Context, vendorID, productID string) (*domain.Product, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, mapRepoError(err, "product", map[string]any{"product_id": productID})
	}
	if product.VendorID != vendorID {
		return nil, apperrors.NewNotFound("product", map[string]any{"product_id": productID})
	}
	return product, nil
}

// GetByKeyword resolves the product a chat message refers to.
func (s *ProductService) GetByKeyword(ctx context.Context, vendorID, keyword string) (*domain.Product, error) {
	product, err := s.products.GetByKeyword(ctx, vendorID, keyword)
	if err != nil {
		return nil, mapRepoError(err, "product", map[string]any{"keyword": keyword})
	}
	return product, nil
}

// List returns the vendor catalog ordered by name.
func (s *ProductService) List(ctx context.Context, vendorID string, limit, offset int) ([]domain.Product, error) {
	products, err := s.products.ListByVendor(ctx, vendorID, limit, offset)
	if err != nil {
		return nil, mapRepoError(err, "product", nil)
	}
	return products, nil
}

// AdjustStock restocks or corrects the on-hand quantity.
func (s *ProductService) AdjustStock(ctx context.Context, vendorID, productID string, stock int) (*domain.Product, error) {
	if _, err := s.Get(ctx, vendorID, productID); err != nil {
		return nil, err
	}
	return s.ledger.AdjustStock(ctx, productID, stock)
}

func validateProductInput(input ProductInput) error {
	var missing []string
	if strings.TrimSpace(input.Keyword) == "" {
		missing = append(missing, "keyword")
	}
	if strings.TrimSpace(input.Name) == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}
	if !input.Price.IsPositive() {
		return apperrors.NewValidationError("price must be positive", map[string]any{"field": "price"})
	}
	return nil
}
