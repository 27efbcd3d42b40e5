package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/chatcommerce/commerce-service/internal/domain"
	"github.com/chatcommerce/commerce-service/internal/repository"
)

// ValidateForCreation checks every rule for a new order and reports all
// failures together. The error return is reserved for lookup failures.
func (s *OrderService) ValidateForCreation(ctx context.Context, input OrderCreateInput) (domain.ValidationResult, error) {
	result, _, err := s.validateCreation(ctx, input)
	return result, err
}

func (s *OrderService) validateCreation(ctx context.Context, input OrderCreateInput) (domain.ValidationResult, *domain.Product, error) {
	result := domain.NewValidationResult()

	if strings.TrimSpace(input.VendorID) == "" {
		result.Add(domain.IssueMissingField, "vendorId", "vendorId is required")
	}
	if strings.TrimSpace(input.ProductID) == "" {
		result.Add(domain.IssueMissingField, "productId", "productId is required")
	}
	if strings.TrimSpace(input.ClientPhone) == "" {
		result.Add(domain.IssueMissingField, "clientPhone", "clientPhone is required")
	} else if !domain.IsValidPhoneNumber(input.ClientPhone) {
		result.Add(domain.IssueInvalidPhone, "clientPhone", "clientPhone must contain 10 to 15 digits")
	}
	checkAmounts(&result, input.Quantity, input.UnitPrice, input.TotalAmount)

	if strings.TrimSpace(input.ProductID) == "" {
		return result, nil, nil
	}
	product, err := s.products.GetByID(ctx, input.ProductID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && product.VendorID != input.VendorID) {
		result.Add(domain.IssueProductNotFound, "productId", "product not found")
		return result, nil, nil
	}
	if err != nil {
		return result, nil, mapRepoError(err, "product", map[string]any{"product_id": input.ProductID})
	}
	if !product.Active {
		result.Add(domain.IssueProductInactive, "productId", "product is not active")
	}
	if input.Quantity > 0 && input.Quantity > product.AvailableStock() {
		result.Add(domain.IssueInsufficientStock, "quantity",
			fmt.Sprintf("only %d units available", max(product.AvailableStock(), 0)))
	}
	return result, product, nil
}

// ValidateForPayment checks that order may move to paid at the current time.
func (s *OrderService) ValidateForPayment(ctx context.Context, order *domain.Order) (domain.ValidationResult, error) {
	result := domain.NewValidationResult()
	if order == nil {
		result.Add(domain.IssueOrderNotFound, "orderId", "order not found")
		return result, nil
	}
	if !order.Payable() {
		result.Add(domain.IssueInvalidStatus, "status", fmt.Sprintf("order is %s", order.Status))
	}
	if order.IsExpired(s.clock()) {
		result.Add(domain.IssuePaymentExpired, "expiresAt", "payment window has expired")
	}
	checkAmounts(&result, order.Quantity, order.UnitPrice, order.TotalAmount)
	if !domain.IsValidPhoneNumber(order.ClientPhone) {
		result.Add(domain.IssueInvalidPhone, "clientPhone", "clientPhone must contain 10 to 15 digits")
	}

	if order.Status == domain.OrderStatusPending && order.Quantity > 0 {
		product, err := s.products.GetByID(ctx, order.ProductID)
		if errors.Is(err, repository.ErrNotFound) {
			result.Add(domain.IssueProductNotFound, "productId", "product not found")
			return result, nil
		}
		if err != nil {
			return result, mapRepoError(err, "product", map[string]any{"product_id": order.ProductID})
		}
		if order.Quantity > product.AvailableStock() {
			result.Add(domain.IssueInsufficientStock, "quantity",
				fmt.Sprintf("only %d units available", max(product.AvailableStock(), 0)))
		}
	}
	return result, nil
}

func checkAmounts(result *domain.ValidationResult, quantity int, unitPrice, total decimal.Decimal) {
	if quantity <= 0 {
		result.Add(domain.IssueInvalidQuantity, "quantity", "quantity must be greater than zero")
	}
	if !unitPrice.IsPositive() {
		result.Add(domain.IssueInvalidUnitPrice, "unitPrice", "unitPrice must be greater than zero")
	}
	if !total.IsPositive() {
		result.Add(domain.IssueInvalidTotal, "totalAmount", "totalAmount must be greater than zero")
	}
	if quantity > 0 && unitPrice.IsPositive() && total.IsPositive() &&
		!domain.AmountMatches(quantity, unitPrice, total) {
		expected := domain.ExpectedTotal(quantity, unitPrice)
		result.Add(domain.IssueAmountMismatch, "totalAmount",
			fmt.Sprintf("totalAmount %s does not match quantity x unitPrice (expected %s)",
				total.String(), expected.String()))
	}
}
