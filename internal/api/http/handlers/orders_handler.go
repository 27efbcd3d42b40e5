package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/chatcommerce/commerce-service/internal/api/dto"
	"github.com/chatcommerce/commerce-service/internal/auth"
	"github.com/chatcommerce/commerce-service/internal/domain"
	"github.com/chatcommerce/commerce-service/internal/service"
)

// OrdersHandler exposes the order lifecycle.
type OrdersHandler struct {
	orders   *service.OrderService
	payments *service.PaymentService
}

// NewOrdersHandler constructs handler.
func NewOrdersHandler(orders *service.OrderService, payments *service.PaymentService) *OrdersHandler {
	return &OrdersHandler{orders: orders, payments: payments}
}

// Validate POST /orders/validate. Always answers 200 with the full issue list.
func (h *OrdersHandler) Validate(c *fiber.Ctx) error {
	input, err := h.createInput(c)
	if err != nil {
		return err
	}
	result, err := h.orders.ValidateForCreation(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

// Create POST /orders.
func (h *OrdersHandler) Create(c *fiber.Ctx) error {
	input, err := h.createInput(c)
	if err != nil {
		return err
	}
	order, err := h.orders.Create(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewOrderResponse(order)})
}

// List GET /orders?status=reserved,pending.
func (h *OrdersHandler) List(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	var statuses []domain.OrderStatus
	for _, raw := range splitQuery(c, "status") {
		statuses = append(statuses, domain.OrderStatus(raw))
	}
	limit, offset := pagination(c)
	orders, err := h.orders.List(c.UserContext(), vendorID, statuses, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, dto.NewOrderResponse(&orders[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /orders/:id.
func (h *OrdersHandler) Get(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	order, err := h.orders.Get(c.UserContext(), vendorID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewOrderResponse(order)})
}

// Audit GET /orders/:id/audit.
func (h *OrdersHandler) Audit(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	entries, err := h.orders.AuditTrail(c.UserContext(), vendorID, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.OrderAuditResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewOrderAuditResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Cancel POST /orders/:id/cancel.
func (h *OrdersHandler) Cancel(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	order, err := h.orders.Cancel(c.UserContext(), vendorID, c.Params("id"), changedBy(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewOrderResponse(order)})
}

// ValidatePayment POST /orders/:id/payment/validate.
func (h *OrdersHandler) ValidatePayment(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	order, err := h.orders.Get(c.UserContext(), vendorID, c.Params("id"))
	if err != nil {
		return err
	}
	result, err := h.orders.ValidateForPayment(c.UserContext(), order)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": result})
}

// ConfirmPayment POST /orders/:id/payment, used for cash and manual settlements.
func (h *OrdersHandler) ConfirmPayment(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	var req dto.ConfirmPaymentRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	order, err := h.orders.Get(c.UserContext(), vendorID, c.Params("id"))
	if err != nil {
		return err
	}
	result, err := h.orders.ConfirmPayment(c.UserContext(), order.ID, service.PaymentConfirmation{
		Method:    req.Method,
		Reference: req.Reference,
		ChangedBy: changedBy(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data":        dto.NewOrderResponse(result.Order),
		"alreadyPaid": result.AlreadyPaid,
	})
}

// PaymentWebhook POST /webhooks/payments.
func (h *OrdersHandler) PaymentWebhook(c *fiber.Ctx) error {
	var req dto.PaymentWebhookRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	result, err := h.payments.HandleWebhook(c.UserContext(), service.PaymentWebhookInput{
		OrderID:           req.OrderID,
		Method:            req.Method,
		Amount:            req.Amount,
		ExternalReference: req.ExternalReference,
	})
	if err != nil {
		return err
	}
	response := fiber.Map{
		"processed":          result.Processed,
		"alreadyPaid":        result.AlreadyPaid,
		"duplicateSuspected": result.DuplicateSuspected,
	}
	if result.Order != nil {
		response["data"] = dto.NewOrderResponse(result.Order)
	}
	return c.JSON(response)
}

func (h *OrdersHandler) createInput(c *fiber.Ctx) (service.OrderCreateInput, error) {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return service.OrderCreateInput{}, err
	}
	var req dto.CreateOrderRequest
	if err := bindJSON(c, &req); err != nil {
		return service.OrderCreateInput{}, err
	}
	return service.OrderCreateInput{
		VendorID:         vendorID,
		ProductID:        req.ProductID,
		ClientPhone:      req.ClientPhone,
		ClientName:       req.ClientName,
		Quantity:         req.Quantity,
		UnitPrice:        req.UnitPrice,
		TotalAmount:      req.TotalAmount,
		ExpiresAt:        req.ExpiresAt,
		DeferReservation: req.DeferReservation,
		ChangedBy:        changedBy(c),
	}, nil
}
