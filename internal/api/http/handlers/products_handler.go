package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/chatcommerce/commerce-service/internal/api/dto"
	"github.com/chatcommerce/commerce-service/internal/auth"
	"github.com/chatcommerce/commerce-service/internal/service"
)

// ProductsHandler exposes the vendor catalog.
type ProductsHandler struct {
	service *service.ProductService
}

// NewProductsHandler constructs handler.
func NewProductsHandler(productService *service.ProductService) *ProductsHandler {
	return &ProductsHandler{service: productService}
}

// Create POST /products.
func (h *ProductsHandler) Create(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	var req dto.ProductRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	product, err := h.service.Create(c.UserContext(), vendorID, productInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewProductResponse(product)})
}

// Update PUT /products/:id.
func (h *ProductsHandler) Update(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	var req dto.ProductRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	product, err := h.service.Update(c.UserContext(), vendorID, c.Params("id"), productInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewProductResponse(product)})
}

// Get GET /products/:id.
func (h *ProductsHandler) Get(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	product, err := h.service.Get(c.UserContext(), vendorID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewProductResponse(product)})
}

// List GET /products. With ?keyword= it resolves a single product.
func (h *ProductsHandler) List(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	if keyword := c.Query("keyword"); keyword != "" {
		product, err := h.service.GetByKeyword(c.UserContext(), vendorID, keyword)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": []dto.ProductResponse{dto.NewProductResponse(product)}})
	}
	limit, offset := pagination(c)
	products, err := h.service.List(c.UserContext(), vendorID, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		items = append(items, dto.NewProductResponse(&products[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AdjustStock PUT /products/:id/stock.
func (h *ProductsHandler) AdjustStock(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	var req dto.StockRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	product, err := h.service.AdjustStock(c.UserContext(), vendorID, c.Params("id"), *req.Stock)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewProductResponse(product)})
}

func productInput(req dto.ProductRequest) service.ProductInput {
	return service.ProductInput{
		Keyword: req.Keyword,
		Name:    req.Name,
		Price:   req.Price,
		Stock:   req.Stock,
		Active:  req.Active,
	}
}
