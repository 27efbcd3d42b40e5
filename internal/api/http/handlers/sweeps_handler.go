package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/chatcommerce/commerce-service/internal/service"
)

// SweepsHandler lets an external scheduler trigger the sweep.
type SweepsHandler struct {
	service *service.SweepService
}

// NewSweepsHandler constructs handler.
func NewSweepsHandler(sweepService *service.SweepService) *SweepsHandler {
	return &SweepsHandler{service: sweepService}
}

// Run POST /internal/sweeps/run.
func (h *SweepsHandler) Run(c *fiber.Ctx) error {
	stats, err := h.service.RunOnce(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}
