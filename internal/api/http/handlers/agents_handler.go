package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/chatcommerce/commerce-service/internal/api/dto"
	"github.com/chatcommerce/commerce-service/internal/auth"
	"github.com/chatcommerce/commerce-service/internal/service"
)

// AgentsHandler manages back-office agents.
type AgentsHandler struct {
	service *service.CrmAgentService
}

// NewAgentsHandler constructs handler.
func NewAgentsHandler(agentService *service.CrmAgentService) *AgentsHandler {
	return &AgentsHandler{service: agentService}
}

// Create POST /crm/agents.
func (h *AgentsHandler) Create(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	var req dto.AgentRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	agent, err := h.service.Create(c.UserContext(), vendorID, agentInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAgentResponse(agent)})
}

// Update PATCH /crm/agents/:id.
func (h *AgentsHandler) Update(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	var req dto.AgentRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	agent, err := h.service.Update(c.UserContext(), vendorID, c.Params("id"), agentInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAgentResponse(agent)})
}

// List GET /crm/agents.
func (h *AgentsHandler) List(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	agents, err := h.service.List(c.UserContext(), vendorID, parseIntQuery(c, "limit", 100))
	if err != nil {
		return err
	}
	items := make([]dto.AgentResponse, 0, len(agents))
	for i := range agents {
		items = append(items, dto.NewAgentResponse(&agents[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func agentInput(req dto.AgentRequest) service.CrmAgentInput {
	return service.CrmAgentInput{
		Name:   req.Name,
		Phone:  req.Phone,
		Email:  req.Email,
		Skills: req.Skills,
		Active: req.Active,
	}
}
