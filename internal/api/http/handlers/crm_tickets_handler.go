package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/chatcommerce/commerce-service/internal/api/dto"
	"github.com/chatcommerce/commerce-service/internal/auth"
	"github.com/chatcommerce/commerce-service/internal/domain"
	"github.com/chatcommerce/commerce-service/internal/service"
)

// CrmTicketsHandler exposes the ticket store and escalation trigger.
type CrmTicketsHandler struct {
	tickets *service.CrmTicketService
	sla     *service.SlaService
}

// NewCrmTicketsHandler constructs handler.
func NewCrmTicketsHandler(tickets *service.CrmTicketService, sla *service.SlaService) *CrmTicketsHandler {
	return &CrmTicketsHandler{tickets: tickets, sla: sla}
}

// Create POST /crm/tickets.
func (h *CrmTicketsHandler) Create(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	var req dto.CreateCrmTicketRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.Create(c.UserContext(), service.CrmTicketCreateInput{
		VendorID:      vendorID,
		Module:        req.Module,
		SourceRefID:   req.SourceRefID,
		Title:         req.Title,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Priority:      req.Priority,
		Notes:         req.Notes,
		Actor:         actor(c),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCrmTicketResponse(ticket)})
}

// List GET /crm/tickets. Filters: module, status (comma separated), agent_id,
// escalated, source_ref_id (with module).
func (h *CrmTicketsHandler) List(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	var filter service.CrmTicketListFilter
	if module := c.Query("module"); module != "" {
		m := domain.CrmModule(module)
		filter.Module = &m
		if sourceRef := c.Query("source_ref_id"); sourceRef != "" {
			ticket, err := h.tickets.GetBySource(c.UserContext(), vendorID, m, sourceRef)
			if err != nil {
				return err
			}
			return c.JSON(fiber.Map{"data": []dto.CrmTicketResponse{dto.NewCrmTicketResponse(ticket)}})
		}
	}
	for _, raw := range splitQuery(c, "status") {
		filter.Statuses = append(filter.Statuses, domain.CrmTicketStatus(raw))
	}
	if agentID := c.Query("agent_id"); agentID != "" {
		filter.AssignedAgentID = &agentID
	}
	filter.EscalatedOnly = parseBoolQuery(c, "escalated", false)
	filter.Limit, filter.Offset = pagination(c)

	tickets, err := h.tickets.List(c.UserContext(), vendorID, filter)
	if err != nil {
		return err
	}
	items := make([]dto.CrmTicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewCrmTicketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /crm/tickets/:id.
func (h *CrmTicketsHandler) Get(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Get(c.UserContext(), vendorID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCrmTicketResponse(ticket)})
}

// History GET /crm/tickets/:id/history.
func (h *CrmTicketsHandler) History(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	entries, err := h.tickets.History(c.UserContext(), vendorID, c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.CrmTicketHistoryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewCrmTicketHistoryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Transition POST /crm/tickets/:id/status.
func (h *CrmTicketsHandler) Transition(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.Transition(c.UserContext(), vendorID, c.Params("id"), req.From, req.To, actor(c), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCrmTicketResponse(ticket)})
}

// Assign POST /crm/tickets/:id/assign.
func (h *CrmTicketsHandler) Assign(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.Assign(c.UserContext(), vendorID, c.Params("id"), req.AgentID, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCrmTicketResponse(ticket)})
}

// Comment POST /crm/tickets/:id/comments.
func (h *CrmTicketsHandler) Comment(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.Comment(c.UserContext(), vendorID, c.Params("id"), actor(c), req.Comment)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCrmTicketResponse(ticket)})
}

// RunEscalations POST /crm/escalations/run.
func (h *CrmTicketsHandler) RunEscalations(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	count, err := h.sla.RunAutoEscalation(c.UserContext(), vendorID, actor(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"escalated": count}})
}

// ListPolicies GET /crm/sla-policies.
func (h *CrmTicketsHandler) ListPolicies(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	policies, err := h.sla.ListPolicies(c.UserContext(), vendorID)
	if err != nil {
		return err
	}
	items := make([]dto.SlaPolicyResponse, 0, len(policies))
	for i := range policies {
		items = append(items, dto.NewSlaPolicyResponse(&policies[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpsertPolicy PUT /crm/sla-policies/:module.
func (h *CrmTicketsHandler) UpsertPolicy(c *fiber.Ctx) error {
	vendorID, err := auth.VendorScope(c)
	if err != nil {
		return err
	}
	var req dto.SlaPolicyRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	policy, err := h.sla.UpsertPolicy(c.UserContext(), vendorID, domain.CrmModule(c.Params("module")), service.SlaPolicyInput{
		TargetMinutesLow:      req.TargetMinutesLow,
		TargetMinutesNormal:   req.TargetMinutesNormal,
		TargetMinutesHigh:     req.TargetMinutesHigh,
		TargetMinutesCritical: req.TargetMinutesCritical,
		EscalationMinutes:     req.EscalationMinutes,
		Active:                req.Active,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSlaPolicyResponse(policy)})
}
