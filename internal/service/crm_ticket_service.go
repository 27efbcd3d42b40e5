package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/chatcommerce/commerce-service/internal/domain"
	"github.com/chatcommerce/commerce-service/internal/events"
	"github.com/chatcommerce/commerce-service/internal/repository"
	apperrors "github.com/chatcommerce/commerce-service/pkg/util/errorutil"
)

// CrmTicketService is the only writer of ticket status and assignment. Each
// change is persisted with its history entry in one atomic write guarded by
// the ticket version.
type CrmTicketService struct {
	tickets    repository.CrmTicketRepository
	history    repository.CrmTicketHistoryRepository
	agents     repository.CrmAgentRepository
	sla        *SlaService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	clock      Clock
}

// CrmTicketDependencies bundles collaborators for the ticket service.
type CrmTicketDependencies struct {
	TicketRepo  repository.CrmTicketRepository
	HistoryRepo repository.CrmTicketHistoryRepository
	AgentRepo   repository.CrmAgentRepository
	Sla         *SlaService
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Clock       Clock
}

// CrmTicketCreateInput is what a module adapter sends after creating its own record.
type CrmTicketCreateInput struct {
	VendorID      string
	Module        domain.CrmModule
	SourceRefID   string
	Title         string
	CustomerName  string
	CustomerPhone string
	Priority      domain.CrmPriority
	Notes         string
	Actor         string
}

// CrmTicketListFilter narrows ticket listings.
type CrmTicketListFilter struct {
	Module          *domain.CrmModule
	Statuses        []domain.CrmTicketStatus
	AssignedAgentID *string
	EscalatedOnly   bool
	Limit           int
	Offset          int
}

// NewCrmTicketService constructs the service.
func NewCrmTicketService(deps CrmTicketDependencies) *CrmTicketService {
	return &CrmTicketService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		agents:     deps.AgentRepo,
		sla:        deps.Sla,
		dispatcher: deps.Dispatcher,
		logger:     loggerOrNop(deps.Logger),
		clock:      clockOrDefault(deps.Clock),
	}
}

// Create opens a ticket linked to a module record and stamps SLA due dates
// from the module policy active at this moment.
func (s *CrmTicketService) Create(ctx context.Context, input CrmTicketCreateInput) (*domain.CrmTicket, error) {
	result := domain.NewValidationResult()
	if strings.TrimSpace(input.VendorID) == "" {
		result.Add(domain.IssueMissingField, "vendorId", "vendorId is required")
	}
	if !input.Module.Valid() {
		result.Add(domain.IssueMissingField, "module", "module is required and must be known")
	}
	if strings.TrimSpace(input.SourceRefID) == "" {
		result.Add(domain.IssueMissingField, "sourceRefId", "sourceRefId is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		result.Add(domain.IssueMissingField, "title", "title is required")
	}
	if !input.Priority.Valid() {
		result.Add(domain.IssueMissingField, "priority", "priority is required and must be known")
	}
	if !result.Valid {
		return nil, apperrors.NewValidationFailure("ticket validation failed", result.Errors)
	}

	now := s.clock()
	ticket := &domain.CrmTicket{
		ID:            newID(),
		VendorID:      input.VendorID,
		Module:        input.Module,
		SourceRefID:   strings.TrimSpace(input.SourceRefID),
		Title:         strings.TrimSpace(input.Title),
		CustomerName:  strings.TrimSpace(input.CustomerName),
		CustomerPhone: strings.TrimSpace(input.CustomerPhone),
		Priority:      input.Priority,
		Status:        domain.CrmStatusOpen,
		Notes:         input.Notes,
		Version:       1,
		CreatedAt:     now,
	}

	if s.sla != nil {
		dates, err := s.sla.DueDates(ctx, ticket.VendorID, ticket.Module, ticket.Priority, now)
		if err != nil {
			return nil, err
		}
		if dates != nil {
			ticket.SlaDueAt = &dates.SlaDueAt
			ticket.EscalationDueAt = &dates.EscalationDueAt
			ticket.EscalationMinutes = dates.EscalationMinutes
		}
	}

	open := domain.CrmStatusOpen
	entry := &domain.CrmTicketHistory{
		ID:       newID(),
		VendorID: ticket.VendorID,
		TicketID: ticket.ID,
		Action:   domain.HistoryCreated,
		Actor:    actorOrSystem(input.Actor),
		ToStatus: &open,
	}
	if err := s.tickets.Create(ctx, ticket, entry); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewConflict("a ticket already exists for this record", map[string]any{
				"module":        ticket.Module,
				"source_ref_id": ticket.SourceRefID,
			})
		}
		return nil, mapRepoError(err, "ticket", nil)
	}

	s.publish(ctx, events.EventCrmTicketCreated, ticket, entry.Actor, events.CrmTicketCreatedPayload{
		Module:      ticket.Module,
		SourceRefID: ticket.SourceRefID,
		Priority:    ticket.Priority,
		Title:       ticket.Title,
		SlaDueAt:    ticket.SlaDueAt,
	})
	return ticket, nil
}

// Transition moves a ticket from one status to another. from must equal the
// persisted status; otherwise the caller acted on a stale view.
func (s *CrmTicketService) Transition(ctx context.Context, vendorID, ticketID string, from, to domain.CrmTicketStatus, actor, reason string) (*domain.CrmTicket, error) {
	if !from.Valid() || !to.Valid() {
		return nil, apperrors.NewValidationError("unknown ticket status", map[string]any{"from": from, "to": to})
	}
	if !domain.CanTransition(from, to) {
		return nil, apperrors.NewInvalidTransition("transition not allowed", map[string]any{"from": from, "to": to})
	}

	ticket, err := s.Get(ctx, vendorID, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != from {
		return nil, apperrors.NewStaleTransition(map[string]any{"ticket_id": ticketID, "current_status": ticket.Status})
	}

	ticket.Status = to
	if to == domain.CrmStatusClosed {
		ticket.ClearEscalation()
	}
	fromStatus, toStatus := from, to
	entry := &domain.CrmTicketHistory{
		ID:         newID(),
		VendorID:   vendorID,
		TicketID:   ticket.ID,
		Action:     domain.HistoryStatusChanged,
		Actor:      actorOrSystem(actor),
		FromStatus: &fromStatus,
		ToStatus:   &toStatus,
		Comment:    strings.TrimSpace(reason),
	}
	if err := s.apply(ctx, ticket, entry); err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventCrmTicketStatusChanged, ticket, entry.Actor, events.CrmTicketStatusChangedPayload{
		OldStatus: from,
		NewStatus: to,
		Reason:    entry.Comment,
	})
	return ticket, nil
}

// Assign gives a ticket to an active agent of the same vendor.
func (s *CrmTicketService) Assign(ctx context.Context, vendorID, ticketID, agentID, actor string) (*domain.CrmTicket, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, apperrors.NewValidationError("agentId is required", nil)
	}
	ticket, err := s.Get(ctx, vendorID, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status.Terminal() {
		return nil, apperrors.NewInvalidTransition("closed tickets cannot be assigned", map[string]any{"ticket_id": ticketID})
	}
	agent, err := s.agents.GetByID(ctx, vendorID, agentID)
	if err != nil {
		return nil, mapRepoError(err, "agent", map[string]any{"agent_id": agentID})
	}
	if !agent.Active {
		return nil, apperrors.NewValidationError("agent is inactive", map[string]any{"agent_id": agentID})
	}
	if ticket.AssignedAgentID != nil && *ticket.AssignedAgentID == agent.ID {
		return ticket, nil
	}

	previous := ticket.AssignedAgentID
	assigned := agent.ID
	ticket.AssignedAgentID = &assigned
	status := ticket.Status
	entry := &domain.CrmTicketHistory{
		ID:         newID(),
		VendorID:   vendorID,
		TicketID:   ticket.ID,
		Action:     domain.HistoryAssigned,
		Actor:      actorOrSystem(actor),
		FromStatus: &status,
		ToStatus:   &status,
		Comment:    agent.ID,
	}
	if err := s.apply(ctx, ticket, entry); err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventCrmTicketAssigned, ticket, entry.Actor, events.CrmTicketAssignedPayload{
		PreviousAgentID: previous,
		AgentID:         agent.ID,
	})
	return ticket, nil
}

// Comment appends a free-text note to the ticket history.
func (s *CrmTicketService) Comment(ctx context.Context, vendorID, ticketID, actor, comment string) (*domain.CrmTicket, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, apperrors.NewValidationError("comment is required", nil)
	}
	ticket, err := s.Get(ctx, vendorID, ticketID)
	if err != nil {
		return nil, err
	}
	entry := &domain.CrmTicketHistory{
		ID:       newID(),
		VendorID: vendorID,
		TicketID: ticket.ID,
		Action:   domain.HistoryComment,
		Actor:    actorOrSystem(actor),
		Comment:  comment,
	}
	if err := s.apply(ctx, ticket, entry); err != nil {
		return nil, err
	}
	return ticket, nil
}

// Get returns a ticket of the vendor.
func (s *CrmTicketService) Get(ctx context.Context, vendorID, ticketID string) (*domain.CrmTicket, error) {
	ticket, err := s.tickets.GetByID(ctx, vendorID, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

// GetBySource returns the ticket linked to a module record.
func (s *CrmTicketService) GetBySource(ctx context.Context, vendorID string, module domain.CrmModule, sourceRefID string) (*domain.CrmTicket, error) {
	ticket, err := s.tickets.GetBySource(ctx, vendorID, module, sourceRefID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"module": module, "source_ref_id": sourceRefID})
	}
	return ticket, nil
}

// List returns vendor tickets, newest first.
func (s *CrmTicketService) List(ctx context.Context, vendorID string, filter CrmTicketListFilter) ([]domain.CrmTicket, error) {
	tickets, err := s.tickets.List(ctx, repository.CrmTicketFilter{
		VendorID:        vendorID,
		Module:          filter.Module,
		Statuses:        filter.Statuses,
		AssignedAgentID: filter.AssignedAgentID,
		EscalatedOnly:   filter.EscalatedOnly,
		Limit:           filter.Limit,
		Offset:          filter.Offset,
	})
	if err != nil {
		return nil, mapRepoError(err, "ticket", nil)
	}
	return tickets, nil
}

// History returns the audit trail of a ticket, oldest first.
func (s *CrmTicketService) History(ctx context.Context, vendorID, ticketID string, limit, offset int) ([]domain.CrmTicketHistory, error) {
	if _, err := s.Get(ctx, vendorID, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, vendorID, ticketID, limit, offset)
	if err != nil {
		return nil, mapRepoError(err, "ticket history", nil)
	}
	return entries, nil
}

func (s *CrmTicketService) apply(ctx context.Context, ticket *domain.CrmTicket, entry *domain.CrmTicketHistory) error {
	applied, err := s.tickets.Apply(ctx, ticket, entry)
	if err != nil {
		return mapRepoError(err, "ticket", map[string]any{"ticket_id": ticket.ID})
	}
	if !applied {
		return apperrors.NewStaleTransition(map[string]any{"ticket_id": ticket.ID})
	}
	return nil
}

func (s *CrmTicketService) publish(ctx context.Context, eventType events.EventType, ticket *domain.CrmTicket, actor string, payload any) {
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:        eventType,
		VendorID:    ticket.VendorID,
		AggregateID: ticket.ID,
		Actor:       actor,
		Payload:     payload,
	})
}

func actorOrSystem(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return domain.ActorSystem
	}
	return actor
}
