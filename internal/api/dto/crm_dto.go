package dto

import (
	"time"

	"github.com/chatcommerce/commerce-service/internal/domain"
)

// CreateCrmTicketRequest payload sent by a module adapter.
type CreateCrmTicketRequest struct {
	Module        domain.CrmModule   `json:"module" validate:"required"`
	SourceRefID   string             `json:"sourceRefId" validate:"required,max=128"`
	Title         string             `json:"title" validate:"required,max=255"`
	CustomerName  string             `json:"customerName" validate:"max=255"`
	CustomerPhone string             `json:"customerPhone" validate:"max=32"`
	Priority      domain.CrmPriority `json:"priority" validate:"required,oneof=low normal high critical"`
	Notes         string             `json:"notes"`
}

// TransitionRequest payload for POST /crm/tickets/:id/status.
type TransitionRequest struct {
	From   domain.CrmTicketStatus `json:"from" validate:"required"`
	To     domain.CrmTicketStatus `json:"to" validate:"required"`
	Reason string                 `json:"reason" validate:"max=1000"`
}

// AssignRequest payload for POST /crm/tickets/:id/assign.
type AssignRequest struct {
	AgentID string `json:"agentId" validate:"required"`
}

// CommentRequest payload for POST /crm/tickets/:id/comments.
type CommentRequest struct {
	Comment string `json:"comment" validate:"required,max=4000"`
}

// CrmTicketResponse describes a ticket.
type CrmTicketResponse struct {
	ID              string                 `json:"id"`
	VendorID        string                 `json:"vendorId"`
	Module          domain.CrmModule       `json:"module"`
	SourceRefID     string                 `json:"sourceRefId"`
	Title           string                 `json:"title"`
	CustomerName    string                 `json:"customerName,omitempty"`
	CustomerPhone   string                 `json:"customerPhone,omitempty"`
	Priority        domain.CrmPriority     `json:"priority"`
	Status          domain.CrmTicketStatus `json:"status"`
	AssignedAgentID *string                `json:"assignedAgentId,omitempty"`
	SlaDueAt        *time.Time             `json:"slaDueAt,omitempty"`
	EscalationDueAt *time.Time             `json:"escalationDueAt,omitempty"`
	Escalated       bool                   `json:"escalated"`
	EscalationLevel int                    `json:"escalationLevel"`
	Notes           string                 `json:"notes,omitempty"`
	Version         int64                  `json:"version"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// NewCrmTicketResponse maps a ticket.
func NewCrmTicketResponse(t *domain.CrmTicket) CrmTicketResponse {
	return CrmTicketResponse{
		ID:              t.ID,
		VendorID:        t.VendorID,
		Module:          t.Module,
		SourceRefID:     t.SourceRefID,
		Title:           t.Title,
		CustomerName:    t.CustomerName,
		CustomerPhone:   t.CustomerPhone,
		Priority:        t.Priority,
		Status:          t.Status,
		AssignedAgentID: t.AssignedAgentID,
		SlaDueAt:        t.SlaDueAt,
		EscalationDueAt: t.EscalationDueAt,
		Escalated:       t.Escalated,
		EscalationLevel: t.EscalationLevel,
		Notes:           t.Notes,
		Version:         t.Version,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

// CrmTicketHistoryResponse describes an audit entry.
type CrmTicketHistoryResponse struct {
	ID         string                  `json:"id"`
	Action     domain.CrmHistoryAction `json:"action"`
	Actor      string                  `json:"actor"`
	FromStatus *domain.CrmTicketStatus `json:"fromStatus,omitempty"`
	ToStatus   *domain.CrmTicketStatus `json:"toStatus,omitempty"`
	Comment    string                  `json:"comment,omitempty"`
	CreatedAt  time.Time               `json:"createdAt"`
}

// NewCrmTicketHistoryResponse maps a history entry.
func NewCrmTicketHistoryResponse(h *domain.CrmTicketHistory) CrmTicketHistoryResponse {
	return CrmTicketHistoryResponse{
		ID:         h.ID,
		Action:     h.Action,
		Actor:      h.Actor,
		FromStatus: h.FromStatus,
		ToStatus:   h.ToStatus,
		Comment:    h.Comment,
		CreatedAt:  h.CreatedAt,
	}
}

// SlaPolicyRequest payload for PUT /crm/sla-policies/:module. Omitted fields take defaults.
type SlaPolicyRequest struct {
	TargetMinutesLow      *int  `json:"targetMinutesLow" validate:"omitempty,gt=0"`
	TargetMinutesNormal   *int  `json:"targetMinutesNormal" validate:"omitempty,gt=0"`
	TargetMinutesHigh     *int  `json:"targetMinutesHigh" validate:"omitempty,gt=0"`
	TargetMinutesCritical *int  `json:"targetMinutesCritical" validate:"omitempty,gt=0"`
	EscalationMinutes     *int  `json:"escalationMinutes" validate:"omitempty,gt=0"`
	Active                *bool `json:"active"`
}

// SlaPolicyResponse describes a policy.
type SlaPolicyResponse struct {
	ID                    string           `json:"id"`
	Module                domain.CrmModule `json:"module"`
	TargetMinutesLow      int              `json:"targetMinutesLow"`
	TargetMinutesNormal   int              `json:"targetMinutesNormal"`
	TargetMinutesHigh     int              `json:"targetMinutesHigh"`
	TargetMinutesCritical int              `json:"targetMinutesCritical"`
	EscalationMinutes     int              `json:"escalationMinutes"`
	Active                bool             `json:"active"`
	UpdatedAt             time.Time        `json:"updatedAt"`
}

// NewSlaPolicyResponse maps a policy.
func NewSlaPolicyResponse(p *domain.CrmSlaPolicy) SlaPolicyResponse {
	return SlaPolicyResponse{
		ID:                    p.ID,
		Module:                p.Module,
		TargetMinutesLow:      p.TargetMinutesLow,
		TargetMinutesNormal:   p.TargetMinutesNormal,
		TargetMinutesHigh:     p.TargetMinutesHigh,
		TargetMinutesCritical: p.TargetMinutesCritical,
		EscalationMinutes:     p.EscalationMinutes,
		Active:                p.Active,
		UpdatedAt:             p.UpdatedAt,
	}
}

// AgentRequest payload for agent create and update.
type AgentRequest struct {
	Name   *string  `json:"name" validate:"omitempty,min=1,max=255"`
	Phone  *string  `json:"phone" validate:"omitempty,max=32"`
	Email  *string  `json:"email" validate:"omitempty,email"`
	Skills []string `json:"skills" validate:"omitempty,dive,max=64"`
	Active *bool    `json:"active"`
}

// AgentResponse describes an agent.
type AgentResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     *string   `json:"phone,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Skills    []string  `json:"skills"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewAgentResponse maps an agent.
func NewAgentResponse(a *domain.CrmAgent) AgentResponse {
	skills := a.Skills
	if skills == nil {
		skills = []string{}
	}
	return AgentResponse{
		ID:        a.ID,
		Name:      a.Name,
		Phone:     a.Phone,
		Email:     a.Email,
		Skills:    skills,
		Active:    a.Active,
		CreatedAt: a.CreatedAt,
	}
}
