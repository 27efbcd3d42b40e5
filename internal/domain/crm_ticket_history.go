package domain

import "time"

// CrmHistoryAction captures what happened in a history entry.
type CrmHistoryAction string

const (
	HistoryCreated       CrmHistoryAction = "created"
	HistoryStatusChanged CrmHistoryAction = "status_changed"
	HistoryAssigned      CrmHistoryAction = "assigned"
	HistoryEscalated     CrmHistoryAction = "escalated"
	HistoryComment       CrmHistoryAction = "comment"
)

// EscalationReasonSLABreach tags entries written by auto-escalation.
const EscalationReasonSLABreach = "sla_breach"

// CrmTicketHistory is an immutable audit trail entry.
type CrmTicketHistory struct {
	ID         string
	VendorID   string
	TicketID   string
	Action     CrmHistoryAction
	Actor      string
	FromStatus *CrmTicketStatus
	ToStatus   *CrmTicketStatus
	Comment    string
	CreatedAt  time.Time
}
