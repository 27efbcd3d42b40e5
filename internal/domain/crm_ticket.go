package domain

import "time"

// CrmTicketStatus enumerates lifecycle states for CRM tickets.
type CrmTicketStatus string

const (
	CrmStatusOpen            CrmTicketStatus = "open"
	CrmStatusInProgress      CrmTicketStatus = "in_progress"
	CrmStatusWaitingCustomer CrmTicketStatus = "waiting_customer"
	CrmStatusResolved        CrmTicketStatus = "resolved"
	CrmStatusClosed          CrmTicketStatus = "closed"
)

// Valid reports whether s is a known ticket status.
func (s CrmTicketStatus) Valid() bool {
	_, ok := allowedCrmTransitions[s]
	return ok
}

// Terminal reports whether the ticket can no longer change.
func (s CrmTicketStatus) Terminal() bool {
	return s == CrmStatusClosed
}

// Escalatable reports whether SLA escalation applies in this status.
func (s CrmTicketStatus) Escalatable() bool {
	return s == CrmStatusOpen || s == CrmStatusInProgress || s == CrmStatusWaitingCustomer
}

// EscalatableStatuses lists statuses scanned by auto-escalation.
func EscalatableStatuses() []CrmTicketStatus {
	return []CrmTicketStatus{CrmStatusOpen, CrmStatusInProgress, CrmStatusWaitingCustomer}
}

var allowedCrmTransitions = map[CrmTicketStatus][]CrmTicketStatus{
	CrmStatusOpen:            {CrmStatusInProgress, CrmStatusClosed},
	CrmStatusInProgress:      {CrmStatusWaitingCustomer, CrmStatusResolved, CrmStatusClosed},
	CrmStatusWaitingCustomer: {CrmStatusInProgress, CrmStatusClosed},
	CrmStatusResolved:        {CrmStatusClosed},
	CrmStatusClosed:          {},
}

// CanTransition reports whether current -> next is a legal edge.
func CanTransition(current, next CrmTicketStatus) bool {
	for _, candidate := range allowedCrmTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// CrmPriority enumerates SLA urgency.
type CrmPriority string

const (
	CrmPriorityLow      CrmPriority = "low"
	CrmPriorityNormal   CrmPriority = "normal"
	CrmPriorityHigh     CrmPriority = "high"
	CrmPriorityCritical CrmPriority = "critical"
)

// Valid reports whether p is a known priority.
func (p CrmPriority) Valid() bool {
	switch p {
	case CrmPriorityLow, CrmPriorityNormal, CrmPriorityHigh, CrmPriorityCritical:
		return true
	}
	return false
}

// CrmModule is a business vertical that links domain records to tickets.
type CrmModule string

const (
	ModuleAppointments        CrmModule = "appointments"
	ModuleQueueManagement     CrmModule = "queue_management"
	ModuleTicketing           CrmModule = "ticketing"
	ModuleInterventions       CrmModule = "interventions"
	ModuleBankingMicrofinance CrmModule = "banking_microfinance"
	ModuleInsurance           CrmModule = "insurance"
	ModuleTelecom             CrmModule = "telecom"
	ModuleUtilities           CrmModule = "utilities"
	ModuleQueue               CrmModule = "queue"
)

// Valid reports whether m is a known module.
func (m CrmModule) Valid() bool {
	switch m {
	case ModuleAppointments, ModuleQueueManagement, ModuleTicketing, ModuleInterventions,
		ModuleBankingMicrofinance, ModuleInsurance, ModuleTelecom, ModuleUtilities, ModuleQueue:
		return true
	}
	return false
}

// CrmTicket tracks customer follow-up for a record created by a module.
//
// SlaDueAt, EscalationDueAt and EscalationMinutes are snapshotted from the
// module policy at creation time and are never recomputed when the policy
// changes. Version increments on every persisted change.
type CrmTicket struct {
	ID                string
	VendorID          string
	Module            CrmModule
	SourceRefID       string
	Title             string
	CustomerName      string
	CustomerPhone     string
	Priority          CrmPriority
	Status            CrmTicketStatus
	AssignedAgentID   *string
	SlaDueAt          *time.Time
	EscalationDueAt   *time.Time
	EscalationMinutes int
	Escalated         bool
	EscalationLevel   int
	Notes             string
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SlaTracked reports whether the ticket carries due dates.
func (t *CrmTicket) SlaTracked() bool {
	return t.EscalationDueAt != nil
}

// EscalationDue reports whether the current escalation window has elapsed at now.
func (t *CrmTicket) EscalationDue(now time.Time) bool {
	return t.Status.Escalatable() && t.EscalationDueAt != nil && now.After(*t.EscalationDueAt)
}

// Escalate raises the level and opens the next escalation window.
func (t *CrmTicket) Escalate(now time.Time) {
	minutes := t.EscalationMinutes
	if minutes <= 0 {
		minutes = DefaultEscalationMinutes
	}
	t.Escalated = true
	t.EscalationLevel++
	next := now.Add(time.Duration(minutes) * time.Minute)
	t.EscalationDueAt = &next
}

// ClearEscalation drops the active escalation signal; the level is kept as a record.
func (t *CrmTicket) ClearEscalation() {
	t.Escalated = false
	t.EscalationDueAt = nil
}
