package domain

import "time"

// Default policy values applied when an upsert omits a field.
const (
	DefaultTargetMinutesLow      = 24 * 60
	DefaultTargetMinutesNormal   = 8 * 60
	DefaultTargetMinutesHigh     = 2 * 60
	DefaultTargetMinutesCritical = 30
	DefaultEscalationMinutes     = 30
)

// CrmSlaPolicy configures SLA targets for one vendor module.
type CrmSlaPolicy struct {
	ID                    string
	VendorID              string
	Module                CrmModule
	TargetMinutesLow      int
	TargetMinutesNormal   int
	TargetMinutesHigh     int
	TargetMinutesCritical int
	EscalationMinutes     int
	Active                bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// TargetMinutes returns the resolution target for priority.
func (p *CrmSlaPolicy) TargetMinutes(priority CrmPriority) int {
	switch priority {
	case CrmPriorityLow:
		return p.TargetMinutesLow
	case CrmPriorityHigh:
		return p.TargetMinutesHigh
	case CrmPriorityCritical:
		return p.TargetMinutesCritical
	default:
		return p.TargetMinutesNormal
	}
}

// SlaDates holds the due dates stamped on a ticket at creation.
type SlaDates struct {
	SlaDueAt          time.Time
	EscalationDueAt   time.Time
	EscalationMinutes int
}

// DueDates computes slaDueAt = createdAt + target and escalationDueAt = slaDueAt + escalationMinutes.
func (p *CrmSlaPolicy) DueDates(createdAt time.Time, priority CrmPriority) SlaDates {
	slaDue := createdAt.Add(time.Duration(p.TargetMinutes(priority)) * time.Minute)
	return SlaDates{
		SlaDueAt:          slaDue,
		EscalationDueAt:   slaDue.Add(time.Duration(p.EscalationMinutes) * time.Minute),
		EscalationMinutes: p.EscalationMinutes,
	}
}
