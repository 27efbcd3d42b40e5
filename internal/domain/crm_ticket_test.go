package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to CrmTicketStatus
		ok       bool
	}{
		{CrmStatusOpen, CrmStatusInProgress, true},
		{CrmStatusOpen, CrmStatusClosed, true},
		{CrmStatusOpen, CrmStatusResolved, false},
		{CrmStatusInProgress, CrmStatusWaitingCustomer, true},
		{CrmStatusInProgress, CrmStatusResolved, true},
		{CrmStatusWaitingCustomer, CrmStatusInProgress, true},
		{CrmStatusWaitingCustomer, CrmStatusResolved, false},
		{CrmStatusResolved, CrmStatusClosed, true},
		{CrmStatusResolved, CrmStatusInProgress, false},
		{CrmStatusClosed, CrmStatusOpen, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCrmSlaPolicy_DueDates(t *testing.T) {
	policy := &CrmSlaPolicy{TargetMinutesNormal: 480, EscalationMinutes: 30}
	created := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	dates := policy.DueDates(created, CrmPriorityNormal)

	assert.Equal(t, created.Add(480*time.Minute), dates.SlaDueAt)
	assert.Equal(t, created.Add(510*time.Minute), dates.EscalationDueAt)
	assert.Equal(t, 30, dates.EscalationMinutes)
}

func TestCrmTicket_Escalate(t *testing.T) {
	now := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	due := now.Add(-time.Minute)
	ticket := &CrmTicket{Status: CrmStatusOpen, EscalationDueAt: &due, EscalationMinutes: 30}

	assert.True(t, ticket.EscalationDue(now))
	ticket.Escalate(now)

	assert.True(t, ticket.Escalated)
	assert.Equal(t, 1, ticket.EscalationLevel)
	assert.False(t, ticket.EscalationDue(now))
	assert.Equal(t, now.Add(30*time.Minute), *ticket.EscalationDueAt)

	ticket.ClearEscalation()
	assert.False(t, ticket.Escalated)
	assert.Nil(t, ticket.EscalationDueAt)
	assert.Equal(t, 1, ticket.EscalationLevel)
}
