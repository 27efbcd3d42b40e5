package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatcommerce/commerce-service/internal/domain"
	"github.com/chatcommerce/commerce-service/internal/events"
	apperrors "github.com/chatcommerce/commerce-service/pkg/util/errorutil"
)

func TestSlaService_UpsertPolicyAppliesDefaults(t *testing.T) {
	env := newTestEnv(t)

	policy := env.upsertPolicy(t, domain.ModuleQueueManagement, SlaPolicyInput{TargetMinutesHigh: intPtr(45)})
	assert.Equal(t, domain.DefaultTargetMinutesLow, policy.TargetMinutesLow)
	assert.Equal(t, domain.DefaultTargetMinutesNormal, policy.TargetMinutesNormal)
	assert.Equal(t, 45, policy.TargetMinutesHigh)
	assert.Equal(t, domain.DefaultTargetMinutesCritical, policy.TargetMinutesCritical)
	assert.Equal(t, domain.DefaultEscalationMinutes, policy.EscalationMinutes)
	assert.True(t, policy.Active)

	replaced := env.upsertPolicy(t, domain.ModuleQueueManagement, SlaPolicyInput{})
	assert.Equal(t, policy.ID, replaced.ID)
	assert.Equal(t, domain.DefaultTargetMinutesHigh, replaced.TargetMinutesHigh)

	policies, err := env.sla.ListPolicies(context.Background(), testVendor)
	require.NoError(t, err)
	assert.Len(t, policies, 1)
}

func TestSlaService_UpsertPolicyValidates(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.sla.UpsertPolicy(context.Background(), testVendor, domain.ModuleTelecom, SlaPolicyInput{
		TargetMinutesLow:  intPtr(0),
		EscalationMinutes: intPtr(-5),
	})
	issues := validationIssues(t, err)
	assert.Len(t, issues, 2)

	_, err = env.sla.UpsertPolicy(context.Background(), testVendor, "warehouse", SlaPolicyInput{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestSlaService_AutoEscalationIsIdempotentPerWindow(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.upsertPolicy(t, domain.ModuleTicketing, SlaPolicyInput{
		TargetMinutesNormal: intPtr(60),
		EscalationMinutes:   intPtr(30),
	})
	ticket := env.createTicket(t, domain.ModuleTicketing, "tk-1", domain.CrmPriorityNormal)
	_, err := env.tickets.Transition(ctx, testVendor, ticket.ID, domain.CrmStatusOpen, domain.CrmStatusInProgress, "agent-1", "")
	require.NoError(t, err)

	env.clock.Advance(89 * time.Minute)
	n, err := env.sla.RunAutoEscalation(ctx, testVendor, "")
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is due before the escalation window")

	env.clock.Advance(2 * time.Minute)
	n, err = env.sla.RunAutoEscalation(ctx, testVendor, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = env.sla.RunAutoEscalation(ctx, testVendor, "")
	require.NoError(t, err)
	assert.Zero(t, n, "a second run in the same window is a no-op")

	escalated, err := env.tickets.Get(ctx, testVendor, ticket.ID)
	require.NoError(t, err)
	assert.True(t, escalated.Escalated)
	assert.Equal(t, 1, escalated.EscalationLevel)
	assert.Equal(t, domain.CrmStatusInProgress, escalated.Status)
	assert.Nil(t, escalated.AssignedAgentID)
	assert.Equal(t, env.clock.Now().Add(30*time.Minute), *escalated.EscalationDueAt)

	env.clock.Advance(31 * time.Minute)
	n, err = env.sla.RunAutoEscalation(ctx, testVendor, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	escalated, err = env.tickets.Get(ctx, testVendor, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, escalated.EscalationLevel)
	assert.Equal(t, domain.CrmStatusInProgress, escalated.Status)

	entries := env.history(t, ticket.ID)
	require.Len(t, entries, 4)
	last := entries[3]
	assert.Equal(t, domain.HistoryEscalated, last.Action)
	assert.Equal(t, domain.ActorSystem, last.Actor)
	assert.Equal(t, domain.EscalationReasonSLABreach, last.Comment)
	assert.Equal(t, *last.FromStatus, *last.ToStatus)
	assert.Equal(t, 2, env.events.count(events.EventCrmTicketEscalated))
}

func TestSlaService_AutoEscalationSkipsResolvedTickets(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.upsertPolicy(t, domain.ModuleTicketing, SlaPolicyInput{TargetMinutesLow: intPtr(5), EscalationMinutes: intPtr(5)})
	ticket := env.createTicket(t, domain.ModuleTicketing, "tk-2", domain.CrmPriorityLow)
	_, err := env.tickets.Transition(ctx, testVendor, ticket.ID, domain.CrmStatusOpen, domain.CrmStatusInProgress, "agent-1", "")
	require.NoError(t, err)
	_, err = env.tickets.Transition(ctx, testVendor, ticket.ID, domain.CrmStatusInProgress, domain.CrmStatusResolved, "agent-1", "")
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	n, err := env.sla.RunAutoEscalation(ctx, testVendor, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSlaService_PolicyChangeKeepsExistingDueDates(t *testing.T) {
	env := newTestEnv(t)
	env.upsertPolicy(t, domain.ModuleInsurance, SlaPolicyInput{TargetMinutesNormal: intPtr(120)})
	before := env.createTicket(t, domain.ModuleInsurance, "claim-7", domain.CrmPriorityNormal)

	env.upsertPolicy(t, domain.ModuleInsurance, SlaPolicyInput{TargetMinutesNormal: intPtr(10)})
	after := env.createTicket(t, domain.ModuleInsurance, "claim-8", domain.CrmPriorityNormal)

	stored, err := env.tickets.Get(context.Background(), testVendor, before.ID)
	require.NoError(t, err)
	assert.Equal(t, env.clock.Now().Add(120*time.Minute), *stored.SlaDueAt)
	assert.Equal(t, env.clock.Now().Add(10*time.Minute), *after.SlaDueAt)
}
