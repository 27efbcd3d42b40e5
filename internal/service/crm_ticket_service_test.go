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

func (e *testEnv) createTicket(t *testing.T, module domain.CrmModule, sourceRef string, priority domain.CrmPriority) *domain.CrmTicket {
	t.Helper()
	ticket, err := e.tickets.Create(context.Background(), CrmTicketCreateInput{
		VendorID:      testVendor,
		Module:        module,
		SourceRefID:   sourceRef,
		Title:         "Follow up " + sourceRef,
		CustomerName:  "Moussa",
		CustomerPhone: "+221770000000",
		Priority:      priority,
		Actor:         "agent-desk",
	})
	require.NoError(t, err)
	return ticket
}

func (e *testEnv) upsertPolicy(t *testing.T, module domain.CrmModule, input SlaPolicyInput) *domain.CrmSlaPolicy {
	t.Helper()
	policy, err := e.sla.UpsertPolicy(context.Background(), testVendor, module, input)
	require.NoError(t, err)
	return policy
}

func (e *testEnv) history(t *testing.T, ticketID string) []domain.CrmTicketHistory {
	t.Helper()
	entries, err := e.tickets.History(context.Background(), testVendor, ticketID, 0, 0)
	require.NoError(t, err)
	return entries
}

func intPtr(v int) *int { return &v }

func TestCrmTicketService_CreateStampsDueDatesFromPolicy(t *testing.T) {
	env := newTestEnv(t)
	env.upsertPolicy(t, domain.ModuleAppointments, SlaPolicyInput{
		TargetMinutesHigh: intPtr(60),
		EscalationMinutes: intPtr(15),
	})

	ticket := env.createTicket(t, domain.ModuleAppointments, "appt-1", domain.CrmPriorityHigh)

	now := env.clock.Now()
	require.NotNil(t, ticket.SlaDueAt)
	require.NotNil(t, ticket.EscalationDueAt)
	assert.Equal(t, now.Add(60*time.Minute), *ticket.SlaDueAt)
	assert.Equal(t, now.Add(75*time.Minute), *ticket.EscalationDueAt)
	assert.Equal(t, 15, ticket.EscalationMinutes)
	assert.Equal(t, domain.CrmStatusOpen, ticket.Status)
	assert.Equal(t, int64(1), ticket.Version)

	entries := env.history(t, ticket.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.HistoryCreated, entries[0].Action)
	assert.Equal(t, "agent-desk", entries[0].Actor)
	assert.Equal(t, 1, env.events.count(events.EventCrmTicketCreated))
}

func TestCrmTicketService_CreateWithoutPolicyHasNoDueDates(t *testing.T) {
	env := newTestEnv(t)
	inactive := false
	env.upsertPolicy(t, domain.ModuleTelecom, SlaPolicyInput{Active: &inactive})

	untracked := env.createTicket(t, domain.ModuleInsurance, "claim-1", domain.CrmPriorityNormal)
	assert.Nil(t, untracked.SlaDueAt)
	assert.Nil(t, untracked.EscalationDueAt)

	disabled := env.createTicket(t, domain.ModuleTelecom, "line-1", domain.CrmPriorityNormal)
	assert.False(t, disabled.SlaTracked())
}

func TestCrmTicketService_CreateRejectsDuplicateSource(t *testing.T) {
	env := newTestEnv(t)
	env.createTicket(t, domain.ModuleTicketing, "tk-9", domain.CrmPriorityLow)

	_, err := env.tickets.Create(context.Background(), CrmTicketCreateInput{
		VendorID:    testVendor,
		Module:      domain.ModuleTicketing,
		SourceRefID: "tk-9",
		Title:       "Again",
		Priority:    domain.CrmPriorityLow,
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	found, err := env.tickets.GetBySource(context.Background(), testVendor, domain.ModuleTicketing, "tk-9")
	require.NoError(t, err)
	assert.Equal(t, "Follow up tk-9", found.Title)
}

func TestCrmTicketService_CreateAggregatesValidationIssues(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.tickets.Create(context.Background(), CrmTicketCreateInput{
		VendorID: testVendor,
		Module:   "warehouse",
		Priority: "urgent",
	})
	issues := validationIssues(t, err)
	assert.Len(t, issues, 4)
}

func TestCrmTicketService_TransitionRecordsOneHistoryEntry(t *testing.T) {
	env := newTestEnv(t)
	ticket := env.createTicket(t, domain.ModuleQueue, "q-1", domain.CrmPriorityNormal)

	updated, err := env.tickets.Transition(context.Background(), testVendor, ticket.ID,
		domain.CrmStatusOpen, domain.CrmStatusInProgress, "agent-1", "picked up")
	require.NoError(t, err)
	assert.Equal(t, domain.CrmStatusInProgress, updated.Status)
	assert.Equal(t, int64(2), updated.Version)

	entries := env.history(t, ticket.ID)
	require.Len(t, entries, 2)
	changed := entries[1]
	assert.Equal(t, domain.HistoryStatusChanged, changed.Action)
	assert.Equal(t, domain.CrmStatusOpen, *changed.FromStatus)
	assert.Equal(t, domain.CrmStatusInProgress, *changed.ToStatus)
	assert.Equal(t, "picked up", changed.Comment)
	assert.Equal(t, 1, env.events.count(events.EventCrmTicketStatusChanged))
}

func TestCrmTicketService_TransitionRejectsStaleAndIllegalMoves(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ticket := env.createTicket(t, domain.ModuleQueue, "q-2", domain.CrmPriorityNormal)

	_, err := env.tickets.Transition(ctx, testVendor, ticket.ID, domain.CrmStatusOpen, domain.CrmStatusInProgress, "agent-1", "")
	require.NoError(t, err)

	_, err = env.tickets.Transition(ctx, testVendor, ticket.ID, domain.CrmStatusOpen, domain.CrmStatusInProgress, "agent-2", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStaleTransition))

	_, err = env.tickets.Transition(ctx, testVendor, ticket.ID, domain.CrmStatusInProgress, domain.CrmStatusOpen, "agent-1", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	_, err = env.tickets.Transition(ctx, testVendor, ticket.ID, "archived", domain.CrmStatusClosed, "agent-1", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = env.tickets.Transition(ctx, "vendor-2", ticket.ID, domain.CrmStatusInProgress, domain.CrmStatusResolved, "agent-1", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	assert.Len(t, env.history(t, ticket.ID), 2)
}

func TestCrmTicketService_CloseClearsEscalation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.upsertPolicy(t, domain.ModuleUtilities, SlaPolicyInput{TargetMinutesCritical: intPtr(10), EscalationMinutes: intPtr(10)})
	ticket := env.createTicket(t, domain.ModuleUtilities, "outage-1", domain.CrmPriorityCritical)

	env.clock.Advance(21 * time.Minute)
	n, err := env.sla.RunAutoEscalation(ctx, testVendor, "")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	closed, err := env.tickets.Transition(ctx, testVendor, ticket.ID, domain.CrmStatusOpen, domain.CrmStatusClosed, "agent-1", "fixed")
	require.NoError(t, err)
	assert.False(t, closed.Escalated)
	assert.Nil(t, closed.EscalationDueAt)
	assert.Equal(t, 1, closed.EscalationLevel)

	env.clock.Advance(time.Hour)
	n, err = env.sla.RunAutoEscalation(ctx, testVendor, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCrmTicketService_Assign(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ticket := env.createTicket(t, domain.ModuleBankingMicrofinance, "loan-1", domain.CrmPriorityHigh)

	name := "Fatou"
	agent, err := env.agents.Create(ctx, testVendor, CrmAgentInput{Name: &name, Skills: []string{"loans"}})
	require.NoError(t, err)
	assert.True(t, agent.Active)

	assigned, err := env.tickets.Assign(ctx, testVendor, ticket.ID, agent.ID, "supervisor")
	require.NoError(t, err)
	require.NotNil(t, assigned.AssignedAgentID)
	assert.Equal(t, agent.ID, *assigned.AssignedAgentID)
	assert.Equal(t, domain.CrmStatusOpen, assigned.Status)

	again, err := env.tickets.Assign(ctx, testVendor, ticket.ID, agent.ID, "supervisor")
	require.NoError(t, err)
	assert.Equal(t, assigned.Version, again.Version)

	entries := env.history(t, ticket.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.HistoryAssigned, entries[1].Action)
	assert.Equal(t, agent.ID, entries[1].Comment)
	assert.Equal(t, 1, env.events.count(events.EventCrmTicketAssigned))
}

func TestCrmTicketService_AssignRejectsInactiveAgentAndClosedTicket(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ticket := env.createTicket(t, domain.ModuleInterventions, "job-1", domain.CrmPriorityNormal)

	name := "Ibrahima"
	inactive := false
	agent, err := env.agents.Create(ctx, testVendor, CrmAgentInput{Name: &name, Active: &inactive})
	require.NoError(t, err)

	_, err = env.tickets.Assign(ctx, testVendor, ticket.ID, agent.ID, "supervisor")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = env.tickets.Assign(ctx, testVendor, ticket.ID, "missing-agent", "supervisor")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	active := true
	_, err = env.agents.Update(ctx, testVendor, agent.ID, CrmAgentInput{Active: &active})
	require.NoError(t, err)

	_, err = env.tickets.Transition(ctx, testVendor, ticket.ID, domain.CrmStatusOpen, domain.CrmStatusClosed, "agent-1", "")
	require.NoError(t, err)
	_, err = env.tickets.Assign(ctx, testVendor, ticket.ID, agent.ID, "supervisor")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestCrmTicketService_CommentAndList(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	first := env.createTicket(t, domain.ModuleAppointments, "a-1", domain.CrmPriorityNormal)
	env.clock.Advance(time.Minute)
	env.createTicket(t, domain.ModuleInsurance, "i-1", domain.CrmPriorityNormal)

	_, err := env.tickets.Comment(ctx, testVendor, first.ID, "agent-1", "  ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = env.tickets.Comment(ctx, testVendor, first.ID, "agent-1", "customer called back")
	require.NoError(t, err)
	entries := env.history(t, first.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.HistoryComment, entries[1].Action)

	all, err := env.tickets.List(ctx, testVendor, CrmTicketListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.ModuleInsurance, all[0].Module)

	module := domain.ModuleAppointments
	filtered, err := env.tickets.List(ctx, testVendor, CrmTicketListFilter{Module: &module})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, first.ID, filtered[0].ID)

	other, err := env.tickets.List(ctx, "vendor-2", CrmTicketListFilter{})
	require.NoError(t, err)
	assert.Empty(t, other)
}
