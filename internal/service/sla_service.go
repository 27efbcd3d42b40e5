package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/chatcommerce/commerce-service/internal/domain"
	"github.com/chatcommerce/commerce-service/internal/events"
	"github.com/chatcommerce/commerce-service/internal/observability"
	"github.com/chatcommerce/commerce-service/internal/repository"
	apperrors "github.com/chatcommerce/commerce-service/pkg/util/errorutil"
)

// SlaService owns SLA policies and the auto-escalation scan.
type SlaService struct {
	policies   repository.CrmSlaPolicyRepository
	tickets    repository.CrmTicketRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	clock      Clock
	batchSize  int
}

// SlaDependencies bundles collaborators for the SLA service.
type SlaDependencies struct {
	PolicyRepo repository.CrmSlaPolicyRepository
	TicketRepo repository.CrmTicketRepository
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      Clock
	BatchSize  int
}

// SlaPolicyInput carries the editable policy fields; nil fields take defaults.
type SlaPolicyInput struct {
	TargetMinutesLow      *int
	TargetMinutesNormal   *int
	TargetMinutesHigh     *int
	TargetMinutesCritical *int
	EscalationMinutes     *int
	Active                *bool
}

// NewSlaService constructs the service.
func NewSlaService(deps SlaDependencies) *SlaService {
	batch := deps.BatchSize
	if batch <= 0 {
		batch = 500
	}
	return &SlaService{
		policies:   deps.PolicyRepo,
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     loggerOrNop(deps.Logger),
		clock:      clockOrDefault(deps.Clock),
		batchSize:  batch,
	}
}

// PolicyFor returns the active policy of a module, or nil when SLA tracking is off.
func (s *SlaService) PolicyFor(ctx context.Context, vendorID string, module domain.CrmModule) (*domain.CrmSlaPolicy, error) {
	policy, err := s.policies.GetByModule(ctx, vendorID, module)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, mapRepoError(err, "sla policy", nil)
	}
	if !policy.Active {
		return nil, nil
	}
	return policy, nil
}

// DueDates computes the due dates a new ticket gets, or nil without an active policy.
func (s *SlaService) DueDates(ctx context.Context, vendorID string, module domain.CrmModule, priority domain.CrmPriority, createdAt time.Time) (*domain.SlaDates, error) {
	policy, err := s.PolicyFor(ctx, vendorID, module)
	if err != nil || policy == nil {
		return nil, err
	}
	dates := policy.DueDates(createdAt, priority)
	return &dates, nil
}

// UpsertPolicy creates or replaces the module policy. Existing tickets keep
// the due dates they were created with.
func (s *SlaService) UpsertPolicy(ctx context.Context, vendorID string, module domain.CrmModule, input SlaPolicyInput) (*domain.CrmSlaPolicy, error) {
	if !module.Valid() {
		return nil, apperrors.NewValidationError("unknown module", map[string]any{"module": module})
	}
	policy := &domain.CrmSlaPolicy{
		ID:                    newID(),
		VendorID:              vendorID,
		Module:                module,
		TargetMinutesLow:      intOr(input.TargetMinutesLow, domain.DefaultTargetMinutesLow),
		TargetMinutesNormal:   intOr(input.TargetMinutesNormal, domain.DefaultTargetMinutesNormal),
		TargetMinutesHigh:     intOr(input.TargetMinutesHigh, domain.DefaultTargetMinutesHigh),
		TargetMinutesCritical: intOr(input.TargetMinutesCritical, domain.DefaultTargetMinutesCritical),
		EscalationMinutes:     intOr(input.EscalationMinutes, domain.DefaultEscalationMinutes),
		Active:                true,
	}
	if input.Active != nil {
		policy.Active = *input.Active
	}

	result := domain.NewValidationResult()
	for field, value := range map[string]int{
		"targetMinutesLow":      policy.TargetMinutesLow,
		"targetMinutesNormal":   policy.TargetMinutesNormal,
		"targetMinutesHigh":     policy.TargetMinutesHigh,
		"targetMinutesCritical": policy.TargetMinutesCritical,
		"escalationMinutes":     policy.EscalationMinutes,
	} {
		if value <= 0 {
			result.Add(domain.IssueMissingField, field, field+" must be greater than zero")
		}
	}
	if !result.Valid {
		return nil, apperrors.NewValidationFailure("invalid sla policy", result.Errors)
	}

	if err := s.policies.Upsert(ctx, policy); err != nil {
		return nil, mapRepoError(err, "sla policy", nil)
	}
	s.logger.Info("sla policy saved", zap.String("vendor_id", vendorID), zap.String("module", string(module)))
	return policy, nil
}

// ListPolicies returns the vendor's policies ordered by module.
func (s *SlaService) ListPolicies(ctx context.Context, vendorID string) ([]domain.CrmSlaPolicy, error) {
	policies, err := s.policies.ListByVendor(ctx, vendorID)
	if err != nil {
		return nil, mapRepoError(err, "sla policy", nil)
	}
	return policies, nil
}

// RunAutoEscalation escalates every breaching ticket of the vendor once per
// escalation window and returns how many were escalated. It never changes a
// ticket's status or assignee.
func (s *SlaService) RunAutoEscalation(ctx context.Context, vendorID, actor string) (int, error) {
	ctx, span := observability.Tracer().Start(ctx, "sla.run_auto_escalation",
		trace.WithAttributes(attribute.String("vendor.id", vendorID)))
	defer span.End()

	if actor == "" {
		actor = domain.ActorSystem
	}
	now := s.clock()
	escalated := 0
	for {
		due, err := s.tickets.ListEscalationDue(ctx, vendorID, now, s.batchSize)
		if err != nil {
			return escalated, mapRepoError(err, "ticket", nil)
		}
		progressed := 0
		for i := range due {
			if ctx.Err() != nil {
				return escalated, ctx.Err()
			}
			ok, err := s.escalate(ctx, &due[i], now, actor)
			if err != nil {
				s.logger.Warn("failed to escalate ticket", zap.String("ticket_id", due[i].ID), zap.Error(err))
				continue
			}
			if ok {
				progressed++
			}
		}
		escalated += progressed
		if len(due) < s.batchSize || progressed == 0 {
			break
		}
	}

	span.SetAttributes(attribute.Int("sla.escalated", escalated))
	s.metrics.RecordEscalations(escalated)
	if escalated > 0 {
		s.logger.Info("tickets escalated", zap.String("vendor_id", vendorID), zap.Int("count", escalated))
	}
	return escalated, nil
}

func (s *SlaService) escalate(ctx context.Context, ticket *domain.CrmTicket, now time.Time, actor string) (bool, error) {
	if !ticket.EscalationDue(now) {
		return false, nil
	}
	status := ticket.Status
	ticket.Escalate(now)
	entry := &domain.CrmTicketHistory{
		ID:         newID(),
		VendorID:   ticket.VendorID,
		TicketID:   ticket.ID,
		Action:     domain.HistoryEscalated,
		Actor:      actor,
		FromStatus: &status,
		ToStatus:   &status,
		Comment:    domain.EscalationReasonSLABreach,
	}
	applied, err := s.tickets.Apply(ctx, ticket, entry)
	if err != nil || !applied {
		return false, err
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:        events.EventCrmTicketEscalated,
		VendorID:    ticket.VendorID,
		AggregateID: ticket.ID,
		Actor:       actor,
		Payload: events.CrmTicketEscalatedPayload{
			Level:           ticket.EscalationLevel,
			Reason:          domain.EscalationReasonSLABreach,
			EscalationDueAt: ticket.EscalationDueAt,
		},
	})
	return true, nil
}

func intOr(value *int, fallback int) int {
	if value == nil {
		return fallback
	}
	return *value
}
