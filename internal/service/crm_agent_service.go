package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/chatcommerce/commerce-service/internal/domain"
	"github.com/chatcommerce/commerce-service/internal/repository"
	apperrors "github.com/chatcommerce/commerce-service/pkg/util/errorutil"
)

// CrmAgentService manages the vendor's back-office agents.
type CrmAgentService struct {
	agents repository.CrmAgentRepository
	logger *zap.Logger
}

// CrmAgentInput carries agent fields. On update nil fields are left unchanged.
type CrmAgentInput struct {
	Name   *string
	Phone  *string
	Email  *string
	Skills []string
	Active *bool
}

// NewCrmAgentService constructs the service.
func NewCrmAgentService(agents repository.CrmAgentRepository, logger *zap.Logger) *CrmAgentService {
	return &CrmAgentService{agents: agents, logger: loggerOrNop(logger)}
}

// Create registers an active agent.
func (s *CrmAgentService) Create(ctx context.Context, vendorID string, input CrmAgentInput) (*domain.CrmAgent, error) {
	if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
		return nil, apperrors.NewValidationError("name is required", nil)
	}
	agent := &domain.CrmAgent{
		ID:       newID(),
		VendorID: vendorID,
		Name:     strings.TrimSpace(*input.Name),
		Phone:    input.Phone,
		Email:    input.Email,
		Skills:   input.Skills,
		Active:   true,
	}
	if input.Active != nil {
		agent.Active = *input.Active
	}
	if err := s.agents.Create(ctx, agent); err != nil {
		return nil, mapRepoError(err, "agent", nil)
	}
	s.logger.Info("agent created", zap.String("vendor_id", vendorID), zap.String("agent_id", agent.ID))
	return agent, nil
}

// Update edits an agent. Deactivating an agent leaves its tickets assigned.
func (s *CrmAgentService) Update(ctx context.Context, vendorID, agentID string, input CrmAgentInput) (*domain.CrmAgent, error) {
	agent, err := s.Get(ctx, vendorID, agentID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewValidationError("name cannot be empty", nil)
		}
		agent.Name = name
	}
	if input.Phone != nil {
		agent.Phone = input.Phone
	}
	if input.Email != nil {
		agent.Email = input.Email
	}
	if input.Skills != nil {
		agent.Skills = input.Skills
	}
	if input.Active != nil {
		agent.Active = *input.Active
	}
	if err := s.agents.Update(ctx, agent); err != nil {
		return nil, mapRepoError(err, "agent", map[string]any{"agent_id": agentID})
	}
	return agent, nil
}

// Get returns one agent of the vendor.
func (s *CrmAgentService) Get(ctx context.Context, vendorID, agentID string) (*domain.CrmAgent, error) {
	agent, err := s.agents.GetByID(ctx, vendorID, agentID)
	if err != nil {
		return nil, mapRepoError(err, "agent", map[string]any{"agent_id": agentID})
	}
	return agent, nil
}

// List returns the vendor's agents ordered by name.
func (s *CrmAgentService) List(ctx context.Context, vendorID string, limit int) ([]domain.CrmAgent, error) {
	agents, err := s.agents.ListByVendor(ctx, vendorID, limit)
	if err != nil {
		return nil, mapRepoError(err, "agent", nil)
	}
	return agents, nil
}
