package dto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatcommerce/commerce-service/internal/domain"
	apperrors "github.com/chatcommerce/commerce-service/pkg/util/errorutil"
)

func TestValidate_ReportsEveryFieldByJSONName(t *testing.T) {
	err := Validate(&CreateCrmTicketRequest{Priority: "urgent"})

	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, apperrors.CodeValidationFailed, domainErr.Code)

	issues, ok := domainErr.Details["errors"].([]domain.ValidationIssue)
	require.True(t, ok)
	fields := make([]string, 0, len(issues))
	for _, issue := range issues {
		fields = append(fields, issue.Field)
	}
	assert.ElementsMatch(t, []string{"module", "sourceRefId", "title", "priority"}, fields)
}

func TestValidate_OptionalPointers(t *testing.T) {
	assert.NoError(t, Validate(&SlaPolicyRequest{}))

	zero := 0
	err := Validate(&SlaPolicyRequest{EscalationMinutes: &zero})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	assert.True(t, apperrors.HasCode(Validate(&StockRequest{}), apperrors.CodeValidationFailed))
	stock := 3
	assert.NoError(t, Validate(&StockRequest{Stock: &stock}))
}

func TestValidate_PaymentMethodMustBeKnown(t *testing.T) {
	err := Validate(&PaymentWebhookRequest{OrderID: "o-1", Method: "bitcoin"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	assert.NoError(t, Validate(&PaymentWebhookRequest{OrderID: "o-1", Method: domain.PaymentMethodOrangeMoney}))
}
