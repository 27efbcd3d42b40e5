package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	wrapped := fmt.Errorf("confirm payment: %w", NewNotFound("order", map[string]any{"order_id": "o-1"}))
	domainErr := ToDomainError(wrapped)
	require.NotNil(t, domainErr)
	assert.Equal(t, CodeNotFound, domainErr.Code)
	assert.Equal(t, http.StatusNotFound, domainErr.HTTPStatus)

	cause := errors.New("connection refused")
	internal := ToDomainError(cause)
	assert.Equal(t, CodeInternal, internal.Code)
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)
	assert.ErrorIs(t, internal, cause)
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NewStaleTransition(nil))
	assert.True(t, HasCode(err, CodeStaleTransition))
	assert.False(t, HasCode(err, CodeInvalidTransition))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))

	var domainErr *DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.True(t, domainErr.Retryable())
}
