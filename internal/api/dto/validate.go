package dto

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/chatcommerce/commerce-service/internal/domain"
	apperrors "github.com/chatcommerce/commerce-service/pkg/util/errorutil"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks struct tags on a request body and reports every failing
// field in the same shape as service validation results.
func Validate(req any) error {
	err := instance().Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result := domain.NewValidationResult()
	for _, fe := range fieldErrs {
		result.Add(domain.IssueMissingField, fe.Field(), describe(fe))
	}
	return apperrors.NewValidationFailure("request validation failed", result.Errors)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "gt", "gte":
		return fe.Field() + " must be " + fe.Tag() + " " + fe.Param()
	case "max":
		return fe.Field() + " is too long"
	case "email":
		return fe.Field() + " must be a valid email"
	}
	return fe.Field() + " is invalid"
}
