package core

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"rainbowatch/internal/types"
)

// Validator wraps go-playground/validator for request DTO validation.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with struct-tag validation enabled.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// ValidateStruct checks dst against its validate tags and translates the
// first violation into a field-level AppError.
func (v *Validator) ValidateStruct(dst any) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	first := verrs[0]
	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationMissingField,
		"invalid value for field "+first.Field(),
		err,
		map[string]any{
			"field": first.Field(),
			"rule":  first.Tag(),
		},
	)
}
