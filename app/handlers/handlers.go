// Package handlers translates HTTP requests into business flow calls and
// renders flow results and errors as API responses
package handlers

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// getValidationErrorMessage renders one validator.FieldError as a
// human-readable message for the error details payload.
func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", err.Field(), err.Param())
	case "max":
		return fmt.Sprintf("%s exceeds the maximum length of %s", err.Field(), err.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
	default:
		return fmt.Sprintf("%s is invalid", err.Field())
	}
}
