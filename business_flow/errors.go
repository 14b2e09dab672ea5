// Package businessflow contains the core business logic for the pricing engine
package businessflow

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors the handlers translate into API error codes
var (
	// Request and rule validation errors
	ErrValidation = errors.New("validation failed")

	// Not-found errors
	ErrGarmentNotFound     = errors.New("garment not found")
	ErrRuleNotFound        = errors.New("pricing rule not found")
	ErrRuleVersionNotFound = errors.New("pricing rule version not found")
	ErrNoMatchingRule      = errors.New("no applicable pricing rule")

	// Matching errors
	ErrAmbiguousMatch = errors.New("ambiguous rule match")

	// Rule lifecycle errors
	ErrRollbackToCurrentVersion = errors.New("rule is already at this version")
	ErrRuleAlreadyInactive      = errors.New("pricing rule is already inactive")

	// Pipeline errors
	ErrCalculation       = errors.New("calculation failed")
	ErrCostLookupTimeout = errors.New("cost lookup timeout")

	// Infrastructure errors
	ErrCacheNotAvailable = errors.New("cache not available")
	ErrPersistence       = errors.New("persistence failure")

	// Filter errors
	ErrInvalidPage           = errors.New("page must be at least 1")
	ErrInvalidPageSize       = errors.New("page size must be between 1 and 100")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
)

// FieldViolation points at one offending request or rule field
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violated field of a request or rule
// definition, so callers can fix all of them in one round trip.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is reports membership in the validation error kind
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a ValidationError from collected violations
func NewValidationError(violations []FieldViolation) *ValidationError {
	return &ValidationError{Violations: violations}
}

// CalculationError reports a pipeline stage failure. Stage names the failing
// stage and Dimension the missing or offending configuration entry, so admin
// tooling can point at the exact rule field to fix.
type CalculationError struct {
	Stage     string
	Dimension string
	Message   string
	Err       error
}

func (e *CalculationError) Error() string {
	if e.Dimension != "" {
		return fmt.Sprintf("calculation failed at stage %s (%s): %s", e.Stage, e.Dimension, e.Message)
	}
	return fmt.Sprintf("calculation failed at stage %s: %s", e.Stage, e.Message)
}

// Is reports membership in the calculation error kind
func (e *CalculationError) Is(target error) bool {
	return target == ErrCalculation
}

func (e *CalculationError) Unwrap() error {
	return e.Err
}

// NewCalculationError creates a CalculationError for a failing stage
func NewCalculationError(stage, dimension, message string) *CalculationError {
	return &CalculationError{Stage: stage, Dimension: dimension, Message: message}
}

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsGarmentNotFound(err error) bool {
	return errors.Is(err, ErrGarmentNotFound)
}

func IsRuleNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}

func IsRuleVersionNotFound(err error) bool {
	return errors.Is(err, ErrRuleVersionNotFound)
}

func IsNoMatchingRule(err error) bool {
	return errors.Is(err, ErrNoMatchingRule)
}

// IsNotFound reports whether the error is any of the not-found kinds
func IsNotFound(err error) bool {
	return IsGarmentNotFound(err) || IsRuleNotFound(err) ||
		IsRuleVersionNotFound(err) || IsNoMatchingRule(err)
}

func IsAmbiguousMatch(err error) bool {
	return errors.Is(err, ErrAmbiguousMatch)
}

func IsRollbackToCurrentVersion(err error) bool {
	return errors.Is(err, ErrRollbackToCurrentVersion)
}

func IsRuleAlreadyInactive(err error) bool {
	return errors.Is(err, ErrRuleAlreadyInactive)
}

func IsCalculationError(err error) bool {
	return errors.Is(err, ErrCalculation)
}

func IsCostLookupTimeout(err error) bool {
	return errors.Is(err, ErrCostLookupTimeout)
}

func IsCacheNotAvailable(err error) bool {
	return errors.Is(err, ErrCacheNotAvailable)
}

func IsPersistenceError(err error) bool {
	return errors.Is(err, ErrPersistence)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}

func IsStartDateAfterEndDate(err error) bool {
	return errors.Is(err, ErrStartDateAfterEndDate)
}
