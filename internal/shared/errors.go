package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates resource not found.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed input rejected before any side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// InsufficientStockError reports a requested quantity exceeding the computed balance.
type InsufficientStockError struct {
	ProductID   int64
	WarehouseID int64
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d in warehouse %d: available %s, requested %s",
		e.ProductID, e.WarehouseID, e.Available.String(), e.Requested.String())
}

// InvalidStateTransitionError reports a workflow transition requested from a
// status that does not permit it.
type InvalidStateTransitionError struct {
	Entity    string
	Current   string
	Attempted string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("%s cannot %s while %s", e.Entity, e.Attempted, e.Current)
}

// PolicyViolationError reports a business-policy breach such as an
// over-allowance discount or a client/server price mismatch.
type PolicyViolationError struct {
	Policy string
	Detail string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("policy %s violated: %s", e.Policy, e.Detail)
}

// ConcurrencyConflictError reports a lock timeout or a unique-constraint loss.
// Callers that can resolve the conflict (idempotent checkout) must not surface it.
type ConcurrencyConflictError struct {
	Key   string
	Cause error
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict on %s: %v", e.Key, e.Cause)
}

func (e *ConcurrencyConflictError) Unwrap() error { return e.Cause }

// IntegrityError reports an operation that would corrupt domain invariants,
// such as a self-transfer or a negative-cost batch.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: %s", e.Reason)
}
