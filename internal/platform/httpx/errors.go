// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var (
		validationErr *shared.ValidationError
		stockErr      *shared.InsufficientStockError
		stateErr      *shared.InvalidStateTransitionError
		policyErr     *shared.PolicyViolationError
		conflictErr   *shared.ConcurrencyConflictError
		integrityErr  *shared.IntegrityError
	)
	switch {
	case errors.As(err, &validationErr):
		Problem(w, http.StatusBadRequest, "Validation Failed", validationErr.Error())
	case errors.As(err, &stockErr):
		ProblemWithMeta(w, http.StatusUnprocessableEntity, "Insufficient Stock", stockErr.Error(), map[string]any{
			"product_id":   stockErr.ProductID,
			"warehouse_id": stockErr.WarehouseID,
			"available":    stockErr.Available.String(),
			"requested":    stockErr.Requested.String(),
		})
	case errors.As(err, &stateErr):
		ProblemWithMeta(w, http.StatusConflict, "Invalid State Transition", stateErr.Error(), map[string]any{
			"current_status": stateErr.Current,
			"attempted":      stateErr.Attempted,
		})
	case errors.As(err, &policyErr):
		Problem(w, http.StatusUnprocessableEntity, "Policy Violation", policyErr.Error())
	case errors.As(err, &conflictErr):
		Problem(w, http.StatusConflict, "Conflict", conflictErr.Error())
	case errors.As(err, &integrityErr):
		Problem(w, http.StatusUnprocessableEntity, "Integrity Violation", integrityErr.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
