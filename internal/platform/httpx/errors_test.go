package httpx_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func respond(t *testing.T, err error) (int, httpx.ProblemDetail) {
	t.Helper()
	rec := httptest.NewRecorder()
	httpx.RespondError(rec, err)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	return rec.Code, problem
}

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		title  string
	}{
		{"validation", shared.NewValidationError("qty", "must be positive"), http.StatusBadRequest, "Validation Failed"},
		{"insufficient stock", &shared.InsufficientStockError{ProductID: 1, WarehouseID: 2}, http.StatusUnprocessableEntity, "Insufficient Stock"},
		{"state transition", &shared.InvalidStateTransitionError{Entity: "transfer", Current: "completed", Attempted: "ship"}, http.StatusConflict, "Invalid State Transition"},
		{"policy", &shared.PolicyViolationError{Policy: "max_discount", Detail: "15 > 10"}, http.StatusUnprocessableEntity, "Policy Violation"},
		{"conflict", &shared.ConcurrencyConflictError{Key: "sale", Cause: errors.New("lost race")}, http.StatusConflict, "Conflict"},
		{"integrity", &shared.IntegrityError{Reason: "self transfer"}, http.StatusUnprocessableEntity, "Integrity Violation"},
		{"not found", shared.ErrNotFound, http.StatusNotFound, "Not Found"},
		{"wrapped not found", fmt.Errorf("load transfer: %w", shared.ErrNotFound), http.StatusNotFound, "Not Found"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Internal Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, problem := respond(t, tc.err)
			require.Equal(t, tc.status, status)
			require.Equal(t, tc.title, problem.Title)
			require.Equal(t, tc.status, problem.Status)
		})
	}
}

func TestInsufficientStockCarriesMeta(t *testing.T) {
	err := &shared.InsufficientStockError{
		ProductID:   7,
		WarehouseID: 3,
		Available:   decimal.RequireFromString("4"),
		Requested:   decimal.RequireFromString("10"),
	}
	status, problem := respond(t, err)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, "4", problem.Meta["available"])
	require.Equal(t, "10", problem.Meta["requested"])
	require.EqualValues(t, 7, problem.Meta["product_id"])
}

func TestInternalErrorHidesDetail(t *testing.T) {
	_, problem := respond(t, errors.New("pq: secret dsn in message"))
	require.Empty(t, problem.Detail)
}
