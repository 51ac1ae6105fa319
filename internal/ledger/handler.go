package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	cache    *BalanceCache
	validate *validator.Validate
}

// NewHandler constructs ledger handler.
func NewHandler(logger *slog.Logger, service *Service, cache *BalanceCache) *Handler {
	return &Handler{logger: logger, service: service, cache: cache, validate: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/balance", h.handleBalance)
	r.Post("/balances", h.handleBulkBalance)
	r.Get("/value", h.handleValue)
	r.Get("/movements", h.handleListMovements)
	r.Post("/movements", h.handleRecord)
	r.Post("/movements/{id}/reverse", h.handleReverse)
}

type balanceResponse struct {
	ProductID   int64           `json:"product_id"`
	WarehouseID *int64          `json:"warehouse_id,omitempty"`
	Balance     decimal.Decimal `json:"balance"`
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	productID, err := queryInt64(r, "product_id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "product_id must be an integer")
		return
	}
	warehouseID, err := queryOptionalInt64(r, "warehouse_id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "warehouse_id must be an integer")
		return
	}

	if balance, ok := h.cache.Get(r.Context(), productID, warehouseID); ok {
		httpx.JSON(w, http.StatusOK, balanceResponse{ProductID: productID, WarehouseID: warehouseID, Balance: balance})
		return
	}

	balance, err := h.service.CurrentBalance(r.Context(), productID, warehouseID)
	if err != nil {
		h.logger.Error("current balance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.cache.Set(r.Context(), productID, warehouseID, balance)
	httpx.JSON(w, http.StatusOK, balanceResponse{ProductID: productID, WarehouseID: warehouseID, Balance: balance})
}

type bulkBalanceRequest struct {
	ProductIDs  []int64 `json:"product_ids" validate:"required,min=1,dive,gt=0"`
	WarehouseID *int64  `json:"warehouse_id"`
}

func (h *Handler) handleBulkBalance(w http.ResponseWriter, r *http.Request) {
	var req bulkBalanceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	balances, err := h.service.BulkBalance(r.Context(), req.ProductIDs, req.WarehouseID)
	if err != nil {
		h.logger.Error("bulk balance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"balances": balances})
}

func (h *Handler) handleValue(w http.ResponseWriter, r *http.Request) {
	productID, err := queryInt64(r, "product_id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "product_id must be an integer")
		return
	}
	warehouseID, err := queryOptionalInt64(r, "warehouse_id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "warehouse_id must be an integer")
		return
	}

	value, err := h.service.StockValue(r.Context(), productID, warehouseID)
	if err != nil {
		h.logger.Error("stock value", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product_id": productID, "value": value})
}

func (h *Handler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	filter, err := parseMovementFilter(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": toMovementDTOs(movements)})
}

type recordRequest struct {
	ProductID   int64           `json:"product_id" validate:"required,gt=0"`
	WarehouseID int64           `json:"warehouse_id" validate:"required,gt=0"`
	BranchID    int64           `json:"branch_id"`
	Direction   string          `json:"direction" validate:"required,oneof=in out"`
	Qty         decimal.Decimal `json:"qty" validate:"required"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Type        string          `json:"movement_type" validate:"required"`
	Reference   string          `json:"reference"`
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())

	var req recordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	movement, err := h.service.Record(r.Context(), MovementInput{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		BranchID:    req.BranchID,
		Direction:   Direction(req.Direction),
		Qty:         req.Qty,
		UnitCost:    req.UnitCost,
		Type:        MovementType(req.Type),
		Reference:   req.Reference,
		ActorID:     identity.UserID,
	})
	if err != nil {
		h.logger.Error("record movement", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMovementDTO(movement))
}

type reverseRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) handleReverse(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())

	movementID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id must be an integer")
		return
	}
	var req reverseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	movement, err := h.service.Reverse(r.Context(), movementID, req.Reason, identity.UserID)
	if err != nil {
		h.logger.Error("reverse movement", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMovementDTO(movement))
}

type movementDTO struct {
	ID             int64           `json:"id"`
	ProductID      int64           `json:"product_id"`
	WarehouseID    int64           `json:"warehouse_id"`
	BranchID       int64           `json:"branch_id,omitempty"`
	Direction      string          `json:"direction"`
	Qty            decimal.Decimal `json:"qty"`
	SignedQty      decimal.Decimal `json:"signed_qty"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	ValuatedAmount decimal.Decimal `json:"valuated_amount"`
	Type           string          `json:"movement_type"`
	Reference      string          `json:"reference,omitempty"`
	ReversalOfID   int64           `json:"reversal_of_id,omitempty"`
	CreatedBy      int64           `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toMovementDTO(m Movement) movementDTO {
	return movementDTO{
		ID:             m.ID,
		ProductID:      m.ProductID,
		WarehouseID:    m.WarehouseID,
		BranchID:       m.BranchID,
		Direction:      string(m.Direction),
		Qty:            m.Qty,
		SignedQty:      m.SignedQty,
		UnitCost:       m.UnitCost,
		ValuatedAmount: m.ValuatedAmount,
		Type:           string(m.Type),
		Reference:      m.Reference,
		ReversalOfID:   m.ReversalOfID,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
	}
}

func toMovementDTOs(movements []Movement) []movementDTO {
	dtos := make([]movementDTO, 0, len(movements))
	for _, m := range movements {
		dtos = append(dtos, toMovementDTO(m))
	}
	return dtos
}

func parseMovementFilter(r *http.Request) (MovementFilter, error) {
	var filter MovementFilter
	q := r.URL.Query()
	var err error
	if filter.ProductID, err = optionalInt(q.Get("product_id")); err != nil {
		return filter, shared.NewValidationError("product_id", "must be an integer")
	}
	if filter.WarehouseID, err = optionalInt(q.Get("warehouse_id")); err != nil {
		return filter, shared.NewValidationError("warehouse_id", "must be an integer")
	}
	for _, raw := range q["type"] {
		movementType := MovementType(raw)
		if !movementType.Valid() {
			return filter, shared.NewValidationError("type", "unknown movement type")
		}
		filter.Types = append(filter.Types, movementType)
	}
	if from := q.Get("from"); from != "" {
		if filter.From, err = time.Parse("2006-01-02", from); err != nil {
			return filter, shared.NewValidationError("from", "must be YYYY-MM-DD")
		}
	}
	if to := q.Get("to"); to != "" {
		parsed, err := time.Parse("2006-01-02", to)
		if err != nil {
			return filter, shared.NewValidationError("to", "must be YYYY-MM-DD")
		}
		filter.To = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	if limit, err := optionalInt(q.Get("limit")); err == nil {
		filter.Limit = int(limit)
	}
	if offset, err := optionalInt(q.Get("offset")); err == nil {
		filter.Offset = int(offset)
	}
	return filter, nil
}

func queryInt64(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
}

func queryOptionalInt64(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func optionalInt(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
