package costing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler wires HTTP endpoints for cost batches.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	repo     RepositoryPort
	validate *validator.Validate
}

// NewHandler constructs costing handler.
func NewHandler(logger *slog.Logger, service *Service, repo RepositoryPort) *Handler {
	return &Handler{logger: logger, service: service, repo: repo, validate: validator.New()}
}

// MountRoutes registers costing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/receipts", h.handleReceipt)
	r.Get("/batches", h.handleGetBatch)
	r.Get("/average", h.handleAverage)
}

type receiptRequest struct {
	ProductID   int64           `json:"product_id" validate:"required,gt=0"`
	WarehouseID int64           `json:"warehouse_id" validate:"required,gt=0"`
	BranchID    int64           `json:"branch_id"`
	BatchNumber string          `json:"batch_number" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity" validate:"required"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
}

type batchDTO struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	WarehouseID int64           `json:"warehouse_id"`
	BranchID    int64           `json:"branch_id,omitempty"`
	BatchNumber string          `json:"batch_number"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
}

func toBatchDTO(b CostBatch) batchDTO {
	return batchDTO{
		ID:          b.ID,
		ProductID:   b.ProductID,
		WarehouseID: b.WarehouseID,
		BranchID:    b.BranchID,
		BatchNumber: b.BatchNumber,
		Quantity:    b.Quantity,
		UnitCost:    b.UnitCost,
	}
}

func (h *Handler) handleReceipt(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())

	var req receiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	batch, err := h.service.AddToBatch(r.Context(), ReceiptInput{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		BranchID:    req.BranchID,
		BatchNumber: req.BatchNumber,
		Quantity:    req.Quantity,
		UnitCost:    req.UnitCost,
		ActorID:     identity.UserID,
	})
	if err != nil {
		h.logger.Error("batch receipt", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toBatchDTO(batch))
}

func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	productID, warehouseID, err := keyParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	batchNumber := r.URL.Query().Get("batch_number")
	if batchNumber == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "batch_number is required")
		return
	}

	batch, err := h.service.GetBatch(r.Context(), productID, warehouseID, batchNumber)
	if errors.Is(err, ErrBatchNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	if err != nil {
		h.logger.Error("get batch", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBatchDTO(batch))
}

func (h *Handler) handleAverage(w http.ResponseWriter, r *http.Request) {
	productID, warehouseID, err := keyParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	cost, err := h.repo.AverageUnitCost(r.Context(), productID, warehouseID)
	if err != nil {
		h.logger.Error("average unit cost", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product_id":   productID,
		"warehouse_id": warehouseID,
		"unit_cost":    cost,
	})
}

func keyParams(r *http.Request) (int64, int64, error) {
	productID, err := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	if err != nil {
		return 0, 0, shared.NewValidationError("product_id", "must be an integer")
	}
	warehouseID, err := strconv.ParseInt(r.URL.Query().Get("warehouse_id"), 10, 64)
	if err != nil {
		return 0, 0, shared.NewValidationError("warehouse_id", "must be an integer")
	}
	return productID, warehouseID, nil
}
