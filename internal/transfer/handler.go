package transfer

import (
	"context"
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

// Handler wires HTTP endpoints for the transfer workflow.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs transfer handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers transfer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/statistics", h.handleStatistics)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/approve", h.handleApprove)
	r.Post("/{id}/ship", h.handleShip)
	r.Post("/{id}/receive", h.handleReceive)
	r.Post("/{id}/reject", h.handleReject)
	r.Post("/{id}/cancel", h.handleCancel)
}

type createItemRequest struct {
	ProductID   int64           `json:"product_id" validate:"required,gt=0"`
	Qty         decimal.Decimal `json:"qty" validate:"required"`
	BatchNumber string          `json:"batch_number"`
	ExpiryDate  *time.Time      `json:"expiry_date"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Condition   string          `json:"condition"`
	Notes       string          `json:"notes"`
}

type createRequest struct {
	FromWarehouseID  int64               `json:"from_warehouse_id" validate:"required,gt=0"`
	ToWarehouseID    int64               `json:"to_warehouse_id" validate:"required,gt=0"`
	FromBranchID     int64               `json:"from_branch_id"`
	ToBranchID       int64               `json:"to_branch_id"`
	TransferDate     *time.Time          `json:"transfer_date"`
	ExpectedDelivery *time.Time          `json:"expected_delivery"`
	Priority         string              `json:"priority"`
	Reason           string              `json:"reason"`
	Notes            string              `json:"notes"`
	ShippingCost     decimal.Decimal     `json:"shipping_cost"`
	InsuranceCost    decimal.Decimal     `json:"insurance_cost"`
	Currency         string              `json:"currency"`
	Items            []createItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())

	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	in := CreateInput{
		FromWarehouseID:  req.FromWarehouseID,
		ToWarehouseID:    req.ToWarehouseID,
		FromBranchID:     req.FromBranchID,
		ToBranchID:       req.ToBranchID,
		ExpectedDelivery: req.ExpectedDelivery,
		Priority:         Priority(req.Priority),
		Reason:           req.Reason,
		Notes:            req.Notes,
		ShippingCost:     req.ShippingCost,
		InsuranceCost:    req.InsuranceCost,
		Currency:         req.Currency,
	}
	if req.TransferDate != nil {
		in.TransferDate = *req.TransferDate
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, CreateItemInput{
			ProductID:   item.ProductID,
			Qty:         item.Qty,
			BatchNumber: item.BatchNumber,
			ExpiryDate:  item.ExpiryDate,
			UnitCost:    item.UnitCost,
			Condition:   item.Condition,
			Notes:       item.Notes,
		})
	}

	detail, err := h.service.Create(r.Context(), identity, in)
	if err != nil {
		h.logger.Error("create transfer", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, detail)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id must be an integer")
		return
	}
	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	id, err := urlID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id must be an integer")
		return
	}
	result, err := h.service.Approve(r.Context(), identity, id)
	if err != nil {
		h.logger.Error("approve transfer", slog.Int64("transfer_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type shipItemRequest struct {
	QtyShipped decimal.Decimal `json:"qty_shipped" validate:"required"`
}

type shipRequest struct {
	TrackingNumber   string                    `json:"tracking_number"`
	CourierName      string                    `json:"courier_name"`
	VehicleNumber    string                    `json:"vehicle_number"`
	DriverName       string                    `json:"driver_name"`
	DriverPhone      string                    `json:"driver_phone"`
	ExpectedDelivery *time.Time                `json:"expected_delivery"`
	Items            map[int64]shipItemRequest `json:"items"`
}

func (h *Handler) handleShip(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	id, err := urlID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id must be an integer")
		return
	}
	var req shipRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	in := ShipInput{
		TrackingNumber:   req.TrackingNumber,
		CourierName:      req.CourierName,
		VehicleNumber:    req.VehicleNumber,
		DriverName:       req.DriverName,
		DriverPhone:      req.DriverPhone,
		ExpectedDelivery: req.ExpectedDelivery,
	}
	if len(req.Items) > 0 {
		in.Items = make(map[int64]ShipItemInput, len(req.Items))
		for itemID, item := range req.Items {
			in.Items[itemID] = ShipItemInput{QtyShipped: item.QtyShipped}
		}
	}

	result, err := h.service.Ship(r.Context(), identity, id, in)
	if err != nil {
		h.logger.Error("ship transfer", slog.Int64("transfer_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type receiveItemRequest struct {
	QtyReceived  decimal.Decimal `json:"qty_received"`
	QtyDamaged   decimal.Decimal `json:"qty_damaged"`
	Condition    string          `json:"condition"`
	DamageReport string          `json:"damage_report"`
}

type receiveRequest struct {
	ActualDelivery *time.Time                   `json:"actual_delivery"`
	Items          map[int64]receiveItemRequest `json:"items"`
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	id, err := urlID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id must be an integer")
		return
	}
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	in := ReceiveInput{ActualDelivery: req.ActualDelivery}
	if len(req.Items) > 0 {
		in.Items = make(map[int64]ReceiveItemInput, len(req.Items))
		for itemID, item := range req.Items {
			in.Items[itemID] = ReceiveItemInput{
				QtyReceived:  item.QtyReceived,
				QtyDamaged:   item.QtyDamaged,
				Condition:    item.Condition,
				DamageReport: item.DamageReport,
			}
		}
	}

	result, err := h.service.Receive(r.Context(), identity, id, in)
	if err != nil {
		h.logger.Error("receive transfer", slog.Int64("transfer_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.handleTerminal(w, r, "reject", h.service.Reject)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.handleTerminal(w, r, "cancel", h.service.Cancel)
}

func (h *Handler) handleTerminal(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, shared.Identity, int64, string) (Transfer, error)) {
	identity, _ := shared.IdentityFromContext(r.Context())
	id, err := urlID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id must be an integer")
		return
	}
	var req reasonRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	result, err := fn(r.Context(), identity, id, req.Reason)
	if err != nil {
		h.logger.Error(action+" transfer", slog.Int64("transfer_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	transfers, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list transfers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transfers": transfers})
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	warehouseID, _ := strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	var from, to time.Time
	var err error
	if raw := q.Get("from"); raw != "" {
		if from, err = time.Parse("2006-01-02", raw); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "from must be YYYY-MM-DD")
			return
		}
	}
	if raw := q.Get("to"); raw != "" {
		if to, err = time.Parse("2006-01-02", raw); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "to must be YYYY-MM-DD")
			return
		}
	}

	stats, err := h.service.Statistics(r.Context(), warehouseID, from, to)
	if err != nil {
		h.logger.Error("transfer statistics", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func parseFilter(r *http.Request) (Filter, error) {
	var filter Filter
	q := r.URL.Query()
	if raw := q.Get("warehouse_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, shared.NewValidationError("warehouse_id", "must be an integer")
		}
		filter.WarehouseID = id
	}
	if raw := q.Get("status"); raw != "" {
		status := Status(raw)
		if !status.Valid() {
			return filter, shared.NewValidationError("status", "unknown status")
		}
		filter.Status = status
	}
	if raw := q.Get("priority"); raw != "" {
		priority := Priority(raw)
		if !priority.Valid() {
			return filter, shared.NewValidationError("priority", "unknown priority")
		}
		filter.Priority = priority
	}
	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, shared.NewValidationError("from", "must be YYYY-MM-DD")
		}
		filter.From = from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, shared.NewValidationError("to", "must be YYYY-MM-DD")
		}
		filter.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return filter, shared.NewValidationError("limit", "must be an integer")
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return filter, shared.NewValidationError("offset", "must be an integer")
		}
		filter.Offset = offset
	}
	return filter, nil
}

func urlID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
