package pos

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

// Handler wires HTTP endpoints for POS checkout.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs pos handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers POS routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sales", h.handleList)
	r.Post("/checkout", h.handleCheckout)
	r.Get("/sales/{id}", h.handleGet)
	r.Post("/sales/{id}/refund", h.handleRefund)
}

type checkoutLineRequest struct {
	ProductID       int64           `json:"product_id" validate:"required,gt=0"`
	Qty             decimal.Decimal `json:"qty" validate:"required"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

type checkoutRequest struct {
	ClientUUID      string                `json:"client_uuid" validate:"omitempty,uuid4"`
	WarehouseID     int64                 `json:"warehouse_id" validate:"required,gt=0"`
	SessionID       int64                 `json:"session_id"`
	Channel         string                `json:"channel" validate:"omitempty,oneof=pos online"`
	DiscountPercent decimal.Decimal       `json:"discount_percent"`
	TaxAmount       decimal.Decimal       `json:"tax_amount"`
	PaymentMethod   string                `json:"payment_method" validate:"required"`
	PaidAmount      decimal.Decimal       `json:"paid_amount" validate:"required"`
	Lines           []checkoutLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())

	var req checkoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	in := CheckoutInput{
		ClientUUID:      req.ClientUUID,
		WarehouseID:     req.WarehouseID,
		SessionID:       req.SessionID,
		Channel:         Channel(req.Channel),
		DiscountPercent: req.DiscountPercent,
		TaxAmount:       req.TaxAmount,
		PaymentMethod:   req.PaymentMethod,
		PaidAmount:      req.PaidAmount,
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, CheckoutLine{
			ProductID:       line.ProductID,
			Qty:             line.Qty,
			UnitPrice:       line.UnitPrice,
			DiscountPercent: line.DiscountPercent,
		})
	}

	detail, err := h.service.Checkout(r.Context(), identity, in)
	if err != nil {
		h.logger.Error("checkout", slog.String("client_uuid", req.ClientUUID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, detail)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
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

func (h *Handler) handleRefund(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "id must be an integer")
		return
	}
	sale, err := h.service.Refund(r.Context(), identity, id)
	if err != nil {
		h.logger.Error("refund", slog.Int64("sale_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var filter Filter
	q := r.URL.Query()
	filter.WarehouseID, _ = strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	filter.CashierID, _ = strconv.ParseInt(q.Get("cashier_id"), 10, 64)
	if raw := q.Get("status"); raw != "" {
		filter.Status = SaleStatus(raw)
	}
	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "from must be YYYY-MM-DD")
			return
		}
		filter.From = from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "to must be YYYY-MM-DD")
			return
		}
		filter.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	sales, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list sales", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sales": sales})
}
