package audit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler wires HTTP endpoints for the audit trail.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs audit handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleTrail)
}

type entryDTO struct {
	ID         int64           `json:"id"`
	ActorID    int64           `json:"actor_id"`
	Action     string          `json:"action"`
	Entity     string          `json:"entity"`
	EntityID   string          `json:"entity_id"`
	Meta       json.RawMessage `json:"meta,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type pagingDTO struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

func (h *Handler) handleTrail(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	result, err := h.service.Trail(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit trail", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	rows := make([]entryDTO, 0, len(result.Rows))
	for _, e := range result.Rows {
		rows = append(rows, entryDTO{
			ID:         e.ID,
			ActorID:    e.ActorID,
			Action:     e.Action,
			Entity:     e.Entity,
			EntityID:   e.EntityID,
			Meta:       e.Meta,
			OccurredAt: e.OccurredAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries": rows,
		"paging": pagingDTO{
			Page:     result.Paging.Page,
			PageSize: result.Paging.PageSize,
			HasNext:  result.Paging.HasNext,
			PrevPage: result.Paging.PrevPage,
			NextPage: result.Paging.NextPage,
		},
	})
}

func parseFilters(r *http.Request) (Filters, error) {
	var filters Filters
	q := r.URL.Query()

	if raw := q.Get("actor_id"); raw != "" {
		actorID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filters, shared.NewValidationError("actor_id", "must be an integer")
		}
		filters.ActorID = actorID
	}
	filters.Entity = q.Get("entity")
	filters.Action = q.Get("action")

	if from := q.Get("from"); from != "" {
		parsed, err := time.Parse("2006-01-02", from)
		if err != nil {
			return filters, shared.NewValidationError("from", "must be YYYY-MM-DD")
		}
		filters.From = parsed
	}
	if to := q.Get("to"); to != "" {
		parsed, err := time.Parse("2006-01-02", to)
		if err != nil {
			return filters, shared.NewValidationError("to", "must be YYYY-MM-DD")
		}
		filters.To = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return filters, shared.NewValidationError("page", "must be an integer")
		}
		filters.Page = page
	}
	if raw := q.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return filters, shared.NewValidationError("page_size", "must be an integer")
		}
		filters.PageSize = size
	}
	return filters, nil
}
