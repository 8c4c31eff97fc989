package items

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/procura-ims/procura/internal/platform/httpx"
	"github.com/procura-ims/procura/internal/rbac"
	"github.com/procura-ims/procura/internal/shared"
)

// Handler wires HTTP endpoints for the items module.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the items handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers item routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireStaff(rbac.CapViewItems))
		r.Get("/items", h.handleList)
		r.Get("/items/{id}", h.handleGet)
		r.Get("/alerts", h.handleListAlerts)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireStaff(rbac.CapEditItems))
		r.Post("/items", h.handleCreate)
		r.Put("/items/{id}", h.handleUpdate)
		r.Post("/alerts/expiry-sweep", h.handleExpirySweep)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireStaff(rbac.CapAdjustStock))
		r.Post("/items/{id}/adjust", h.handleAdjust)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireStaff(rbac.CapDeleteItems))
		r.Delete("/items/{id}", h.handleDelete)
	})
}

type itemPayload struct {
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	CategoryID   int64   `json:"category_id"`
	Brand        string  `json:"brand"`
	UOM          string  `json:"uom"`
	UnitCost     float64 `json:"unit_cost"`
	SellingPrice float64 `json:"selling_price"`
	Stock        int     `json:"stock_quantity"`
	Threshold    int     `json:"threshold_quantity"`
	ExpiryDate   string  `json:"expiry_date"`
	SupplierID   int64   `json:"supplier_id"`
}

type adjustPayload struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Search: r.URL.Query().Get("q")}
	if v := r.URL.Query().Get("supplier_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid supplier_id")
			return
		}
		filter.SupplierID = id
	}
	items, err := h.service.ListItems(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.ListOpenAlerts(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload itemPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	input, err := payload.toCreateInput()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.CreateItem(r.Context(), shared.ActorFromContext(r.Context()), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var payload itemPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	input, err := payload.toUpdateInput()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.UpdateItem(r.Context(), shared.ActorFromContext(r.Context()), id, input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var payload adjustPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	item, err := h.service.AdjustStock(r.Context(), shared.ActorFromContext(r.Context()), id, AdjustStockInput{
		Delta:  payload.Delta,
		Reason: payload.Reason,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteItem(r.Context(), shared.ActorFromContext(r.Context()), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) handleExpirySweep(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.SweepExpired(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"flagged": count,
	})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid item id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "item not found")
	case errors.Is(err, ErrDuplicateCode):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "item code already exists")
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", "adjustment would drive stock negative")
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, rbac.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing required capability")
	default:
		h.logger.Error("items request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (p itemPayload) toCreateInput() (CreateItemInput, error) {
	expiry, err := parseExpiry(p.ExpiryDate)
	if err != nil {
		return CreateItemInput{}, err
	}
	return CreateItemInput{
		Code:         p.Code,
		Name:         p.Name,
		CategoryID:   p.CategoryID,
		Brand:        p.Brand,
		UOM:          p.UOM,
		UnitCost:     p.UnitCost,
		SellingPrice: p.SellingPrice,
		Stock:        p.Stock,
		Threshold:    p.Threshold,
		ExpiryDate:   expiry,
		SupplierID:   p.SupplierID,
	}, nil
}

func (p itemPayload) toUpdateInput() (UpdateItemInput, error) {
	expiry, err := parseExpiry(p.ExpiryDate)
	if err != nil {
		return UpdateItemInput{}, err
	}
	return UpdateItemInput{
		Code:         p.Code,
		Name:         p.Name,
		CategoryID:   p.CategoryID,
		Brand:        p.Brand,
		UOM:          p.UOM,
		UnitCost:     p.UnitCost,
		SellingPrice: p.SellingPrice,
		Stock:        p.Stock,
		Threshold:    p.Threshold,
		ExpiryDate:   expiry,
		SupplierID:   p.SupplierID,
	}, nil
}

func parseExpiry(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, errors.New("expiry_date must be YYYY-MM-DD")
	}
	return &t, nil
}
