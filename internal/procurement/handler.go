package procurement

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/procura-ims/procura/internal/platform/httpx"
	"github.com/procura-ims/procura/internal/rbac"
	"github.com/procura-ims/procura/internal/shared"
)

// Handler wires the staff-facing purchase order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the procurement handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers staff purchase order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireStaff(rbac.CapViewPOList))
		r.Get("/purchase-orders", h.handleList)
		r.Get("/purchase-orders/kpis", h.handleKPIs)
		r.Get("/purchase-orders/dashboard", h.handleDashboard)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireStaff(rbac.CapExportPO))
		r.Get("/purchase-orders/export", h.handleExport)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireStaff(rbac.CapViewPODetails))
		r.Get("/purchase-orders/{id}", h.handleGet)
		r.Get("/purchase-orders/{id}/receipt", h.handleGetReceipt)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireStaff(rbac.CapCreatePO))
		r.Post("/purchase-orders", h.handleCreate)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAnyStaff(rbac.CapManagePOStatusAll, rbac.CapManagePOStatusBasic))
		r.Put("/purchase-orders/{id}", h.handleUpdate)
		r.Post("/purchase-orders/{id}/status", h.handleTransition)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireStaff(rbac.CapManagePOStatusAll))
		r.Post("/purchase-orders/delayed-sweep", h.handleDelayedSweep)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireStaff(rbac.CapDeletePO))
		r.Delete("/purchase-orders/{id}", h.handleDelete)
	})
}

type poLinePayload struct {
	ItemID    int64   `json:"item_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type createPOPayload struct {
	SupplierID   int64           `json:"supplier_id"`
	ExpectedDate string          `json:"expected_date"`
	Lines        []poLinePayload `json:"lines"`
}

type updatePOPayload struct {
	Status       string          `json:"status"`
	ExpectedDate string          `json:"expected_date"`
	Lines        []poLinePayload `json:"lines"`
}

type transitionPayload struct {
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{}
	if v := r.URL.Query().Get("supplier_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid supplier_id")
			return
		}
		filter.SupplierID = id
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := Status(v)
		if !status.Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown status")
			return
		}
		filter.Status = status
	}
	pos, err := h.service.ListPOs(r.Context(), shared.ActorFromContext(r.Context()), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchase_orders": pos})
}

func (h *Handler) handleKPIs(w http.ResponseWriter, r *http.Request) {
	kpis, err := h.service.GetKPIs(r.Context(), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, kpis)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	pos, err := h.service.ListPOs(r.Context(), shared.ActorFromContext(r.Context()), ListFilter{})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="purchase_orders.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"po_id", "supplier_id", "status", "effective_status", "issue_date", "expected_date", "receive_date", "completion_date"})
	for _, po := range pos {
		row := []string{
			strconv.FormatInt(po.ID, 10),
			strconv.FormatInt(po.SupplierID, 10),
			string(po.Status),
			string(po.EffectiveStatus),
			po.IssueDate.Format("2006-01-02"),
			po.ExpectedDate.Format("2006-01-02"),
			formatOptionalDate(po.ReceiveDate),
			formatOptionalDate(po.CompletionDate),
		}
		if err := cw.Write(row); err != nil {
			h.logger.Warn("export write", slog.Any("error", err))
			return
		}
	}
	cw.Flush()
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.service.GetDashboard(r.Context(), shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, dashboard)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	details, err := h.service.GetPO(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, details)
}

func (h *Handler) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	receipt, lines, err := h.service.GetReceipt(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"receipt": receipt,
		"lines":   lines,
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload createPOPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	expected, err := parseDate(payload.ExpectedDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	po, err := h.service.CreatePO(r.Context(), shared.ActorFromContext(r.Context()), CreatePOInput{
		SupplierID:   payload.SupplierID,
		ExpectedDate: expected,
		Lines:        toLineInputs(payload.Lines),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var payload updatePOPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	input := UpdatePOInput{
		Status: Status(payload.Status),
		Lines:  toLineInputs(payload.Lines),
	}
	if payload.ExpectedDate != "" {
		expected, err := parseDate(payload.ExpectedDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		input.ExpectedDate = expected
	}
	po, err := h.service.UpdatePO(r.Context(), shared.ActorFromContext(r.Context()), id, input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var payload transitionPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	po, err := h.service.Transition(r.Context(), shared.ActorFromContext(r.Context()), id, TransitionInput{
		From: Status(payload.OldStatus),
		To:   Status(payload.NewStatus),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	restricted, err := h.service.DeletePO(r.Context(), shared.ActorFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if restricted {
		httpx.JSON(w, http.StatusOK, map[string]string{
			"status": "restricted",
			"detail": "orders past Pending are retained",
		})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) handleDelayedSweep(w http.ResponseWriter, r *http.Request) {
	swept, err := h.service.MarkDelayed(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"swept":  swept,
	})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	return pathID(w, r)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	respondError(h.logger, w, r, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid purchase order id")
		return 0, false
	}
	return id, true
}

func respondError(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "purchase order not found")
	case errors.Is(err, ErrNoReceipt):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "goods receipt not found")
	case errors.Is(err, ErrStatusChanged):
		httpx.Problem(w, http.StatusConflict, "Status Changed", "the order status changed while you were viewing it")
	case errors.Is(err, ErrStateConflict):
		httpx.Problem(w, http.StatusConflict, "State Conflict", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, rbac.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing required capability")
	default:
		logger.Error("procurement request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toLineInputs(payload []poLinePayload) []POLineInput {
	if len(payload) == 0 {
		return nil
	}
	lines := make([]POLineInput, 0, len(payload))
	for _, p := range payload {
		lines = append(lines, POLineInput{
			ItemID:    p.ItemID,
			Quantity:  p.Quantity,
			UnitPrice: p.UnitPrice,
		})
	}
	return lines
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("dates must be YYYY-MM-DD")
	}
	return t, nil
}
