package procurement

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/procura-ims/procura/internal/platform/httpx"
	"github.com/procura-ims/procura/internal/rbac"
	"github.com/procura-ims/procura/internal/shared"
)

// PortalHandler wires the supplier-facing purchase order endpoints. The
// portal only ever shows a supplier their own orders.
type PortalHandler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewPortalHandler constructs the supplier portal handler.
func NewPortalHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *PortalHandler {
	return &PortalHandler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers supplier portal routes.
func (h *PortalHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireSupplier())
		r.Get("/portal/purchase-orders", h.handleList)
		r.Get("/portal/purchase-orders/{id}", h.handleGet)
		r.Post("/portal/purchase-orders/{id}/status", h.handleTransition)
	})
}

type supplierUpdatePayload struct {
	OldStatus    string `json:"old_status"`
	NewStatus    string `json:"new_status"`
	ExpectedDate string `json:"expected_date"`
}

func (h *PortalHandler) handleList(w http.ResponseWriter, r *http.Request) {
	pos, err := h.service.ListPOs(r.Context(), shared.ActorFromContext(r.Context()), ListFilter{})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchase_orders": pos})
}

func (h *PortalHandler) handleGet(w http.ResponseWriter, r *http.Request) {
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

func (h *PortalHandler) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var payload supplierUpdatePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	input := SupplierUpdateInput{
		From: Status(payload.OldStatus),
		To:   Status(payload.NewStatus),
	}
	if payload.ExpectedDate != "" {
		expected, err := parseDate(payload.ExpectedDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		input.ExpectedDate = expected
	}
	po, err := h.service.SupplierTransition(r.Context(), shared.ActorFromContext(r.Context()), id, input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *PortalHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	return pathID(w, r)
}

func (h *PortalHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	respondError(h.logger, w, r, err)
}
