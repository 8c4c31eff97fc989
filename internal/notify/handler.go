package notify

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/procura-ims/procura/internal/platform/httpx"
	"github.com/procura-ims/procura/internal/rbac"
	"github.com/procura-ims/procura/internal/shared"
)

// Handler wires the in-app notification endpoints.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
	rbac   rbac.Middleware
}

// NewHandler constructs the notifications handler.
func NewHandler(logger *slog.Logger, repo *Repository, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, repo: repo, rbac: rbac}
}

// MountRoutes registers notification routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireStaff(rbac.CapViewNotifications))
		r.Get("/notifications", h.handleList)
		r.Get("/notifications/unread-count", h.handleUnreadCount)
		r.Post("/notifications/{id}/read", h.handleMarkRead)
		r.Post("/notifications/read-all", h.handleMarkAllRead)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	unreadOnly := r.URL.Query().Get("unread") == "true"
	notifications, err := h.repo.ListForUser(r.Context(), actor.UserID, unreadOnly, 0)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	count, err := h.repo.CountUnread(r.Context(), actor.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"unread": count})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid notification id")
		return
	}
	if err := h.repo.MarkRead(r.Context(), actor.UserID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "notification not found")
			return
		}
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	updated, err := h.repo.MarkAllRead(r.Context(), actor.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("notifications request failed",
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
