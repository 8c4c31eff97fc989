package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/procura-ims/procura/internal/platform/httpx"
	"github.com/procura-ims/procura/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleStaffLogin)
	r.Post("/supplier-login", h.handleSupplierLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
}

type loginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type actorResponse struct {
	Kind        shared.ActorKind `json:"kind"`
	UserID      int64            `json:"user_id,omitempty"`
	SupplierID  int64            `json:"supplier_id,omitempty"`
	Role        string           `json:"role,omitempty"`
	DisplayName string           `json:"display_name"`
	Email       string           `json:"email"`
	CSRFToken   string           `json:"csrf_token,omitempty"`
}

type authenticateFunc func(ctx context.Context, email, password string) (shared.Actor, error)

func (h *Handler) handleStaffLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.service.AuthenticateStaff)
}

func (h *Handler) handleSupplierLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.service.AuthenticateSupplier)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, authenticate authenticateFunc) {
	var form loginForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email and a password of at least 8 characters are required")
		return
	}

	actor, err := authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
			return
		}
		h.logger.Error("login failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.SetActor(actor)
	csrfToken, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("csrf token issue failed", slog.Any("error", err))
	}

	httpx.JSON(w, http.StatusOK, actorResponse{
		Kind:        actor.Kind,
		UserID:      actor.UserID,
		SupplierID:  actor.SupplierID,
		Role:        actor.Role,
		DisplayName: actor.DisplayName,
		Email:       actor.Email,
		CSRFToken:   csrfToken,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		h.sessionManager.Destroy(sess)
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor.Zero() {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}
	httpx.JSON(w, http.StatusOK, actorResponse{
		Kind:        actor.Kind,
		UserID:      actor.UserID,
		SupplierID:  actor.SupplierID,
		Role:        actor.Role,
		DisplayName: actor.DisplayName,
		Email:       actor.Email,
	})
}
