package rbac

import (
	"log/slog"
	"net/http"

	"github.com/procura-ims/procura/internal/platform/httpx"
	"github.com/procura-ims/procura/internal/shared"
)

// Middleware wires authorization checks in front of HTTP handlers.
type Middleware struct {
	Gate   *Gate
	Logger *slog.Logger
}

// RequireStaff ensures the request carries a staff identity holding all of
// the listed capabilities.
func (m Middleware) RequireStaff(caps ...Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := shared.ActorFromContext(r.Context())
			if actor.Zero() {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
				return
			}
			if err := m.Gate.RequireStaff(actor, caps...); err != nil {
				if m.Logger != nil {
					m.Logger.Warn("staff authorization rejected",
						slog.String("role", actor.Role),
						slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing required capability")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyStaff ensures the request carries a staff identity holding at
// least one of the listed capabilities.
func (m Middleware) RequireAnyStaff(caps ...Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := shared.ActorFromContext(r.Context())
			if actor.Zero() {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
				return
			}
			if err := m.Gate.RequireAnyStaff(actor, caps...); err != nil {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing required capability")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSupplier ensures the request carries a supplier portal identity.
// Ownership of individual purchase orders is checked inside the services.
func (m Middleware) RequireSupplier() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := shared.ActorFromContext(r.Context())
			if actor.Zero() {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
				return
			}
			if err := m.Gate.RequireSupplier(actor); err != nil {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "supplier identity required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
