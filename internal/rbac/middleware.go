package rbac

import (
	"log/slog"
	"net/http"

	"github.com/fleetdesk/fleetdesk/internal/shared"
)

// Middleware wires permission checks in front of HTTP handlers.
type Middleware struct {
	Evaluator *Evaluator
	Logger    *slog.Logger
}

// Require ensures the current session role may perform action on resource.
// Requests without a session, with an unknown role, or without a matching
// grant receive 403. The check never panics and never falls open.
func (m Middleware) Require(resource string, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := m.currentRole(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			if m.Evaluator == nil {
				if m.Logger != nil {
					m.Logger.Error("rbac evaluator not configured", slog.String("resource", resource))
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			if !m.Evaluator.HasPermission(role, resource, action) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthenticated only checks that a logged-in user with a known role is
// attached to the request.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := m.currentRole(r); !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) currentRole(r *http.Request) (Role, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		return "", false
	}
	role, ok := ParseRole(sess.Role())
	if !ok {
		if m.Logger != nil && sess.Role() != "" {
			m.Logger.Warn("rbac unknown role in session", slog.String("role", sess.Role()))
		}
		return "", false
	}
	return role, true
}
