package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetdesk/fleetdesk/internal/platform/httpx"
	"github.com/fleetdesk/fleetdesk/internal/shared"
)

// PermissionsHandler exposes the effective permission matrix for the current
// session, so the front end can decide which controls to render at all.
type PermissionsHandler struct {
	evaluator *Evaluator
	rbac      Middleware
}

// NewPermissionsHandler builds a PermissionsHandler instance.
func NewPermissionsHandler(evaluator *Evaluator, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{evaluator: evaluator, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated())
		r.Get("/", h.currentMatrix)
	})
}

type matrixResponse struct {
	Role        string                     `json:"role"`
	Permissions map[string]map[Action]bool `json:"permissions"`
}

func (h *PermissionsHandler) currentMatrix(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	role, ok := ParseRole(sess.Role())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "unknown role")
		return
	}
	httpx.JSON(w, http.StatusOK, matrixResponse{
		Role:        string(role),
		Permissions: h.evaluator.Matrix(role),
	})
}
