package settings

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetdesk/fleetdesk/internal/platform/httpx"
	"github.com/fleetdesk/fleetdesk/internal/rbac"
	"github.com/fleetdesk/fleetdesk/internal/shared"
)

// Handler wires HTTP endpoints for application settings.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers settings routes behind the settings permission.
func (h *Handler) MountRoutes(r chi.Router, guard rbac.Middleware) {
	r.With(guard.Require(rbac.ResourceSettings, rbac.ActionRead)).Get("/", h.handleList)
	r.With(guard.Require(rbac.ResourceSettings, rbac.ActionUpdate)).Put("/{key}", h.handleUpdate)
}

type updateRequest struct {
	Value string `json:"value"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list settings", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"settings": list})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	setting, err := h.service.Update(r.Context(), chi.URLParam(r, "key"), req.Value, actorFromRequest(r))
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownKey):
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		case errors.Is(err, ErrInvalidValue):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			h.logger.Error("update setting", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	httpx.JSON(w, http.StatusOK, setting)
}

func actorFromRequest(r *http.Request) Actor {
	actor := Actor{SourceAddress: r.RemoteAddr, ClientAgent: r.UserAgent()}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		actor.ID = sess.User()
		actor.Role = sess.Role()
		actor.Name = sess.Get("user_name")
	}
	return actor
}
