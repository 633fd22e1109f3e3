package vehicles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fleetdesk/fleetdesk/internal/platform/httpx"
	"github.com/fleetdesk/fleetdesk/internal/rbac"
	"github.com/fleetdesk/fleetdesk/internal/shared"
)

// Handler wires HTTP endpoints for fleet management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers vehicle routes, each gated by the matching
// fleet permission.
func (h *Handler) MountRoutes(r chi.Router, guard rbac.Middleware) {
	r.With(guard.Require(rbac.ResourceVehicles, rbac.ActionRead)).Get("/", h.handleList)
	r.With(guard.Require(rbac.ResourceVehicles, rbac.ActionRead)).Get("/{id}", h.handleGet)
	r.With(guard.Require(rbac.ResourceVehicles, rbac.ActionCreate)).Post("/", h.handleCreate)
	r.With(guard.Require(rbac.ResourceVehicles, rbac.ActionUpdate)).Put("/{id}", h.handleUpdate)
	r.With(guard.Require(rbac.ResourceVehicles, rbac.ActionDelete)).Delete("/{id}", h.handleDelete)
}

type createRequest struct {
	Registration string `json:"registration" validate:"required,min=2,max=32"`
	Make         string `json:"make" validate:"required"`
	Model        string `json:"model" validate:"required"`
	Year         int    `json:"year" validate:"required,min=1950"`
	Mileage      int64  `json:"mileage" validate:"min=0"`
}

type updateRequest struct {
	Make    string `json:"make" validate:"required"`
	Model   string `json:"model" validate:"required"`
	Year    int    `json:"year" validate:"required,min=1950"`
	Status  string `json:"status" validate:"required"`
	Mileage int64  `json:"mileage" validate:"min=0"`
}

type listResponse struct {
	Vehicles   []Vehicle         `json:"vehicles"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filters := ListFilters{Search: strings.TrimSpace(query.Get("search"))}
	if raw := query.Get("status"); raw != "" {
		status, ok := ParseStatus(raw)
		if !ok {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown status "+raw)
			return
		}
		filters.Status = status
	}
	filters.Page, _ = strconv.Atoi(query.Get("page"))
	filters.Limit, _ = strconv.Atoi(query.Get("limit"))

	vehicles, pagination, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list vehicles", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if vehicles == nil {
		vehicles = []Vehicle{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Vehicles: vehicles, Pagination: pagination})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	vehicle, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get vehicle", err)
		return
	}
	httpx.JSON(w, http.StatusOK, vehicle)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}
	vehicle, err := h.service.Create(r.Context(), CreateInput{
		Registration:   strings.ToUpper(strings.TrimSpace(req.Registration)),
		Make:           strings.TrimSpace(req.Make),
		Model:          strings.TrimSpace(req.Model),
		Year:           req.Year,
		Mileage:        req.Mileage,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	}, actorFromRequest(r))
	if err != nil {
		h.respondError(w, "create vehicle", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, vehicle)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}
	status, ok := ParseStatus(req.Status)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown status "+req.Status)
		return
	}
	vehicle, err := h.service.Update(r.Context(), id, UpdateInput{
		Make:    strings.TrimSpace(req.Make),
		Model:   strings.TrimSpace(req.Model),
		Year:    req.Year,
		Status:  status,
		Mileage: req.Mileage,
	}, actorFromRequest(r))
	if err != nil {
		h.respondError(w, "update vehicle", err)
		return
	}
	httpx.JSON(w, http.StatusOK, vehicle)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id, actorFromRequest(r)); err != nil {
		h.respondError(w, "delete vehicle", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid vehicle id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "vehicle not found")
	case errors.Is(err, ErrDuplicateRegistration):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "registration already exists")
	case errors.Is(err, ErrDuplicateRequest):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "request already processed")
	case errors.Is(err, ErrMileageDecrease), errors.Is(err, ErrRetired):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid State", err.Error())
	default:
		h.logger.Error(message, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fields := make([]string, 0, len(verrs))
		for _, fieldErr := range verrs {
			fields = append(fields, fieldErr.Field())
		}
		return "invalid fields: " + strings.Join(fields, ", ")
	}
	return "validation failed"
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
