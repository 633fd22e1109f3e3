package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fleetdesk/fleetdesk/internal/audit"
	"github.com/fleetdesk/fleetdesk/internal/platform/httpx"
	"github.com/fleetdesk/fleetdesk/internal/shared"
)

// Recorder receives the audit trail of login and logout attempts.
type Recorder interface {
	Append(ctx context.Context, entry audit.Entry) (audit.Record, error)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	recorder       Recorder
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, recorder Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		recorder:       recorder,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginResponse struct {
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email and password are required")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.record(r, audit.Entry{
			ActorName: req.Email,
			Action:    "LOGIN",
			Severity:  audit.SeverityMedium,
			Status:    audit.StatusFailed,
			Details:   map[string]string{"reason": "invalid credentials"},
		})
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid email or password")
		return
	}

	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.SetUser(strconv.FormatInt(user.ID, 10))
	sess.SetRole(user.Role)
	sess.Set("user_name", user.Name)

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}

	h.record(r, audit.Entry{
		ActorID:   strconv.FormatInt(user.ID, 10),
		ActorName: user.Name,
		ActorRole: user.Role,
		Action:    "LOGIN",
		Status:    audit.StatusSuccess,
	})

	httpx.JSON(w, http.StatusOK, loginResponse{UserID: user.ID, Name: user.Name, Role: user.Role})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.record(r, audit.Entry{
			ActorID:   sess.User(),
			ActorName: sess.Get("user_name"),
			ActorRole: sess.Role(),
			Action:    "LOGOUT",
			Status:    audit.StatusSuccess,
		})
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLoginForTest exposes the login handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// HandleLogoutForTest exposes the logout handler for tests.
func (h *Handler) HandleLogoutForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogout(w, r)
}

func (h *Handler) record(r *http.Request, entry audit.Entry) {
	if h.recorder == nil {
		return
	}
	entry.ResourceType = "auth"
	entry.SourceAddress = r.RemoteAddr
	entry.ClientAgent = r.UserAgent()
	if _, err := h.recorder.Append(r.Context(), entry); err != nil {
		h.logger.Warn("audit append", slog.Any("error", err))
	}
}
