package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/fleetdesk/fleetdesk/internal/audit"
	"github.com/fleetdesk/fleetdesk/internal/auth"
	"github.com/fleetdesk/fleetdesk/internal/shared"
)

type stubRepo struct {
	user     *auth.User
	sessions int
	deleted  int
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	s.sessions++
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	s.deleted++
	return nil
}

type recordingAudit struct {
	entries []audit.Entry
}

func (r *recordingAudit) Append(ctx context.Context, entry audit.Entry) (audit.Record, error) {
	r.entries = append(r.entries, entry)
	return audit.Record{ID: int64(len(r.entries))}, nil
}

func activeUser(t *testing.T) *auth.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &auth.User{
		ID:           7,
		Email:        "chef@fleetdesk.example",
		Name:         "K. Haddad",
		Role:         "TRANSPORT_MANAGER",
		PasswordHash: string(hash),
		IsActive:     true,
	}
}

func newAuthHandler(t *testing.T, repo auth.Repository, recorder auth.Recorder) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	handler := auth.NewHandler(nil, auth.NewService(repo), sessionManager, recorder)
	return handler, sessionManager
}

func doLogin(t *testing.T, handler *auth.Handler, sessionManager *shared.SessionManager, body string) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, req)
	return res, sess
}

func TestLoginSuccess(t *testing.T) {
	repo := &stubRepo{user: activeUser(t)}
	recorder := &recordingAudit{}
	handler, sessionManager := newAuthHandler(t, repo, recorder)

	res, sess := doLogin(t, handler, sessionManager, `{"email":"chef@fleetdesk.example","password":"correct horse"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var body struct {
		UserID int64  `json:"userId"`
		Role   string `json:"role"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.UserID != 7 || body.Role != "TRANSPORT_MANAGER" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if sess.User() != "7" || sess.Role() != "TRANSPORT_MANAGER" {
		t.Fatalf("session not updated: user=%q role=%q", sess.User(), sess.Role())
	}
	if repo.sessions != 1 {
		t.Fatalf("expected session registered, got %d", repo.sessions)
	}
	if len(recorder.entries) != 1 || recorder.entries[0].Action != "LOGIN" || recorder.entries[0].Status != audit.StatusSuccess {
		t.Fatalf("unexpected audit trail: %+v", recorder.entries)
	}
}

func TestLoginWrongPasswordIsAudited(t *testing.T) {
	repo := &stubRepo{user: activeUser(t)}
	recorder := &recordingAudit{}
	handler, sessionManager := newAuthHandler(t, repo, recorder)

	res, _ := doLogin(t, handler, sessionManager, `{"email":"chef@fleetdesk.example","password":"wrong password"}`)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if len(recorder.entries) != 1 {
		t.Fatalf("failed login must leave a trace, got %d entries", len(recorder.entries))
	}
	entry := recorder.entries[0]
	if entry.Status != audit.StatusFailed || entry.Severity != audit.SeverityMedium {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestLoginInactiveUserRejected(t *testing.T) {
	user := activeUser(t)
	user.IsActive = false
	handler, sessionManager := newAuthHandler(t, &stubRepo{user: user}, &recordingAudit{})

	res, _ := doLogin(t, handler, sessionManager, `{"email":"chef@fleetdesk.example","password":"correct horse"}`)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for inactive user, got %d", res.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubRepo{}, &recordingAudit{})
	res, _ := doLogin(t, handler, sessionManager, `{"email":"not-an-email","password":"short"}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestLogoutDestroysSession(t *testing.T) {
	repo := &stubRepo{user: activeUser(t)}
	recorder := &recordingAudit{}
	handler, sessionManager := newAuthHandler(t, repo, recorder)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	sess.SetUser("7")
	sess.SetRole("TRANSPORT_MANAGER")
	sess.Set("user_name", "K. Haddad")
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	handler.HandleLogoutForTest(res, req)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if repo.deleted != 1 {
		t.Fatalf("expected session row deleted")
	}
	if len(recorder.entries) != 1 || recorder.entries[0].Action != "LOGOUT" {
		t.Fatalf("unexpected audit trail: %+v", recorder.entries)
	}
	if recorder.entries[0].ActorName != "K. Haddad" {
		t.Fatalf("logout entry must carry the actor name, got %q", recorder.entries[0].ActorName)
	}
}
