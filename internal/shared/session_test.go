package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestManager(t *testing.T) *SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionManager(client, "test_session", "secret", time.Hour, false)
}

func TestSessionRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := manager.Load(ctx, req)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sess.SetUser("42")
	sess.SetRole("DRIVER")
	sess.Set("user_name", "P. Martin")

	res := httptest.NewRecorder()
	if err := manager.Commit(ctx, res, req, sess); err != nil {
		t.Fatalf("commit: %v", err)
	}
	cookies := res.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "test_session" {
		t.Fatalf("expected session cookie, got %v", cookies)
	}

	reloadReq := httptest.NewRequest(http.MethodGet, "/", nil)
	reloadReq.AddCookie(cookies[0])
	reloaded, err := manager.Load(ctx, reloadReq)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.User() != "42" || reloaded.Role() != "DRIVER" {
		t.Fatalf("session data lost: user=%q role=%q", reloaded.User(), reloaded.Role())
	}
	if reloaded.Get("user_name") != "P. Martin" {
		t.Fatalf("values lost: %q", reloaded.Get("user_name"))
	}
}

func TestSessionDestroyClearsCookie(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := manager.Load(ctx, req)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sess.SetUser("42")
	res := httptest.NewRecorder()
	if err := manager.Commit(ctx, res, req, sess); err != nil {
		t.Fatalf("commit: %v", err)
	}
	cookie := res.Result().Cookies()[0]

	manager.Destroy(sess)
	destroyRes := httptest.NewRecorder()
	if err := manager.Commit(ctx, destroyRes, req, sess); err != nil {
		t.Fatalf("destroy commit: %v", err)
	}
	cleared := destroyRes.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge != -1 {
		t.Fatalf("expected expired cookie, got %v", cleared)
	}

	reloadReq := httptest.NewRequest(http.MethodGet, "/", nil)
	reloadReq.AddCookie(cookie)
	reloaded, err := manager.Load(ctx, reloadReq)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.User() != "" {
		t.Fatalf("destroyed session must not resurrect user %q", reloaded.User())
	}
}

func TestCSRFTokenVerification(t *testing.T) {
	manager := NewCSRFManager("csrfsecret")
	sess := &Session{ID: "abc"}

	token, err := manager.EnsureToken(context.Background(), sess)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}
	if err := manager.VerifyToken(context.Background(), sess, token); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := manager.VerifyToken(context.Background(), sess, "forged"); err == nil {
		t.Fatalf("forged token must fail")
	}
	if err := manager.VerifyToken(context.Background(), nil, token); err == nil {
		t.Fatalf("missing session must fail")
	}
}
