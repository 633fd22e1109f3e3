package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fleetdesk/fleetdesk/internal/shared"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestWithRole(userID, role string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/vehicles", nil)
	sess := &shared.Session{}
	sess.SetUser(userID)
	sess.SetRole(role)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestRequireWithoutSession(t *testing.T) {
	mw := Middleware{Evaluator: NewEvaluator()}
	handler := mw.Require(ResourceVehicles, ActionRead)(okHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/vehicles", nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestRequireDeniesMissingGrant(t *testing.T) {
	mw := Middleware{Evaluator: NewEvaluator()}
	handler := mw.Require(ResourceAdmin, ActionRead)(okHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWithRole("9", "DRIVER"))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestRequireAllowsGrantedRole(t *testing.T) {
	mw := Middleware{Evaluator: NewEvaluator()}
	handler := mw.Require(ResourceVehicles, ActionUpdate)(okHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWithRole("4", "TRANSPORT_MANAGER"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRequireFailsClosedWithoutEvaluator(t *testing.T) {
	mw := Middleware{}
	handler := mw.Require(ResourceVehicles, ActionRead)(okHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWithRole("4", "ADMIN"))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when evaluator missing, got %d", rr.Code)
	}
}

func TestRequireRejectsUnknownRole(t *testing.T) {
	mw := Middleware{Evaluator: NewEvaluator()}
	handler := mw.Require(ResourceVehicles, ActionRead)(okHandler())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestWithRole("4", "SUPERUSER"))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unknown role, got %d", rr.Code)
	}
}
