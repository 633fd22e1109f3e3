package audithttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fleetdesk/fleetdesk/internal/audit"
	"github.com/fleetdesk/fleetdesk/internal/rbac"
	"github.com/fleetdesk/fleetdesk/internal/shared"
)

type stubLedger struct {
	records    []audit.Record
	stats      audit.Stats
	err        error
	lastFilter audit.Filter
}

func (s *stubLedger) Query(ctx context.Context, filter audit.Filter) ([]audit.Record, error) {
	s.lastFilter = filter
	return s.records, s.err
}

func (s *stubLedger) Stats(ctx context.Context) (audit.Stats, error) {
	return s.stats, s.err
}

func (s *stubLedger) ExportCSV(ctx context.Context, filter audit.Filter) ([]byte, error) {
	s.lastFilter = filter
	if s.err != nil {
		return nil, s.err
	}
	return audit.WriteCSV(s.records)
}

func adminRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	sess := &shared.Session{}
	sess.SetUser("1")
	sess.SetRole("ADMIN")
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func mountedRouter(service LedgerService) http.Handler {
	handler := NewHandler(nil, service)
	handler.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Route("/audit", func(ar chi.Router) {
		handler.MountRoutes(ar, rbac.Middleware{Evaluator: rbac.NewEvaluator()})
	})
	return r
}

func TestListReturnsRecords(t *testing.T) {
	service := &stubLedger{records: []audit.Record{{ID: 2, Action: "LOGIN", ResourceType: "auth"}}}
	router := mountedRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodGet, "/audit/?severity=high&actor=benali&from=2026-08-01&to=2026-08-30"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body listResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || body.Records[0].Action != "LOGIN" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if service.lastFilter.Severity != audit.SeverityHigh || service.lastFilter.ActorContains != "benali" {
		t.Fatalf("unexpected filter: %+v", service.lastFilter)
	}
	if service.lastFilter.To.Before(service.lastFilter.From) {
		t.Fatalf("date range should be inclusive: %+v", service.lastFilter)
	}
}

func TestListRejectsBadFilter(t *testing.T) {
	router := mountedRouter(&stubLedger{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodGet, "/audit/?from=yesterday"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodGet, "/audit/?severity=EXTREME"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown severity, got %d", rr.Code)
	}
}

func TestListRequiresAdminRead(t *testing.T) {
	router := mountedRouter(&stubLedger{})
	req := httptest.NewRequest(http.MethodGet, "/audit/", nil)
	sess := &shared.Session{}
	sess.SetUser("9")
	sess.SetRole("DRIVER")
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for driver, got %d", rr.Code)
	}
}

func TestExportSetsDownloadHeaders(t *testing.T) {
	service := &stubLedger{records: []audit.Record{{ID: 1, Action: "LOGIN", ResourceType: "auth", Timestamp: time.Now()}}}
	router := mountedRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodGet, "/audit/export.csv"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ctype := rr.Header().Get("Content-Type"); !strings.Contains(ctype, "text/csv") {
		t.Fatalf("unexpected content type: %s", ctype)
	}
	if disposition := rr.Header().Get("Content-Disposition"); disposition != `attachment; filename="audit-logs-2026-08-30.csv"` {
		t.Fatalf("unexpected disposition: %s", disposition)
	}
	if !strings.HasPrefix(rr.Body.String(), "Date,Utilisateur") {
		t.Fatalf("expected csv body, got %q", rr.Body.String()[:20])
	}
}

func TestStatsEndpoint(t *testing.T) {
	service := &stubLedger{stats: audit.Stats{Total: 3, BySeverity: map[audit.Severity]int{audit.SeverityLow: 3}}}
	router := mountedRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodGet, "/audit/stats"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var stats audit.Stats
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

type cancelAwareLedger struct {
	stubLedger
}

func (s *cancelAwareLedger) Stats(ctx context.Context) (audit.Stats, error) {
	if err := ctx.Err(); err != nil {
		return audit.Stats{}, err
	}
	return s.stubLedger.Stats(ctx)
}

func TestStatsSurviveCallerCancellation(t *testing.T) {
	service := &cancelAwareLedger{stubLedger: stubLedger{stats: audit.Stats{Total: 5}}}
	router := mountedRouter(service)

	req := adminRequest(http.MethodGet, "/audit/stats")
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req.WithContext(ctx))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 despite canceled caller, got %d: %s", rr.Code, rr.Body.String())
	}
	var stats audit.Stats
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Total != 5 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestTimeoutMapsToGatewayTimeout(t *testing.T) {
	service := &stubLedger{err: fmt.Errorf("%w: query", audit.ErrTimeout)}
	router := mountedRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, adminRequest(http.MethodGet, "/audit/"))
	if rr.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rr.Code)
	}
}
