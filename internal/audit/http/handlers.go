package audithttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fleetdesk/fleetdesk/internal/audit"
	"github.com/fleetdesk/fleetdesk/internal/platform/httpx"
)

// LedgerService is the business contract the handlers depend on.
type LedgerService interface {
	Query(ctx context.Context, filter audit.Filter) ([]audit.Record, error)
	Stats(ctx context.Context) (audit.Stats, error)
	ExportCSV(ctx context.Context, filter audit.Filter) ([]byte, error)
}

// Handler serves the audit log listing, stats and CSV export.
type Handler struct {
	logger  *slog.Logger
	service LedgerService
	now     func() time.Time

	statsGroup singleflight.Group
}

// NewHandler builds an audit handler.
func NewHandler(logger *slog.Logger, service LedgerService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

type listResponse struct {
	Records []audit.Record `json:"records"`
	Count   int            `json:"count"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.respondError(w, "parse filter", err)
		return
	}
	records, err := h.service.Query(r.Context(), filter)
	if err != nil {
		h.respondError(w, "query audit records", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Records: records, Count: len(records)})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	// Stats scan the whole window; collapse concurrent recomputations into
	// one store round-trip. The shared computation runs detached from the
	// first caller's context so its cancellation cannot fail every waiter;
	// the service enforces its own deadline.
	ctx := context.WithoutCancel(r.Context())
	result, err, _ := h.statsGroup.Do("stats", func() (any, error) {
		return h.service.Stats(ctx)
	})
	if err != nil {
		h.respondError(w, "compute audit stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.respondError(w, "parse filter", err)
		return
	}
	csvBytes, err := h.service.ExportCSV(r.Context(), filter)
	if err != nil {
		h.respondError(w, "export audit csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+audit.ExportFilename(h.now())+`"`)
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func parseFilter(r *http.Request) (audit.Filter, error) {
	query := r.URL.Query()
	filter := audit.Filter{
		ResourceType:   strings.TrimSpace(query.Get("resource")),
		ActionContains: strings.TrimSpace(query.Get("action")),
		ActorContains:  strings.TrimSpace(query.Get("actor")),
	}

	if raw := strings.TrimSpace(query.Get("severity")); raw != "" {
		severity, ok := audit.ParseSeverity(raw)
		if !ok {
			return audit.Filter{}, invalidFilterf("unknown severity %q", raw)
		}
		filter.Severity = severity
	}
	var err error
	if filter.From, err = parseTimeParam(query.Get("from"), false); err != nil {
		return audit.Filter{}, err
	}
	if filter.To, err = parseTimeParam(query.Get("to"), true); err != nil {
		return audit.Filter{}, err
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return audit.Filter{}, invalidFilterf("bad limit %q", raw)
		}
		filter.Limit = limit
	}
	return filter, nil
}

// parseTimeParam accepts RFC3339 instants or plain dates. A plain "to" date
// extends to the end of that day so the range is inclusive.
func parseTimeParam(raw string, endOfDay bool) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, invalidFilterf("bad date %q", raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func invalidFilterf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{audit.ErrInvalidFilter}, args...)...)
}

func (h *Handler) respondError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, audit.ErrInvalidFilter):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", err.Error())
	case errors.Is(err, audit.ErrTimeout):
		httpx.Problem(w, http.StatusGatewayTimeout, "Timeout", "audit query exceeded its deadline")
	default:
		h.logger.Error(message, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
