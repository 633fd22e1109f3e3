package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fleetdesk/fleetdesk/internal/shared"
)

const (
	// DefaultQueryLimit caps an unbounded query; the dashboard never shows
	// more than this in one response.
	DefaultQueryLimit = 500
	defaultOpTimeout  = 5 * time.Second
)

// Deduper guards retried appends against double-writes. Satisfied by
// shared.IdempotencyStore; nil disables deduplication (memory deployments).
type Deduper interface {
	CheckAndInsert(ctx context.Context, key, module string) error
}

// Observer is notified of append outcomes so audit loss is visible on a
// metrics channel instead of being swallowed.
type Observer interface {
	AuditAppend(ok bool)
}

// Service wraps a Store with validation, retry, deadline and error mapping.
type Service struct {
	store    Store
	logger   *slog.Logger
	dedup    Deduper
	observer Observer
	timeout  time.Duration
	now      func() time.Time
}

// ServiceConfig groups optional service dependencies.
type ServiceConfig struct {
	Dedup     Deduper
	Observer  Observer
	OpTimeout time.Duration
}

// NewService constructs the audit service.
func NewService(store Store, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.OpTimeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &Service{
		store:    store,
		logger:   logger,
		dedup:    cfg.Dedup,
		observer: cfg.Observer,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Append validates the entry and stores it. A transient store failure is
// retried once before ErrStorage surfaces. The write runs on a context
// detached from caller cancellation so an append either completes or fails
// whole, never half-written because a UI render was abandoned.
func (s *Service) Append(ctx context.Context, entry Entry) (Record, error) {
	if s.store == nil {
		return Record{}, fmt.Errorf("%w: store not configured", ErrStorage)
	}
	entry, err := normalizeEntry(entry)
	if err != nil {
		return Record{}, err
	}

	if s.dedup != nil && entry.DedupKey != "" {
		if err := s.dedup.CheckAndInsert(ctx, entry.DedupKey, "audit"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Record{}, ErrDuplicateAppend
			}
			return Record{}, fmt.Errorf("%w: dedup check: %v", ErrStorage, err)
		}
	}

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	record, err := s.store.Append(opCtx, entry)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn("audit append retry", slog.Any("error", err))
		record, err = s.store.Append(opCtx, entry)
	}
	if err != nil {
		s.observe(false)
		s.logger.Error("audit append failed", slog.String("action", entry.Action), slog.Any("error", err))
		if errors.Is(err, context.DeadlineExceeded) {
			return Record{}, fmt.Errorf("%w: append", ErrTimeout)
		}
		return Record{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	s.observe(true)
	return record, nil
}

// Query returns matching records newest-first. An inverted time range yields
// an empty result, not an error; malformed filters yield ErrInvalidFilter.
func (s *Service) Query(ctx context.Context, filter Filter) ([]Record, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: store not configured", ErrStorage)
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	if filter.IsEmptyRange() {
		return []Record{}, nil
	}
	if filter.Limit <= 0 || filter.Limit > DefaultQueryLimit {
		filter.Limit = DefaultQueryLimit
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	records, err := s.store.Query(opCtx, filter)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: query", ErrTimeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return records, nil
}

// Stats aggregates severity, resource and actor counts plus activity within
// the last rolling hour. It is derived from the same Query path (including
// its limit) so the two views cannot disagree.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	records, err := s.Query(ctx, Filter{})
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		Total:      len(records),
		BySeverity: make(map[Severity]int),
		ByResource: make(map[string]int),
		ByActor:    make(map[string]int),
	}
	cutoff := s.now().Add(-time.Hour)
	for _, r := range records {
		stats.BySeverity[r.Severity]++
		stats.ByResource[r.ResourceType]++
		stats.ByActor[r.ActorName]++
		if r.Timestamp.After(cutoff) {
			stats.LastHour++
		}
	}
	return stats, nil
}

// ExportCSV renders the filtered ledger as a CSV document.
func (s *Service) ExportCSV(ctx context.Context, filter Filter) ([]byte, error) {
	records, err := s.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	return WriteCSV(records)
}

// Purge removes records older than the retention window.
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	if s.store == nil {
		return 0, fmt.Errorf("%w: store not configured", ErrStorage)
	}
	if retention <= 0 {
		return 0, nil
	}
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	purged, err := s.store.Purge(opCtx, s.now().Add(-retention))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: purge", ErrTimeout)
		}
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return purged, nil
}

func (s *Service) observe(ok bool) {
	if s.observer != nil {
		s.observer.AuditAppend(ok)
	}
}

func normalizeEntry(entry Entry) (Entry, error) {
	if entry.Action == "" || entry.ResourceType == "" {
		return Entry{}, fmt.Errorf("%w: action and resource type required", ErrInvalidEntry)
	}
	if entry.Severity == "" {
		entry.Severity = SeverityLow
	} else if _, ok := ParseSeverity(string(entry.Severity)); !ok {
		return Entry{}, fmt.Errorf("%w: unknown severity %q", ErrInvalidEntry, entry.Severity)
	}
	if entry.Status == "" {
		entry.Status = StatusSuccess
	} else if _, ok := ParseStatus(string(entry.Status)); !ok {
		return Entry{}, fmt.Errorf("%w: unknown status %q", ErrInvalidEntry, entry.Status)
	}
	return entry, nil
}

func validateFilter(filter Filter) error {
	if filter.Severity != "" {
		if _, ok := ParseSeverity(string(filter.Severity)); !ok {
			return fmt.Errorf("%w: unknown severity %q", ErrInvalidFilter, filter.Severity)
		}
	}
	if filter.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidFilter)
	}
	return nil
}
