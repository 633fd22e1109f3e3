package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fleetdesk/fleetdesk/internal/shared"
)

type stubStore struct {
	records    []Record
	appendErrs []error
	appends    int
	lastEntry  Entry
	nextID     int64
	clock      time.Time
}

func (s *stubStore) Append(ctx context.Context, entry Entry) (Record, error) {
	s.appends++
	s.lastEntry = entry
	if len(s.appendErrs) > 0 {
		err := s.appendErrs[0]
		s.appendErrs = s.appendErrs[1:]
		if err != nil {
			return Record{}, err
		}
	}
	s.nextID++
	record := Record{
		ID:           s.nextID,
		Timestamp:    s.clock,
		ActorID:      entry.ActorID,
		ActorName:    entry.ActorName,
		ActorRole:    entry.ActorRole,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		Severity:     entry.Severity,
		Status:       entry.Status,
	}
	s.records = append(s.records, record)
	return record, nil
}

func (s *stubStore) Query(ctx context.Context, filter Filter) ([]Record, error) {
	out := make([]Record, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		if filter.Matches(s.records[i]) {
			out = append(out, s.records[i])
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *stubStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type countingObserver struct {
	ok     int
	failed int
}

func (o *countingObserver) AuditAppend(ok bool) {
	if ok {
		o.ok++
	} else {
		o.failed++
	}
}

func TestAppendAssignsDefaults(t *testing.T) {
	store := &stubStore{clock: time.Now()}
	svc := NewService(store, nil, ServiceConfig{})
	record, err := svc.Append(context.Background(), Entry{Action: "CREATE_VEHICLE", ResourceType: "vehicles"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if record.Severity != SeverityLow || record.Status != StatusSuccess {
		t.Fatalf("expected defaults, got %s/%s", record.Severity, record.Status)
	}
	if record.ID == 0 || record.Timestamp.IsZero() {
		t.Fatalf("expected assigned id and timestamp")
	}
}

func TestAppendRejectsInvalidEntry(t *testing.T) {
	svc := NewService(&stubStore{}, nil, ServiceConfig{})
	if _, err := svc.Append(context.Background(), Entry{ResourceType: "vehicles"}); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
	if _, err := svc.Append(context.Background(), Entry{Action: "X", ResourceType: "vehicles", Severity: "EXTREME"}); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry for unknown severity, got %v", err)
	}
}

func TestAppendRetriesOnceThenSucceeds(t *testing.T) {
	store := &stubStore{clock: time.Now(), appendErrs: []error{errors.New("connection reset")}}
	observer := &countingObserver{}
	svc := NewService(store, nil, ServiceConfig{Observer: observer})
	if _, err := svc.Append(context.Background(), Entry{Action: "LOGIN", ResourceType: "auth"}); err != nil {
		t.Fatalf("append after retry: %v", err)
	}
	if store.appends != 2 {
		t.Fatalf("expected 2 attempts, got %d", store.appends)
	}
	if observer.ok != 1 || observer.failed != 0 {
		t.Fatalf("unexpected observer counts: %+v", observer)
	}
}

func TestAppendSurfacesStorageError(t *testing.T) {
	store := &stubStore{appendErrs: []error{errors.New("down"), errors.New("down")}}
	observer := &countingObserver{}
	svc := NewService(store, nil, ServiceConfig{Observer: observer})
	_, err := svc.Append(context.Background(), Entry{Action: "LOGIN", ResourceType: "auth"})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if observer.failed != 1 {
		t.Fatalf("audit loss must be observable, got %+v", observer)
	}
}

func TestAppendIgnoresCallerCancellation(t *testing.T) {
	store := &stubStore{clock: time.Now()}
	svc := NewService(store, nil, ServiceConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Append(ctx, Entry{Action: "LOGOUT", ResourceType: "auth"}); err != nil {
		t.Fatalf("append must not be cancellable mid-write: %v", err)
	}
}

type stubDedup struct {
	seen map[string]bool
}

func (d *stubDedup) CheckAndInsert(ctx context.Context, key, module string) error {
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	if d.seen[key] {
		return shared.ErrIdempotencyConflict
	}
	d.seen[key] = true
	return nil
}

func TestAppendDeduplicates(t *testing.T) {
	store := &stubStore{clock: time.Now()}
	svc := NewService(store, nil, ServiceConfig{Dedup: &stubDedup{}})
	entry := Entry{Action: "CREATE_VEHICLE", ResourceType: "vehicles", DedupKey: "req-42"}
	if _, err := svc.Append(context.Background(), entry); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if _, err := svc.Append(context.Background(), entry); !errors.Is(err, ErrDuplicateAppend) {
		t.Fatalf("expected ErrDuplicateAppend, got %v", err)
	}
	if len(store.records) != 1 {
		t.Fatalf("duplicate append must not write, got %d records", len(store.records))
	}
}

func TestQueryInvertedRangeIsEmpty(t *testing.T) {
	store := &stubStore{clock: time.Now()}
	svc := NewService(store, nil, ServiceConfig{})
	if _, err := svc.Append(context.Background(), Entry{Action: "LOGIN", ResourceType: "auth"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	records, err := svc.Query(context.Background(), Filter{
		From: time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("inverted range must not error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty result, got %d", len(records))
	}
}

func TestQueryRejectsUnknownSeverity(t *testing.T) {
	svc := NewService(&stubStore{}, nil, ServiceConfig{})
	if _, err := svc.Query(context.Background(), Filter{Severity: "NOISE"}); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestStatsMatchesQuery(t *testing.T) {
	store := &stubStore{clock: time.Now()}
	svc := NewService(store, nil, ServiceConfig{})
	for _, severity := range []Severity{SeverityLow, SeverityCritical, SeverityMedium, SeverityLow} {
		if _, err := svc.Append(context.Background(), Entry{Action: "UPDATE_VEHICLE", ResourceType: "vehicles", Severity: severity, ActorName: "R. Diallo"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	records, err := svc.Query(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var sum int
	for _, count := range stats.BySeverity {
		sum += count
	}
	if sum != len(records) {
		t.Fatalf("severity counts sum %d != query length %d", sum, len(records))
	}
	if stats.BySeverity[SeverityLow] != 2 || stats.BySeverity[SeverityCritical] != 1 {
		t.Fatalf("unexpected severity counts: %+v", stats.BySeverity)
	}
	if stats.LastHour != 4 {
		t.Fatalf("expected 4 recent records, got %d", stats.LastHour)
	}
}
