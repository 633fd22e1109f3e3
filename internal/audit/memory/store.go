// Package memory provides the in-memory audit store used by tests and demo
// deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fleetdesk/fleetdesk/internal/audit"
)

// Store keeps the ledger in a mutex-guarded slice. Appends are serialized;
// queries work on a snapshot so concurrent reads never observe a half-written
// record.
type Store struct {
	mu      sync.Mutex
	records []audit.Record
	nextID  int64
	lastAt  time.Time
	clock   func() time.Time
}

// New constructs an empty store.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock constructs a store with an injectable clock for tests.
func NewWithClock(clock func() time.Time) *Store {
	return &Store{clock: clock}
}

// Append assigns the next id and a non-decreasing timestamp, then stores a
// copy of the entry. The context is intentionally not consulted: an append
// either completes or fails whole, it is never abandoned mid-write.
func (s *Store) Append(_ context.Context, entry audit.Entry) (audit.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.clock().UTC()
	if at.Before(s.lastAt) {
		// Clock went backwards; reuse the last timestamp and let the id
		// keep ordering well-defined.
		at = s.lastAt
	}
	s.lastAt = at
	s.nextID++

	record := audit.Record{
		ID:            s.nextID,
		Timestamp:     at,
		ActorID:       entry.ActorID,
		ActorName:     entry.ActorName,
		ActorRole:     entry.ActorRole,
		Action:        entry.Action,
		ResourceType:  entry.ResourceType,
		ResourceID:    entry.ResourceID,
		Details:       copyDetails(entry.Details),
		Severity:      entry.Severity,
		Status:        entry.Status,
		SourceAddress: entry.SourceAddress,
		ClientAgent:   entry.ClientAgent,
	}
	s.records = append(s.records, record)
	return record, nil
}

// Query filters a snapshot of the ledger and returns it newest-first, id
// descending on equal timestamps.
func (s *Store) Query(ctx context.Context, filter audit.Filter) ([]audit.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if filter.IsEmptyRange() {
		return []audit.Record{}, nil
	}

	s.mu.Lock()
	snapshot := make([]audit.Record, len(s.records))
	copy(snapshot, s.records)
	s.mu.Unlock()

	matched := make([]audit.Record, 0, len(snapshot))
	for _, record := range snapshot {
		if filter.Matches(record) {
			matched = append(matched, record)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].ID > matched[j].ID
	})
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Purge drops records older than cutoff.
func (s *Store) Purge(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var purged int64
	for _, record := range s.records {
		if record.Timestamp.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, record)
	}
	s.records = kept
	return purged, nil
}

func copyDetails(details map[string]string) map[string]string {
	if details == nil {
		return nil
	}
	out := make(map[string]string, len(details))
	for k, v := range details {
		out[k] = v
	}
	return out
}
