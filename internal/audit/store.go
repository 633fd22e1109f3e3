package audit

import (
	"context"
	"time"
)

// Store is the persistence contract for the ledger. The in-memory
// implementation backs tests and demo deployments, the postgres one backs
// production; service code never depends on the concrete shape.
type Store interface {
	// Append assigns id and timestamp and stores the record. Ids are
	// strictly increasing; timestamps never decrease, so descending
	// (timestamp, id) ordering stays well-defined under concurrent appends.
	Append(ctx context.Context, entry Entry) (Record, error)
	// Query returns matching records newest-first, id as tie-break.
	Query(ctx context.Context, filter Filter) ([]Record, error)
	// Purge deletes records older than cutoff and reports how many were
	// removed. Used only by the retention job.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}
