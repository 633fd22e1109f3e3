// Package postgres provides the production audit store backed by the
// audit_records table.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetdesk/fleetdesk/internal/audit"
)

// Store persists audit records in PostgreSQL. Ids come from a BIGSERIAL and
// occurred_at from the database clock, so the descending (occurred_at, id)
// ordering holds across application instances.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store backed by the provided pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const appendSQL = `
INSERT INTO audit_records
	(actor_id, actor_name, actor_role, action, resource_type, resource_id,
	 details, severity, status, source_address, client_agent)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, occurred_at`

// Append stores the entry and returns it with the assigned id and timestamp.
func (s *Store) Append(ctx context.Context, entry audit.Entry) (audit.Record, error) {
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return audit.Record{}, fmt.Errorf("audit/postgres: marshal details: %w", err)
	}

	record := audit.Record{
		ActorID:       entry.ActorID,
		ActorName:     entry.ActorName,
		ActorRole:     entry.ActorRole,
		Action:        entry.Action,
		ResourceType:  entry.ResourceType,
		ResourceID:    entry.ResourceID,
		Details:       entry.Details,
		Severity:      entry.Severity,
		Status:        entry.Status,
		SourceAddress: entry.SourceAddress,
		ClientAgent:   entry.ClientAgent,
	}

	var occurredAt pgtype.Timestamptz
	err = s.pool.QueryRow(ctx, appendSQL,
		entry.ActorID, entry.ActorName, entry.ActorRole,
		entry.Action, entry.ResourceType, entry.ResourceID,
		detailsJSON, string(entry.Severity), string(entry.Status),
		entry.SourceAddress, entry.ClientAgent,
	).Scan(&record.ID, &occurredAt)
	if err != nil {
		return audit.Record{}, fmt.Errorf("audit/postgres: append: %w", err)
	}
	if occurredAt.Valid {
		record.Timestamp = occurredAt.Time
	}
	return record, nil
}

const querySQL = `
SELECT id, occurred_at, actor_id, actor_name, actor_role, action,
       resource_type, resource_id, details, severity, status,
       source_address, client_agent
FROM audit_records
WHERE ($1 = '' OR severity = $1)
  AND ($2 = '' OR lower(resource_type) = lower($2))
  AND ($3 = '' OR action ILIKE '%' || $3 || '%')
  AND ($4 = '' OR actor_name ILIKE '%' || $4 || '%')
  AND ($5::timestamptz IS NULL OR occurred_at >= $5)
  AND ($6::timestamptz IS NULL OR occurred_at <= $6)
ORDER BY occurred_at DESC, id DESC
LIMIT $7`

// Query returns matching records newest-first.
func (s *Store) Query(ctx context.Context, filter audit.Filter) ([]audit.Record, error) {
	if filter.IsEmptyRange() {
		return []audit.Record{}, nil
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = audit.DefaultQueryLimit
	}

	rows, err := s.pool.Query(ctx, querySQL,
		string(filter.Severity),
		strings.TrimSpace(filter.ResourceType),
		strings.TrimSpace(filter.ActionContains),
		strings.TrimSpace(filter.ActorContains),
		toPgTime(filter.From),
		toPgTime(filter.To),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit/postgres: query: %w", err)
	}
	defer rows.Close()

	records := make([]audit.Record, 0, limit)
	for rows.Next() {
		var (
			record      audit.Record
			occurredAt  pgtype.Timestamptz
			detailsJSON []byte
		)
		if err := rows.Scan(
			&record.ID, &occurredAt, &record.ActorID, &record.ActorName,
			&record.ActorRole, &record.Action, &record.ResourceType,
			&record.ResourceID, &detailsJSON, &record.Severity,
			&record.Status, &record.SourceAddress, &record.ClientAgent,
		); err != nil {
			return nil, fmt.Errorf("audit/postgres: scan: %w", err)
		}
		if occurredAt.Valid {
			record.Timestamp = occurredAt.Time
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &record.Details); err != nil {
				return nil, fmt.Errorf("audit/postgres: unmarshal details: %w", err)
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit/postgres: rows: %w", err)
	}
	return records, nil
}

// Purge deletes records older than cutoff.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_records WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit/postgres: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}
