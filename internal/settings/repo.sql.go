package settings

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetdesk/fleetdesk/internal/shared"
)

// StorePort abstracts persistence for the service layer.
type StorePort interface {
	Get(ctx context.Context, key string) (string, time.Time, error)
	Upsert(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]storedValue, error)
}

type storedValue struct {
	Value     string
	UpdatedAt time.Time
}

// Store provides PostgreSQL backed persistence.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get fetches one stored value.
func (s *Store) Get(ctx context.Context, key string) (string, time.Time, error) {
	var value string
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, `SELECT value, updated_at FROM settings WHERE key = $1`, key).Scan(&value, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, shared.ErrNotFound
		}
		return "", time.Time{}, err
	}
	return value, updatedAt, nil
}

// Upsert writes a value, replacing any previous one.
func (s *Store) Upsert(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	return err
}

// All returns every stored value keyed by setting key.
func (s *Store) All(ctx context.Context) (map[string]storedValue, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value, updated_at FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]storedValue)
	for rows.Next() {
		var key string
		var stored storedValue
		if err := rows.Scan(&key, &stored.Value, &stored.UpdatedAt); err != nil {
			return nil, err
		}
		out[key] = stored
	}
	return out, rows.Err()
}

var _ StorePort = (*Store)(nil)
