// Package jobs holds the background task definitions and the Asynq worker
// that runs them.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeAuditPurge removes audit records past the retention window.
	TaskTypeAuditPurge = "audit:purge_expired"
	// TaskTypeIdempotencyCleanup drops stale idempotency keys.
	TaskTypeIdempotencyCleanup = "idempotency:cleanup"
)

// AuditPurgePayload carries an optional retention override. When zero, the
// handler reads the configured retention setting.
type AuditPurgePayload struct {
	RetentionDays int `json:"retentionDays"`
}

// NewAuditPurgeTask constructs an Asynq task.
func NewAuditPurgeTask(payload AuditPurgePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditPurge, data), nil
}

// Purger removes audit records older than the retention window.
type Purger interface {
	Purge(ctx context.Context, retention time.Duration) (int64, error)
}

// RetentionSource resolves the configured retention window in days.
type RetentionSource interface {
	RetentionDays(ctx context.Context) int
}

// NewAuditPurgeHandler builds the handler for TaskTypeAuditPurge.
func NewAuditPurgeHandler(ledger Purger, retention RetentionSource, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AuditPurgePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		days := payload.RetentionDays
		if days <= 0 && retention != nil {
			days = retention.RetentionDays(ctx)
		}
		if days <= 0 {
			logger.Info("audit purge skipped, no retention configured")
			return nil
		}
		purged, err := ledger.Purge(ctx, time.Duration(days)*24*time.Hour)
		if err != nil {
			logger.Error("audit purge", slog.Any("error", err))
			return err
		}
		logger.Info("audit purge done",
			slog.Int("retention_days", days),
			slog.Int64("purged", purged))
		return nil
	}
}

// KeyCleaner removes idempotency keys older than the given age.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

const idempotencyKeyMaxAge = 48 * time.Hour

// NewIdempotencyCleanupHandler builds the handler for TaskTypeIdempotencyCleanup.
func NewIdempotencyCleanupHandler(store KeyCleaner, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		if store == nil {
			return nil
		}
		if err := store.Cleanup(ctx, idempotencyKeyMaxAge); err != nil {
			logger.Error("idempotency cleanup", slog.Any("error", err))
			return err
		}
		logger.Info("idempotency cleanup done")
		return nil
	}
}
