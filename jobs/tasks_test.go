package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
)

type stubPurger struct {
	retention time.Duration
	purged    int64
	err       error
	calls     int
}

func (s *stubPurger) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	s.calls++
	s.retention = retention
	return s.purged, s.err
}

type stubRetention struct {
	days int
}

func (s *stubRetention) RetentionDays(ctx context.Context) int {
	return s.days
}

func TestAuditPurgeUsesPayloadOverride(t *testing.T) {
	purger := &stubPurger{purged: 12}
	handler := NewAuditPurgeHandler(purger, &stubRetention{days: 90}, nil)

	task, err := NewAuditPurgeTask(AuditPurgePayload{RetentionDays: 7})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := handler(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if purger.retention != 7*24*time.Hour {
		t.Fatalf("expected 7 day retention, got %s", purger.retention)
	}
}

func TestAuditPurgeFallsBackToSetting(t *testing.T) {
	purger := &stubPurger{}
	handler := NewAuditPurgeHandler(purger, &stubRetention{days: 30}, nil)

	task, err := NewAuditPurgeTask(AuditPurgePayload{})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := handler(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if purger.retention != 30*24*time.Hour {
		t.Fatalf("expected 30 day retention, got %s", purger.retention)
	}
}

func TestAuditPurgeSkipsWithoutRetention(t *testing.T) {
	purger := &stubPurger{}
	handler := NewAuditPurgeHandler(purger, &stubRetention{days: 0}, nil)

	task, err := NewAuditPurgeTask(AuditPurgePayload{})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := handler(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if purger.calls != 0 {
		t.Fatalf("purge must not run without retention")
	}
}

func TestAuditPurgeSurfacesError(t *testing.T) {
	purger := &stubPurger{err: errors.New("db down")}
	handler := NewAuditPurgeHandler(purger, &stubRetention{days: 30}, nil)

	task, err := NewAuditPurgeTask(AuditPurgePayload{})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := handler(context.Background(), task); err == nil {
		t.Fatalf("expected error so asynq retries")
	}
}

func TestAuditPurgeBadPayloadSkipsRetry(t *testing.T) {
	handler := NewAuditPurgeHandler(&stubPurger{}, nil, nil)
	task := asynq.NewTask(TaskTypeAuditPurge, []byte("{not json"))
	if err := handler(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}
