package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/fleetdesk/fleetdesk/internal/audit"
	"github.com/fleetdesk/fleetdesk/internal/shared"
)

// AuditPort receives the audit trail of setting changes.
type AuditPort interface {
	Append(ctx context.Context, entry audit.Entry) (audit.Record, error)
}

// Actor identifies who changes a setting.
type Actor struct {
	ID            string
	Name          string
	Role          string
	SourceAddress string
	ClientAgent   string
}

// Service validates and persists settings.
type Service struct {
	store    StorePort
	logger   *slog.Logger
	recorder AuditPort
}

// NewService builds Service.
func NewService(store StorePort, logger *slog.Logger, recorder AuditPort) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger, recorder: recorder}
}

// List returns every known setting, merging stored values over defaults.
func (s *Service) List(ctx context.Context) ([]Setting, error) {
	stored, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}
	defs := Definitions()
	out := make([]Setting, 0, len(defs))
	for _, def := range defs {
		setting := Setting{Definition: def, Value: def.Default}
		if value, ok := stored[def.Key]; ok {
			setting.Value = value.Value
			setting.UpdatedAt = value.UpdatedAt
		}
		out = append(out, setting)
	}
	return out, nil
}

// Update validates and writes one setting, leaving an audit trace.
func (s *Service) Update(ctx context.Context, key, value string, actor Actor) (Setting, error) {
	def, ok := definitionFor(key)
	if !ok {
		return Setting{}, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if err := def.Validate(value); err != nil {
		return Setting{}, err
	}
	previous := def.Default
	if stored, _, err := s.store.Get(ctx, key); err == nil {
		previous = stored
	} else if !errors.Is(err, shared.ErrNotFound) {
		return Setting{}, err
	}
	if err := s.store.Upsert(ctx, key, value); err != nil {
		return Setting{}, err
	}
	s.record(ctx, actor, audit.Entry{
		Action:     "UPDATE_SETTING",
		ResourceID: key,
		Details:    map[string]string{"from": previous, "to": value},
		Severity:   audit.SeverityMedium,
	})
	setting := Setting{Definition: def, Value: value}
	return setting, nil
}

// RetentionDays reads the audit retention window, falling back to the
// default when unset or unreadable.
func (s *Service) RetentionDays(ctx context.Context) int {
	def, _ := definitionFor(KeyAuditRetentionDays)
	fallback, _ := strconv.Atoi(def.Default)
	value, _, err := s.store.Get(ctx, KeyAuditRetentionDays)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("read retention setting", slog.Any("error", err))
		}
		return fallback
	}
	days, err := strconv.Atoi(value)
	if err != nil || days <= 0 {
		return fallback
	}
	return days
}

func (s *Service) record(ctx context.Context, actor Actor, entry audit.Entry) {
	if s.recorder == nil {
		return
	}
	entry.ActorID = actor.ID
	entry.ActorName = actor.Name
	entry.ActorRole = actor.Role
	entry.ResourceType = "settings"
	entry.SourceAddress = actor.SourceAddress
	entry.ClientAgent = actor.ClientAgent
	if _, err := s.recorder.Append(ctx, entry); err != nil {
		s.logger.Warn("audit append", slog.Any("error", err))
	}
}
