package vehicles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/fleetdesk/fleetdesk/internal/audit"
	"github.com/fleetdesk/fleetdesk/internal/shared"
)

// AuditPort receives the audit trail of every mutating fleet operation.
type AuditPort interface {
	Append(ctx context.Context, entry audit.Entry) (audit.Record, error)
}

// IdempotencyPort guards retried creates. Delete releases a key whose
// request failed before completing, so the client can retry it.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service coordinates fleet operations. Every write goes through the audit
// trail; reads do not.
type Service struct {
	repo        RepositoryPort
	logger      *slog.Logger
	recorder    AuditPort
	idempotency IdempotencyPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger, recorder AuditPort, idem IdempotencyPort) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, recorder: recorder, idempotency: idem}
}

// ErrDuplicateRequest marks a replayed create.
var ErrDuplicateRequest = errors.New("vehicles: request already processed")

const currentYearSlack = 1

// Create registers a new vehicle in the fleet.
func (s *Service) Create(ctx context.Context, input CreateInput, actor Actor) (Vehicle, error) {
	if err := validateCreate(input); err != nil {
		return Vehicle{}, err
	}
	insertedKey := ""
	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "vehicles"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Vehicle{}, ErrDuplicateRequest
			}
			return Vehicle{}, err
		}
		insertedKey = input.IdempotencyKey
	}
	vehicle, err := s.repo.Insert(ctx, Vehicle{
		Registration: input.Registration,
		Make:         input.Make,
		Model:        input.Model,
		Year:         input.Year,
		Status:       StatusAvailable,
		Mileage:      input.Mileage,
	})
	if err != nil {
		// The create did not happen; release the key so the client can retry.
		if insertedKey != "" {
			if delErr := s.idempotency.Delete(ctx, insertedKey); delErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		return Vehicle{}, err
	}
	s.record(ctx, actor, audit.Entry{
		Action:     "CREATE_VEHICLE",
		ResourceID: strconv.FormatInt(vehicle.ID, 10),
		Details:    map[string]string{"registration": vehicle.Registration},
		DedupKey:   input.IdempotencyKey,
	})
	return vehicle, nil
}

// Get fetches one vehicle.
func (s *Service) Get(ctx context.Context, id int64) (Vehicle, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a page of vehicles plus pagination metadata.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Vehicle, shared.Pagination, error) {
	vehicles, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return vehicles, shared.NewPagination(filters.Page, filters.Limit, total), nil
}

// Update applies the mutable fields of a vehicle.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput, actor Actor) (Vehicle, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Vehicle{}, err
	}
	// A retired vehicle is frozen. The only accepted update is an explicit
	// reactivation back to AVAILABLE.
	if current.Status == StatusRetired && input.Status != StatusAvailable {
		return Vehicle{}, ErrRetired
	}
	if input.Mileage < current.Mileage {
		return Vehicle{}, ErrMileageDecrease
	}
	if err := validateUpdate(input); err != nil {
		return Vehicle{}, err
	}
	updated, err := s.repo.Update(ctx, Vehicle{
		ID:      id,
		Make:    input.Make,
		Model:   input.Model,
		Year:    input.Year,
		Status:  input.Status,
		Mileage: input.Mileage,
	})
	if err != nil {
		return Vehicle{}, err
	}
	details := map[string]string{"registration": current.Registration}
	severity := audit.SeverityLow
	if current.Status != updated.Status {
		details["status"] = string(current.Status) + ">" + string(updated.Status)
		if updated.Status == StatusRetired {
			severity = audit.SeverityMedium
		}
	}
	s.record(ctx, actor, audit.Entry{
		Action:     "UPDATE_VEHICLE",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    details,
		Severity:   severity,
	})
	return updated, nil
}

// Delete removes a vehicle from the fleet.
func (s *Service) Delete(ctx context.Context, id int64, actor Actor) error {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, audit.Entry{
		Action:     "DELETE_VEHICLE",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]string{"registration": current.Registration},
		Severity:   audit.SeverityHigh,
	})
	return nil
}

func (s *Service) record(ctx context.Context, actor Actor, entry audit.Entry) {
	if s.recorder == nil {
		return
	}
	entry.ActorID = actor.ID
	entry.ActorName = actor.Name
	entry.ActorRole = actor.Role
	entry.ResourceType = "vehicles"
	entry.SourceAddress = actor.SourceAddress
	entry.ClientAgent = actor.ClientAgent
	if _, err := s.recorder.Append(ctx, entry); err != nil {
		s.logger.Warn("audit append", slog.Any("error", err))
	}
}

func validateCreate(input CreateInput) error {
	if input.Registration == "" {
		return fmt.Errorf("vehicles: registration required")
	}
	if input.Make == "" || input.Model == "" {
		return fmt.Errorf("vehicles: make and model required")
	}
	if err := validateYear(input.Year); err != nil {
		return err
	}
	if input.Mileage < 0 {
		return fmt.Errorf("vehicles: mileage cannot be negative")
	}
	return nil
}

func validateUpdate(input UpdateInput) error {
	if input.Make == "" || input.Model == "" {
		return fmt.Errorf("vehicles: make and model required")
	}
	if _, ok := ParseStatus(string(input.Status)); !ok {
		return fmt.Errorf("vehicles: unknown status %q", input.Status)
	}
	return validateYear(input.Year)
}

func validateYear(year int) error {
	if year < 1950 || year > time.Now().Year()+currentYearSlack {
		return fmt.Errorf("vehicles: implausible year %d", year)
	}
	return nil
}
