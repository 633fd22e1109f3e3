// Package vehicles manages the fleet inventory: registration, lifecycle
// status and mileage of every vehicle the company operates.
package vehicles

import (
	"errors"
	"strings"
	"time"
)

// VehicleStatus tracks where a vehicle sits in its lifecycle.
type VehicleStatus string

const (
	StatusAvailable   VehicleStatus = "AVAILABLE"
	StatusInMission   VehicleStatus = "IN_MISSION"
	StatusMaintenance VehicleStatus = "MAINTENANCE"
	StatusRetired     VehicleStatus = "RETIRED"
)

// ParseStatus normalizes a raw status string.
func ParseStatus(raw string) (VehicleStatus, bool) {
	switch VehicleStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusAvailable:
		return StatusAvailable, true
	case StatusInMission:
		return StatusInMission, true
	case StatusMaintenance:
		return StatusMaintenance, true
	case StatusRetired:
		return StatusRetired, true
	}
	return "", false
}

// Vehicle represents a fleet vehicle.
type Vehicle struct {
	ID           int64         `json:"id"`
	Registration string        `json:"registration"`
	Make         string        `json:"make"`
	Model        string        `json:"model"`
	Year         int           `json:"year"`
	Status       VehicleStatus `json:"status"`
	Mileage      int64         `json:"mileage"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// ListFilters represents list page filters.
type ListFilters struct {
	Page   int
	Limit  int
	Search string
	Status VehicleStatus
}

// CreateInput carries the fields accepted when registering a vehicle.
type CreateInput struct {
	Registration string
	Make         string
	Model        string
	Year         int
	Mileage      int64

	// IdempotencyKey, when set, makes retried creates safe.
	IdempotencyKey string
}

// UpdateInput carries the mutable fields of a vehicle.
type UpdateInput struct {
	Make    string
	Model   string
	Year    int
	Status  VehicleStatus
	Mileage int64
}

// Actor identifies who performs an operation, for the audit trail.
type Actor struct {
	ID            string
	Name          string
	Role          string
	SourceAddress string
	ClientAgent   string
}

// Sentinel errors for the vehicles domain.
var (
	ErrDuplicateRegistration = errors.New("vehicles: registration already exists")
	ErrMileageDecrease       = errors.New("vehicles: mileage cannot decrease")
	ErrRetired               = errors.New("vehicles: vehicle is retired")
)
