// Package settings stores typed application settings. Each setting is
// declared up front with a kind that validates candidate values, so a bad
// write is rejected before it reaches the database.
package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind discriminates how a setting value is validated.
type Kind string

const (
	KindToggle Kind = "toggle"
	KindSelect Kind = "select"
	KindText   Kind = "text"
	KindNumber Kind = "number"
)

// Definition declares a known setting.
type Definition struct {
	Key     string   `json:"key"`
	Kind    Kind     `json:"kind"`
	Default string   `json:"default"`
	Options []string `json:"options,omitempty"`
	Min     int64    `json:"min,omitempty"`
	Max     int64    `json:"max,omitempty"`
}

// Setting is a stored value together with its definition.
type Setting struct {
	Definition
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Sentinel errors for the settings domain.
var (
	ErrUnknownKey   = errors.New("settings: unknown key")
	ErrInvalidValue = errors.New("settings: invalid value")
)

// Validate checks a candidate value against the definition.
func (d Definition) Validate(value string) error {
	switch d.Kind {
	case KindToggle:
		if value != "true" && value != "false" {
			return fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, value)
		}
	case KindSelect:
		for _, option := range d.Options {
			if value == option {
				return nil
			}
		}
		return fmt.Errorf("%w: %q not in [%s]", ErrInvalidValue, value, strings.Join(d.Options, ", "))
	case KindNumber:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %q is not a number", ErrInvalidValue, value)
		}
		if n < d.Min || (d.Max > 0 && n > d.Max) {
			return fmt.Errorf("%w: %d out of range [%d, %d]", ErrInvalidValue, n, d.Min, d.Max)
		}
	case KindText:
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: empty text", ErrInvalidValue)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidValue, d.Kind)
	}
	return nil
}

// KeyAuditRetentionDays controls how long audit records are kept before the
// purge job removes them.
const KeyAuditRetentionDays = "audit.retention_days"

// Definitions lists every known setting with its default.
func Definitions() []Definition {
	return []Definition{
		{Key: "general.company_name", Kind: KindText, Default: "FleetDesk"},
		{Key: "general.locale", Kind: KindSelect, Default: "fr", Options: []string{"fr", "en"}},
		{Key: "fleet.default_page_size", Kind: KindNumber, Default: "20", Min: 5, Max: 100},
		{Key: "fleet.maintenance_alerts", Kind: KindToggle, Default: "true"},
		{Key: KeyAuditRetentionDays, Kind: KindNumber, Default: "90", Min: 7, Max: 3650},
		{Key: "audit.export_enabled", Kind: KindToggle, Default: "true"},
	}
}

func definitionFor(key string) (Definition, bool) {
	for _, def := range Definitions() {
		if def.Key == key {
			return def, true
		}
	}
	return Definition{}, false
}
