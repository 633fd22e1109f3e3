// Package audit implements the append-only ledger of user actions: append,
// conjunctive filtering, aggregate stats and CSV export. Records are immutable
// once stored; the only destructive operation is the retention purge.
package audit

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Severity classifies how sensitive the recorded action is. It is assigned by
// the caller at append time, never derived by the store.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Severities lists every known severity.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// ParseSeverity maps a raw string to a known Severity.
func ParseSeverity(value string) (Severity, bool) {
	switch Severity(strings.ToUpper(strings.TrimSpace(value))) {
	case SeverityLow:
		return SeverityLow, true
	case SeverityMedium:
		return SeverityMedium, true
	case SeverityHigh:
		return SeverityHigh, true
	case SeverityCritical:
		return SeverityCritical, true
	}
	return "", false
}

// Status records the outcome of the tracked action.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusWarning Status = "WARNING"
)

// ParseStatus maps a raw string to a known Status.
func ParseStatus(value string) (Status, bool) {
	switch Status(strings.ToUpper(strings.TrimSpace(value))) {
	case StatusSuccess:
		return StatusSuccess, true
	case StatusFailed:
		return StatusFailed, true
	case StatusWarning:
		return StatusWarning, true
	}
	return "", false
}

// Record is one stored audit entry. ID and Timestamp are assigned by the
// store; actor fields are denormalized so history survives account changes.
type Record struct {
	ID            int64             `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	ActorID       string            `json:"actorId"`
	ActorName     string            `json:"actorName"`
	ActorRole     string            `json:"actorRole"`
	Action        string            `json:"action"`
	ResourceType  string            `json:"resourceType"`
	ResourceID    string            `json:"resourceId,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
	Severity      Severity          `json:"severity"`
	Status        Status            `json:"status"`
	SourceAddress string            `json:"sourceAddress,omitempty"`
	ClientAgent   string            `json:"clientAgent,omitempty"`
}

// Entry is the caller-supplied part of a record. ID and Timestamp are never
// accepted from callers.
type Entry struct {
	ActorID       string
	ActorName     string
	ActorRole     string
	Action        string
	ResourceType  string
	ResourceID    string
	Details       map[string]string
	Severity      Severity
	Status        Status
	SourceAddress string
	ClientAgent   string

	// DedupKey, when set, guards retried appends against double-writes.
	DedupKey string
}

// Filter narrows a query. All fields are optional and combined with AND.
type Filter struct {
	Severity       Severity
	ResourceType   string
	ActionContains string
	ActorContains  string
	From           time.Time
	To             time.Time
	Limit          int
}

// IsEmptyRange reports whether the filter's time window excludes everything.
func (f Filter) IsEmptyRange() bool {
	return !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To)
}

var fold = cases.Fold()

// Matches reports whether a record satisfies the filter's predicate fields.
// Substring checks use caseless folding so accented actor names match
// regardless of the case typed into the search box.
func (f Filter) Matches(r Record) bool {
	if f.Severity != "" && r.Severity != f.Severity {
		return false
	}
	if f.ResourceType != "" && !strings.EqualFold(r.ResourceType, f.ResourceType) {
		return false
	}
	if f.ActionContains != "" && !foldContains(r.Action, f.ActionContains) {
		return false
	}
	if f.ActorContains != "" && !foldContains(r.ActorName, f.ActorContains) {
		return false
	}
	if !f.From.IsZero() && r.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.Timestamp.After(f.To) {
		return false
	}
	return true
}

func foldContains(haystack, needle string) bool {
	return strings.Contains(fold.String(haystack), fold.String(needle))
}

// Stats aggregates the ledger the same way the dashboard header does.
type Stats struct {
	Total      int              `json:"total"`
	BySeverity map[Severity]int `json:"bySeverity"`
	ByResource map[string]int   `json:"byResource"`
	ByActor    map[string]int   `json:"byActor"`
	LastHour   int              `json:"lastHour"`
}
