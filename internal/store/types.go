// Package store provides SQLite access for pluginwatch: the append-only
// telemetry event table and KPI snapshots.
package store

import (
	"strings"
	"time"
)

// Snapshot represents a point-in-time capture of dashboard KPIs.
type Snapshot struct {
	ID      int64     `json:"id"`
	TakenAt time.Time `json:"taken_at"`
	Command string    `json:"command"`
	Version string    `json:"version"`
}

// AggregateMetric represents a named metric value within a snapshot.
type AggregateMetric struct {
	ID          int64   `json:"id"`
	SnapshotID  int64   `json:"snapshot_id"`
	MetricName  string  `json:"metric_name"`
	MetricValue float64 `json:"metric_value"`
	Detail      string  `json:"detail,omitempty"`
}

// SnapshotDiff represents the comparison between two snapshots.
type SnapshotDiff struct {
	Previous *Snapshot     `json:"previous"`
	Current  *Snapshot     `json:"current"`
	Deltas   []MetricDelta `json:"deltas"`
}

// MetricDelta represents the change in a single metric between snapshots.
type MetricDelta struct {
	Name      string  `json:"name"`
	Previous  float64 `json:"previous"`
	Current   float64 `json:"current"`
	Delta     float64 `json:"delta"`
	Direction string  `json:"direction"` // "up", "down", "unchanged"
}

// AuthFilter restricts events by the authentication state of their user.
type AuthFilter string

const (
	AuthAll           AuthFilter = "all"
	AuthAuthenticated AuthFilter = "authenticated"
	AuthAnonymous     AuthFilter = "anonymous"
)

// ParseAuthFilter maps a query value onto an AuthFilter. Unknown values
// mean all.
func ParseAuthFilter(s string) AuthFilter {
	switch AuthFilter(strings.ToLower(strings.TrimSpace(s))) {
	case AuthAuthenticated:
		return AuthAuthenticated
	case AuthAnonymous:
		return AuthAnonymous
	default:
		return AuthAll
	}
}

// Filter is the predicate shared by every event query.
type Filter struct {
	// From and To bound event_at inclusively.
	From time.Time
	To   time.Time

	// Tool is an exact tool match. Empty or "all" means any tool.
	Tool string

	// ToolAnyField widens Tool to payload.element.toolId and payload.uiTool.
	ToolAnyField bool

	Auth AuthFilter

	// Actions is an allow-list matched against event_type and every
	// action-bearing payload field.
	Actions []string

	// EventTypes restricts event_type exactly.
	EventTypes []string

	ExcludePassive bool

	// NewestFirst orders by event_at descending; default is ascending.
	NewestFirst bool

	// Limit caps the number of rows. Zero means no cap.
	Limit int
}

// InsertResult reports a best-effort bulk insert.
type InsertResult struct {
	Inserted int
	// Errors holds one entry per event that could not be stored.
	Errors []error
}
