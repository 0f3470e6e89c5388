// Package analyzer folds a filtered telemetry event stream into the
// aggregates the dashboard renders. Every function here is pure: it reads
// the events it is given and never touches the store.
package analyzer

import (
	"time"

	"github.com/blackwell-systems/pluginwatch/internal/event"
	"github.com/blackwell-systems/pluginwatch/internal/taxonomy"
)

// Summary is the headline view of a time window.
type Summary struct {
	KPIs        SummaryKPIs   `json:"kpis"`
	TopTools    []ToolSummary `json:"topTools"`
	TopActions  []ActionCount `json:"topActions"`
	EventsByDay []DayBucket   `json:"eventsByDay"`
}

// SummaryKPIs are the scalar counters of a Summary.
type SummaryKPIs struct {
	TotalEvents        int `json:"totalEvents"`
	TotalSessions      int `json:"totalSessions"`
	AuthenticatedUsers int `json:"authenticatedUsers"`
	AnonymousUsers     int `json:"anonymousUsers"`
	AnonymousEvents    int `json:"anonymousEvents"`

	// Session durations are max(eventAt)-min(eventAt) per session, rounded
	// to whole milliseconds.
	AvgSessionDurationMs int64 `json:"avgSessionDurationMs"`
	MaxSessionDurationMs int64 `json:"maxSessionDurationMs"`

	MeaningfulEvents int `json:"meaningfulEvents"`
	PassiveEvents    int `json:"passiveEvents"`
}

// ToolSummary is one row of Summary.TopTools.
type ToolSummary struct {
	Tool              string  `json:"tool"`
	Events            int     `json:"events"`
	ActiveEventCount  int     `json:"activeEventCount"`
	PassiveEventCount int     `json:"passiveEventCount"`
	SessionCount      int     `json:"sessionCount"`
	TimeSpentMs       float64 `json:"timeSpentMs"`
}

// ActionCount counts one resolved action key.
type ActionCount struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}

// DayBucket counts events and distinct sessions on one UTC calendar day.
type DayBucket struct {
	Day      string `json:"day"`
	Events   int    `json:"events"`
	Sessions int    `json:"sessions"`
}

// ToolUsage is the per-tool breakdown.
type ToolUsage struct {
	Tool                   string  `json:"tool"`
	EventCount             int     `json:"eventCount"`
	ActiveEventCount       int     `json:"activeEventCount"`
	PassiveEventCount      int     `json:"passiveEventCount"`
	ClickCount             int     `json:"clickCount"`
	SessionCount           int     `json:"sessionCount"`
	UserCount              int     `json:"userCount"`
	AuthenticatedUserCount int     `json:"authenticatedUserCount"`
	AnonymousUserCount     int     `json:"anonymousUserCount"`
	TimeSpentMs            float64 `json:"timeSpentMs"`
}

// Session is reconstructed from the events sharing a session id.
type Session struct {
	SessionID         string     `json:"sessionId"`
	StartedAt         time.Time  `json:"startedAt"`
	EndedAt           time.Time  `json:"endedAt"`
	DurationMs        int64      `json:"durationMs"`
	EventCount        int        `json:"eventCount"`
	ActiveEventCount  int        `json:"activeEventCount"`
	PassiveEventCount int        `json:"passiveEventCount"`
	User              event.User `json:"user"`
	Tools             []string   `json:"tools"`
	LastSource        string     `json:"lastSource"`
}

// RecentEvent is a stored event annotated with its resolved action.
type RecentEvent struct {
	event.Event
	Action     string        `json:"action"`
	ActionMeta taxonomy.Meta `json:"actionMeta"`
	Passive    bool          `json:"passive"`
}

// HeatmapOptions controls Heatmap.
type HeatmapOptions struct {
	// Tool restricts points to clicks whose tool, payload.element.toolId or
	// payload.uiTool equals it. Empty or "all" keeps every click.
	Tool    string
	Compact bool
	// Limit keeps only the newest Limit clicks. Zero means no cap.
	Limit int
	GridX int
	GridY int
}

// Heatmap is either a binned grid (Compact) or a raw point list. Only the
// matching half is serialized.
type Heatmap struct {
	Compact bool `json:"compact,omitempty"`
	*HeatmapGrid
	*HeatmapPoints
}

// HeatmapGrid is the compact heatmap.
type HeatmapGrid struct {
	Grid        GridSize     `json:"grid"`
	Bins        []HeatmapBin `json:"bins"`
	MaxCount    int          `json:"maxCount"`
	TotalPoints int          `json:"totalPoints"`
	SampleCount int          `json:"sampleCount"`
}

// GridSize is the number of columns and rows of a heatmap grid.
type GridSize struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// HeatmapBin is one non-empty grid cell.
type HeatmapBin struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Count int `json:"count"`
}

// HeatmapPoints is the full heatmap.
type HeatmapPoints struct {
	Points []HeatmapPoint `json:"points"`
	Count  int            `json:"count"`
}

// HeatmapPoint is one click as reported by the client. Numeric fields are
// nil when the payload did not carry a usable number.
type HeatmapPoint struct {
	EventAt        time.Time `json:"eventAt"`
	Tool           string    `json:"tool"`
	X              *float64  `json:"x"`
	Y              *float64  `json:"y"`
	NormalizedX    *float64  `json:"normalizedX"`
	NormalizedY    *float64  `json:"normalizedY"`
	ViewportWidth  *float64  `json:"viewportWidth"`
	ViewportHeight *float64  `json:"viewportHeight"`
	ElementTag     string    `json:"elementTag,omitempty"`
	ElementID      string    `json:"elementId,omitempty"`
	ElementToolID  string    `json:"elementToolId,omitempty"`
}

// CatalogAction is one row of the action catalog.
type CatalogAction struct {
	Action     string        `json:"action"`
	Count      int           `json:"count"`
	EventTypes []string      `json:"eventTypes"`
	Meta       taxonomy.Meta `json:"meta"`
}

// EventTypeCount is one row of the event-type breakdown.
type EventTypeCount struct {
	EventType    string `json:"eventType"`
	Count        int    `json:"count"`
	SessionCount int    `json:"sessionCount"`
	Passive      bool   `json:"passive"`
}

// Features holds feature-specific counters.
type Features struct {
	KPIs                 FeatureKPIs        `json:"kpis"`
	PaletteExports       []PaletteCount     `json:"paletteExports"`
	FavoritedTools       []ToolCount        `json:"favoritedTools"`
	ImportSizeBuckets    []BucketCount      `json:"importSizeBuckets"`
	ExportSizeBuckets    []BucketCount      `json:"exportSizeBuckets"`
	ModeTime             ModeTime           `json:"modeTime"`
	DPIBreakdown         []DPICount         `json:"dpiBreakdown"`
	CompressionBreakdown []CompressionCount `json:"compressionBreakdown"`
	ColorModeBreakdown   []ColorModeCount   `json:"colorModeBreakdown"`
	MergeDistribution    []MergeCount       `json:"mergeDistribution"`
}

// FeatureKPIs are the scalar feature counters.
type FeatureKPIs struct {
	PaletteExportEvents  int           `json:"paletteExportEvents"`
	TopPaletteExport     *PaletteCount `json:"topPaletteExport"`
	FavoriteAdds         int           `json:"favoriteAdds"`
	TopFavoritedTool     *ToolCount    `json:"topFavoritedTool"`
	FavoriteRemoves      int           `json:"favoriteRemoves"`
	CollapsedModeMs      float64       `json:"collapsedModeMs"`
	ExpandedModeMs       float64       `json:"expandedModeMs"`
	ExportRuns           int           `json:"exportRuns"`
	PasswordEnabledRuns  int           `json:"passwordEnabledRuns"`
	PasswordDisabledRuns int           `json:"passwordDisabledRuns"`
	MergedPDFGroups      int           `json:"mergedPdfGroups"`
	MergedPagesTotal     int           `json:"mergedPagesTotal"`
	AvgPagesPerMerge     float64       `json:"avgPagesPerMerge"`
	MaxPagesPerMerge     int           `json:"maxPagesPerMerge"`
}

// PaletteCount counts one palette export key.
type PaletteCount struct {
	Palette string `json:"palette"`
	Count   int    `json:"count"`
}

// ToolCount counts favorite adds for one tool or importer.
type ToolCount struct {
	Tool  string `json:"tool"`
	Count int    `json:"count"`
}

// BucketCount counts one file-size bucket.
type BucketCount struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}

// ModeTime is time spent in the collapsed and expanded dashboard.
type ModeTime struct {
	CollapsedMs float64 `json:"collapsedMs"`
	ExpandedMs  float64 `json:"expandedMs"`
}

// DPICount counts one DPI class.
type DPICount struct {
	DPI   string `json:"dpi"`
	Count int    `json:"count"`
}

// CompressionCount counts one compression level.
type CompressionCount struct {
	Compression string `json:"compression"`
	Count       int    `json:"count"`
}

// ColorModeCount counts one export color mode.
type ColorModeCount struct {
	ColorMode string `json:"colorMode"`
	Count     int    `json:"count"`
}

// MergeCount counts merged PDFs with a given page count.
type MergeCount struct {
	Pages int `json:"pages"`
	Count int `json:"count"`
}

// Insights are ratios derived from the other dashboard aggregates.
type Insights struct {
	TotalEvents             int        `json:"totalEvents"`
	MeaningfulEvents        int        `json:"meaningfulEvents"`
	PassiveEvents           int        `json:"passiveEvents"`
	ActiveShare             float64    `json:"activeShare"`
	NoiseShare              float64    `json:"noiseShare"`
	AvgMeaningfulPerSession float64    `json:"avgMeaningfulPerSession"`
	ClickCount              int        `json:"clickCount"`
	ClickPerSession         float64    `json:"clickPerSession"`
	TopMeaningfulEvent      *TopEvent  `json:"topMeaningfulEvent"`
	TopTool                 *ToolUsage `json:"topTool"`
	TopToolShare            float64    `json:"topToolShare"`
	ActiveToolCount         int        `json:"activeToolCount"`
	AuthenticatedUsers      int        `json:"authenticatedUsers"`
	AnonymousUsers          int        `json:"anonymousUsers"`
	AuthenticatedShare      float64    `json:"authenticatedShare"`
}

// TopEvent is the most frequent meaningful event type.
type TopEvent struct {
	EventType string        `json:"eventType"`
	Count     int           `json:"count"`
	Meta      taxonomy.Meta `json:"meta"`
}
