// Package watcher polls the dashboard aggregates over a rolling window and
// emits alerts when ingestion stalls, passive noise spikes or new tools and
// event types show up.
package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/blackwell-systems/pluginwatch/internal/analyzer"
	"github.com/blackwell-systems/pluginwatch/internal/dashboard"
	"github.com/blackwell-systems/pluginwatch/internal/store"
)

// Source is the dashboard query the watcher polls.
type Source interface {
	Dashboard(ctx context.Context, q dashboard.Query, opts dashboard.DashboardOptions) (*dashboard.DashboardResponse, error)
	Now() time.Time
}

// WatchState is the rolling-window aggregate as of one poll.
type WatchState struct {
	Timestamp          time.Time
	Fingerprint        string
	TotalEvents        int
	MeaningfulEvents   int
	PassiveEvents      int
	NoiseShare         float64
	SessionCount       int
	AuthenticatedUsers int
	LatestEventAt      time.Time
	ToolEvents         map[string]int // tool -> events
	EventTypes         map[string]int // event type -> events
}

// Alert is one notable change found by the watcher.
type Alert struct {
	Level   string // LevelCritical, LevelWarning or LevelInfo
	Title   string
	Message string
	Time    time.Time
}

// Thresholds tune when alerts fire.
type Thresholds struct {
	// NoiseShare is the passive share above which a noise alert fires.
	NoiseShare float64
	// StallPeriods is how many polls without a newer event count as a stall.
	StallPeriods int
}

// Watcher polls a Source at a fixed interval and hands new alerts to a
// callback.
type Watcher struct {
	source     Source
	interval   time.Duration
	window     time.Duration
	thresholds Thresholds
	alertFn    func(Alert)

	previous *WatchState
	stalled  int
	// seen holds the alerts raised by the last check; they stay quiet
	// until the data behind them changes.
	seen map[string]struct{}
}

// DefaultWindow is the rolling window the watcher aggregates over.
const DefaultWindow = 24 * time.Hour

// New creates a Watcher over source.
func New(source Source, interval time.Duration, th Thresholds, alertFn func(Alert)) *Watcher {
	return &Watcher{
		source:     source,
		interval:   interval,
		window:     DefaultWindow,
		thresholds: th,
		alertFn:    alertFn,
		seen:       map[string]struct{}{},
	}
}

// SetWindow overrides the rolling window. Non-positive values are ignored.
func (w *Watcher) SetWindow(d time.Duration) {
	if d > 0 {
		w.window = d
	}
}

// Run records a baseline, then checks once per interval until ctx ends.
func (w *Watcher) Run(ctx context.Context) error {
	baseline, err := w.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}
	w.previous = baseline

	tick := time.NewTicker(w.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
		alerts := w.Check(ctx)
		if w.alertFn == nil {
			continue
		}
		for _, a := range alerts {
			w.alertFn(a)
		}
	}
}

// Check takes a snapshot, compares it with the previous one and returns
// the alerts that were not already raised by the last check.
func (w *Watcher) Check(ctx context.Context) []Alert {
	curr, err := w.Snapshot(ctx)
	if err != nil {
		a := alertf(LevelWarning, "Snapshot failed", "Could not query the event store: %v", err)
		a.Time = w.source.Now()
		return []Alert{a}
	}
	prev := w.previous
	w.previous = curr
	if prev == nil {
		return nil
	}

	raw := Compare(prev, curr, w.thresholds)
	if a, ok := w.stall(prev, curr); ok {
		a.Time = curr.Timestamp
		raw = append(raw, a)
	}
	return w.fresh(raw)
}

// fresh drops alerts identical to ones raised by the previous check.
func (w *Watcher) fresh(raw []Alert) []Alert {
	next := make(map[string]struct{}, len(raw))
	var out []Alert
	for _, a := range raw {
		key := a.Level + "\x00" + a.Title + "\x00" + a.Message
		next[key] = struct{}{}
		if _, dup := w.seen[key]; !dup {
			out = append(out, a)
		}
	}
	w.seen = next
	return out
}

// stall counts consecutive polls in which the newest event did not move
// and reports the transitions into and out of a stall.
func (w *Watcher) stall(prev, curr *WatchState) (Alert, bool) {
	limit := w.thresholds.StallPeriods
	if limit <= 0 || curr.LatestEventAt.IsZero() {
		return Alert{}, false
	}
	latest := curr.LatestEventAt.Format(time.RFC3339)

	if curr.LatestEventAt.After(prev.LatestEventAt) {
		wasStalled := w.stalled >= limit
		w.stalled = 0
		if !wasStalled {
			return Alert{}, false
		}
		return alertf(LevelInfo, "Ingest resumed", "New events arriving again (latest %s)", latest), true
	}

	w.stalled++
	if w.stalled < limit {
		return Alert{}, false
	}
	return alertf(LevelCritical, "Ingest stalled", "No new events since %s", latest), true
}

// Snapshot aggregates the window ending at the source's current time.
func (w *Watcher) Snapshot(ctx context.Context) (*WatchState, error) {
	to := w.source.Now()
	q := dashboard.Query{From: to.Add(-w.window), To: to, Auth: store.AuthAll}
	resp, err := w.source.Dashboard(ctx, q, snapshotOptions)
	if err != nil {
		return nil, err
	}
	return stateFrom(resp, to), nil
}

// snapshotOptions keeps the per-poll query small; the watcher only reads
// the KPIs, tool and event-type counts and the newest event.
var snapshotOptions = dashboard.DashboardOptions{
	Heatmap:             analyzer.HeatmapOptions{Compact: true, Limit: 1, GridX: 1, GridY: 1},
	SessionsLimit:       1,
	EventsLimit:         1,
	IncludeSystemEvents: true,
}

func stateFrom(resp *dashboard.DashboardResponse, at time.Time) *WatchState {
	k := resp.Summary.KPIs
	s := &WatchState{
		Timestamp:          at,
		Fingerprint:        resp.Fingerprint,
		TotalEvents:        k.TotalEvents,
		MeaningfulEvents:   k.MeaningfulEvents,
		PassiveEvents:      k.PassiveEvents,
		NoiseShare:         resp.Insights.NoiseShare,
		SessionCount:       k.TotalSessions,
		AuthenticatedUsers: k.AuthenticatedUsers,
		ToolEvents:         make(map[string]int, len(resp.ToolUsage.Tools)),
		EventTypes:         make(map[string]int, len(resp.EventTypeBreakdown)),
	}
	for _, t := range resp.ToolUsage.Tools {
		s.ToolEvents[t.Tool] = t.EventCount
	}
	for _, row := range resp.EventTypeBreakdown {
		s.EventTypes[row.EventType] = row.Count
	}
	if ev := resp.RecentEvents.Events; len(ev) > 0 {
		s.LatestEventAt = ev[0].EventAt
	}
	return s
}
