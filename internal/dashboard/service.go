// Package dashboard composes the aggregation engine into the read queries the
// dashboard UI, the CLI and the MCP server share. It owns parameter
// defaulting and clamping, the concurrent dashboard fan-out, response
// fingerprints and the optional response cache.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/pluginwatch/internal/analyzer"
	"github.com/blackwell-systems/pluginwatch/internal/event"
	"github.com/blackwell-systems/pluginwatch/internal/logger"
	"github.com/blackwell-systems/pluginwatch/internal/store"
)

// Source hands out the event store, opening it on first use.
type Source interface {
	Get(ctx context.Context) (*store.DB, error)
}

// Recorder observes query latency and cache outcomes.
type Recorder interface {
	ObserveQuery(query string, d time.Duration)
	CacheResult(result string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveQuery(string, time.Duration) {}
func (nopRecorder) CacheResult(string)                 {}

// Service answers dashboard queries against the event store.
type Service struct {
	source   Source
	cache    Cache
	ttl      time.Duration
	log      *logger.Logger
	recorder Recorder
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables response caching for ttl.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(s *Service) {
		if c != nil && ttl > 0 {
			s.cache = c
			s.ttl = ttl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock overrides the clock used for default date ranges.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a Service reading from source.
func New(source Source, opts ...Option) *Service {
	s := &Service{
		source:   source,
		cache:    NoCache{},
		log:      logger.Nop(),
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock reading in UTC.
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

// Window is the resolved date range echoed in every response.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func windowOf(q Query) Window {
	return Window{From: q.From, To: q.To}
}

// SummaryResponse is the summary query result.
type SummaryResponse struct {
	Window
	analyzer.Summary
}

// ToolList wraps tool usage rows.
type ToolList struct {
	Tools []analyzer.ToolUsage `json:"tools"`
}

// ToolUsageResponse is the tool-usage query result.
type ToolUsageResponse struct {
	Window
	ToolList
}

// HeatmapResponse is the heatmap query result.
type HeatmapResponse struct {
	Window
	analyzer.Heatmap
}

// SessionList wraps session rows.
type SessionList struct {
	Sessions []analyzer.Session `json:"sessions"`
}

// SessionsResponse is the sessions query result.
type SessionsResponse struct {
	Window
	SessionList
}

// EventList wraps recent events.
type EventList struct {
	Events []analyzer.RecentEvent `json:"events"`
}

// RecentEventsResponse is the recent-events query result.
type RecentEventsResponse struct {
	Window
	EventList
}

// ActionList wraps action catalog rows.
type ActionList struct {
	Actions []analyzer.CatalogAction `json:"actions"`
}

// ActionCatalogResponse is the action-catalog query result.
type ActionCatalogResponse struct {
	Window
	ActionList
}

// EventTypesResponse is the event-type breakdown query result.
type EventTypesResponse struct {
	Window
	EventTypes []analyzer.EventTypeCount `json:"eventTypes"`
}

// FeaturesResponse is the feature analytics query result.
type FeaturesResponse struct {
	Window
	analyzer.Features
}

// DashboardResponse is the combined payload for the main dashboard view.
type DashboardResponse struct {
	Window
	Summary            analyzer.Summary          `json:"summary"`
	ToolUsage          ToolList                  `json:"toolUsage"`
	Heatmap            analyzer.Heatmap          `json:"heatmap"`
	Sessions           SessionList               `json:"sessions"`
	RecentEvents       EventList                 `json:"recentEvents"`
	ActionCatalog      ActionList                `json:"actionCatalog"`
	EventTypeBreakdown []analyzer.EventTypeCount `json:"eventTypeBreakdown"`
	Insights           analyzer.Insights         `json:"insights"`
	Fingerprint        string                    `json:"fingerprint"`
}

// DashboardOptions are the per-section knobs of the combined query.
type DashboardOptions struct {
	Heatmap             analyzer.HeatmapOptions
	SessionsLimit       int
	EventsLimit         int
	IncludeSystemEvents bool
}

// ParseDashboardOptions reads the combined query's section parameters.
func ParseDashboardOptions(values url.Values) DashboardOptions {
	return DashboardOptions{
		Heatmap:             HeatmapParams(values, "heatmapCompact", "heatmapLimit", "heatmapGridX", "heatmapGridY", true),
		SessionsLimit:       ParseLimit(values.Get("sessionsLimit"), SessionsLimit, SessionsMax),
		EventsLimit:         ParseLimit(values.Get("eventsLimit"), DashboardEvents, EventsMax),
		IncludeSystemEvents: ParseBool(values.Get("includeSystemEvents"), true),
	}
}

// load runs one filtered scan and records its latency under name.
func (s *Service) load(ctx context.Context, name string, f store.Filter) ([]event.Event, error) {
	start := time.Now()
	defer func() { s.recorder.ObserveQuery(name, time.Since(start)) }()

	db, err := s.source.Get(ctx)
	if err != nil {
		return nil, err
	}
	events, err := db.QueryEvents(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	return events, nil
}

func heatmapFilter(q Query, opts analyzer.HeatmapOptions) store.Filter {
	f := q.Filter()
	f.ToolAnyField = true
	f.EventTypes = []string{"ui_click"}
	f.NewestFirst = true
	f.Limit = opts.Limit
	return f
}

func recentFilter(q Query, limit int, includePassive bool) store.Filter {
	f := q.Filter()
	f.NewestFirst = true
	f.Limit = limit
	f.ExcludePassive = !includePassive
	return f
}

// Summary returns headline KPIs and top listings for q.
func (s *Service) Summary(ctx context.Context, q Query) (*SummaryResponse, error) {
	events, err := s.load(ctx, "summary", q.Filter())
	if err != nil {
		return nil, err
	}
	return &SummaryResponse{Window: windowOf(q), Summary: analyzer.BuildSummary(events)}, nil
}

// ToolUsage returns per-tool usage rows for q.
func (s *Service) ToolUsage(ctx context.Context, q Query) (*ToolUsageResponse, error) {
	events, err := s.load(ctx, "tool_usage", q.Filter())
	if err != nil {
		return nil, err
	}
	return &ToolUsageResponse{
		Window:   windowOf(q),
		ToolList: ToolList{Tools: analyzer.BuildToolUsage(events)},
	}, nil
}

// Heatmap returns click positions for q, binned when opts.Compact is set.
func (s *Service) Heatmap(ctx context.Context, q Query, opts analyzer.HeatmapOptions) (*HeatmapResponse, error) {
	opts.Tool = q.Tool
	events, err := s.load(ctx, "heatmap", heatmapFilter(q, opts))
	if err != nil {
		return nil, err
	}
	return &HeatmapResponse{Window: windowOf(q), Heatmap: analyzer.BuildHeatmap(events, opts)}, nil
}

// Sessions returns the most recently active sessions.
func (s *Service) Sessions(ctx context.Context, q Query, limit int) (*SessionsResponse, error) {
	events, err := s.load(ctx, "sessions", q.Filter())
	if err != nil {
		return nil, err
	}
	return &SessionsResponse{
		Window:      windowOf(q),
		SessionList: SessionList{Sessions: analyzer.BuildSessions(events, limit)},
	}, nil
}

// RecentEvents returns the newest events, optionally without passive ones.
func (s *Service) RecentEvents(ctx context.Context, q Query, limit int, includePassive bool) (*RecentEventsResponse, error) {
	events, err := s.load(ctx, "recent_events", recentFilter(q, limit, includePassive))
	if err != nil {
		return nil, err
	}
	return &RecentEventsResponse{
		Window:    windowOf(q),
		EventList: EventList{Events: analyzer.BuildRecentEvents(events, limit, includePassive)},
	}, nil
}

// ActionCatalog returns every action seen in q with its metadata.
func (s *Service) ActionCatalog(ctx context.Context, q Query) (*ActionCatalogResponse, error) {
	events, err := s.load(ctx, "action_catalog", q.Filter())
	if err != nil {
		return nil, err
	}
	return &ActionCatalogResponse{
		Window:     windowOf(q),
		ActionList: ActionList{Actions: analyzer.BuildActionCatalog(events)},
	}, nil
}

// EventTypes returns the event-type breakdown for q.
func (s *Service) EventTypes(ctx context.Context, q Query) (*EventTypesResponse, error) {
	events, err := s.load(ctx, "event_types", q.Filter())
	if err != nil {
		return nil, err
	}
	return &EventTypesResponse{Window: windowOf(q), EventTypes: analyzer.BuildEventTypeBreakdown(events)}, nil
}

// Features returns feature-level analytics for q.
func (s *Service) Features(ctx context.Context, q Query) (*FeaturesResponse, error) {
	events, err := s.load(ctx, "features", q.Filter())
	if err != nil {
		return nil, err
	}
	return &FeaturesResponse{Window: windowOf(q), Features: analyzer.BuildFeatures(events)}, nil
}

// Dashboard runs the window scan, the heatmap query and the recent-events
// query concurrently and composes the combined response. The first failure
// cancels the others.
func (s *Service) Dashboard(ctx context.Context, q Query, opts DashboardOptions) (*DashboardResponse, error) {
	opts.Heatmap.Tool = q.Tool
	var window, clicks, recent []event.Event

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		window, err = s.load(gctx, "dashboard", q.Filter())
		return err
	})
	g.Go(func() error {
		var err error
		clicks, err = s.load(gctx, "heatmap", heatmapFilter(q, opts.Heatmap))
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.load(gctx, "recent_events", recentFilter(q, opts.EventsLimit, opts.IncludeSystemEvents))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := analyzer.BuildSummary(window)
	tools := analyzer.BuildToolUsage(window)
	breakdown := analyzer.BuildEventTypeBreakdown(window)

	resp := &DashboardResponse{
		Window:             windowOf(q),
		Summary:            summary,
		ToolUsage:          ToolList{Tools: tools},
		Heatmap:            analyzer.BuildHeatmap(clicks, opts.Heatmap),
		Sessions:           SessionList{Sessions: analyzer.BuildSessions(window, opts.SessionsLimit)},
		RecentEvents:       EventList{Events: analyzer.BuildRecentEvents(recent, opts.EventsLimit, opts.IncludeSystemEvents)},
		ActionCatalog:      ActionList{Actions: analyzer.BuildActionCatalog(window)},
		EventTypeBreakdown: breakdown,
		Insights:           analyzer.BuildInsights(summary, tools, breakdown),
	}
	fp, err := FingerprintOf(resp)
	if err != nil {
		return nil, err
	}
	resp.Fingerprint = fp
	return resp, nil
}

// Rendered is a JSON response body with its fingerprint.
type Rendered struct {
	Body        []byte
	Fingerprint string
	Cached      bool
}

// Render returns the JSON for key, from the cache when possible, otherwise
// by calling compute. Cache failures are logged and never fail the call.
func (s *Service) Render(ctx context.Context, key string, compute func(ctx context.Context) (any, error)) (*Rendered, error) {
	if body, ok, err := s.cache.Get(ctx, key); err != nil {
		s.recorder.CacheResult("error")
		s.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		s.recorder.CacheResult("hit")
		return &Rendered{Body: body, Fingerprint: Fingerprint(body), Cached: true}, nil
	} else if s.ttl > 0 {
		s.recorder.CacheResult("miss")
	}

	v, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	if s.ttl > 0 {
		if err := s.cache.Set(ctx, key, body, s.ttl); err != nil {
			s.recorder.CacheResult("error")
			s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return &Rendered{Body: body, Fingerprint: Fingerprint(body)}, nil
}

// CacheKey builds a cache key from a route name and its canonical query.
func CacheKey(route string, values url.Values) string {
	return route + "?" + values.Encode()
}
