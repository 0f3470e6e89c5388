package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/blackwell-systems/pluginwatch/internal/dashboard"
	"github.com/blackwell-systems/pluginwatch/internal/store"
)

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// newTestServer creates a Server over an in-memory store seeded with events.
func newTestServer(t *testing.T, events ...map[string]any) *Server {
	t.Helper()
	p := store.NewProvider(store.OpenInMemory)
	t.Cleanup(func() { _ = p.Close() })
	svc := dashboard.New(p, dashboard.WithClock(func() time.Time { return fixedNow }))

	if len(events) > 0 {
		items := make([]any, len(events))
		for i, e := range events {
			items[i] = e
		}
		if _, err := svc.Ingest(context.Background(), map[string]any{"source": "test", "events": items}); err != nil {
			t.Fatalf("seeding events: %v", err)
		}
	}
	return NewServer(svc, "test")
}

// callTool invokes the named tool handler and returns the typed result.
func callTool(s *Server, name string, args json.RawMessage) (any, error) {
	tool := s.lookup(name)
	if tool == nil {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return tool.Handler(context.Background(), args)
}

func minutesAgo(n int) string {
	return fixedNow.Add(-time.Duration(n) * time.Minute).Format(time.RFC3339)
}

func seedEvents() []map[string]any {
	return []map[string]any{
		{"eventType": "tool_opened", "tool": "palettable", "sessionId": "s1", "eventAt": minutesAgo(30)},
		{"eventType": "ui_click", "tool": "palettable", "sessionId": "s1", "eventAt": minutesAgo(29),
			"payload": map[string]any{"action": "click:save", "normalizedX": 0.2, "normalizedY": 0.3}},
		{"eventType": "session_heartbeat", "tool": "palettable", "sessionId": "s1", "eventAt": minutesAgo(28)},
		{"eventType": "tool_opened", "tool": "frame-gallery", "sessionId": "s2", "eventAt": minutesAgo(10)},
	}
}

func TestAddTools_Registered(t *testing.T) {
	s := newTestServer(t)
	want := []string{
		"get_summary", "get_tool_usage", "get_sessions", "get_recent_events",
		"get_feature_analytics", "get_action_catalog", "classify_action",
	}
	if len(s.tools) != len(want) {
		t.Fatalf("registered %d tools, want %d", len(s.tools), len(want))
	}
	for _, name := range want {
		tool := s.lookup(name)
		if tool == nil {
			t.Errorf("tool %q not registered", name)
			continue
		}
		if !json.Valid(tool.InputSchema) {
			t.Errorf("tool %q has invalid input schema", name)
		}
	}
}

func TestGetSummary(t *testing.T) {
	s := newTestServer(t, seedEvents()...)

	result, err := callTool(s, "get_summary", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, ok := result.(*dashboard.SummaryResponse)
	if !ok {
		t.Fatalf("expected *dashboard.SummaryResponse, got %T", result)
	}
	if r.KPIs.TotalEvents != 4 {
		t.Errorf("TotalEvents = %d, want 4", r.KPIs.TotalEvents)
	}
	if r.KPIs.TotalSessions != 2 {
		t.Errorf("TotalSessions = %d, want 2", r.KPIs.TotalSessions)
	}
}

func TestGetSummary_ToolFilter(t *testing.T) {
	s := newTestServer(t, seedEvents()...)

	result, err := callTool(s, "get_summary", json.RawMessage(`{"tool":"frame-gallery"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := result.(*dashboard.SummaryResponse)
	if r.KPIs.TotalEvents != 1 {
		t.Errorf("TotalEvents = %d, want 1", r.KPIs.TotalEvents)
	}
}

func TestGetSummary_InvalidArguments(t *testing.T) {
	s := newTestServer(t)
	if _, err := callTool(s, "get_summary", json.RawMessage(`{"from":`)); err == nil {
		t.Fatal("expected error for malformed arguments, got nil")
	}
}

func TestGetToolUsage(t *testing.T) {
	s := newTestServer(t, seedEvents()...)

	result, err := callTool(s, "get_tool_usage", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := result.(*dashboard.ToolUsageResponse)
	if len(r.Tools) != 2 {
		t.Fatalf("got %d tools, want 2", len(r.Tools))
	}
	if r.Tools[0].Tool != "palettable" {
		t.Errorf("first tool = %q, want palettable", r.Tools[0].Tool)
	}
	if r.Tools[0].PassiveEventCount != 1 {
		t.Errorf("PassiveEventCount = %d, want 1", r.Tools[0].PassiveEventCount)
	}
}

func TestGetSessions_Limit(t *testing.T) {
	s := newTestServer(t, seedEvents()...)

	tests := []struct {
		args string
		want int
	}{
		{`{}`, 2},
		{`{"limit":1}`, 1},
		{`{"limit":0}`, 2},
	}
	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			result, err := callTool(s, "get_sessions", json.RawMessage(tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			r := result.(*dashboard.SessionsResponse)
			if len(r.Sessions) != tt.want {
				t.Errorf("got %d sessions, want %d", len(r.Sessions), tt.want)
			}
		})
	}
}

func TestGetRecentEvents_Passive(t *testing.T) {
	s := newTestServer(t, seedEvents()...)

	result, err := callTool(s, "get_recent_events", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := result.(*dashboard.RecentEventsResponse)
	if len(r.Events) != 3 {
		t.Errorf("got %d events without passive, want 3", len(r.Events))
	}

	result, err = callTool(s, "get_recent_events", json.RawMessage(`{"include_passive":true,"limit":2}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r = result.(*dashboard.RecentEventsResponse)
	if len(r.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(r.Events))
	}
	if r.Events[0].Tool != "frame-gallery" {
		t.Errorf("newest event tool = %q, want frame-gallery", r.Events[0].Tool)
	}
}

func TestGetActionCatalog(t *testing.T) {
	s := newTestServer(t, seedEvents()...)

	result, err := callTool(s, "get_action_catalog", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := result.(*dashboard.ActionCatalogResponse)
	found := false
	for _, a := range r.Actions {
		if a.Action == "click:save" {
			found = true
			if a.Count != 1 {
				t.Errorf("click:save count = %d, want 1", a.Count)
			}
		}
	}
	if !found {
		t.Errorf("click:save missing from catalog: %+v", r.Actions)
	}
}

func TestGetFeatureAnalytics(t *testing.T) {
	s := newTestServer(t, map[string]any{
		"eventType": "import_file_selected",
		"tool":      "import-tool",
		"eventAt":   minutesAgo(5),
		"payload":   map[string]any{"fileSizeBytes": 7_000_000},
	})

	result, err := callTool(s, "get_feature_analytics", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := result.(*dashboard.FeaturesResponse)
	for _, b := range r.ImportSizeBuckets {
		if b.Bucket == "5-10MB" {
			if b.Count != 1 {
				t.Errorf("5-10MB count = %d, want 1", b.Count)
			}
			return
		}
	}
	t.Errorf("5-10MB bucket missing: %+v", r.ImportSizeBuckets)
}

func TestClassifyAction(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name      string
		args      string
		wantLabel string
		wantCat   string
		passive   bool
		wantEvent bool
	}{
		{"prefix rule", `{"action":"click:custom-widget-42"}`, "Click: Custom Widget 42", "Interaction", false, false},
		{"analytics prefix", `{"action":"analytics-flush"}`, "Analytics Flush", "System", true, false},
		{"passive event type", `{"action":"ping","event_type":"session_heartbeat"}`, "Ping", "Custom", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := callTool(s, "classify_action", json.RawMessage(tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			r, ok := result.(ClassifyResult)
			if !ok {
				t.Fatalf("expected ClassifyResult, got %T", result)
			}
			if r.Action.Label != tt.wantLabel {
				t.Errorf("Label = %q, want %q", r.Action.Label, tt.wantLabel)
			}
			if r.Action.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", r.Action.Category, tt.wantCat)
			}
			if r.Passive != tt.passive {
				t.Errorf("Passive = %v, want %v", r.Passive, tt.passive)
			}
			if (r.EventType != nil) != tt.wantEvent {
				t.Errorf("EventType present = %v, want %v", r.EventType != nil, tt.wantEvent)
			}
		})
	}
}

func TestClassifyAction_RequiresAction(t *testing.T) {
	s := newTestServer(t)
	if _, err := callTool(s, "classify_action", json.RawMessage(`{"action":"  "}`)); err == nil {
		t.Fatal("expected error for blank action, got nil")
	}
}
