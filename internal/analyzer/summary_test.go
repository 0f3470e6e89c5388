package analyzer

import (
	"testing"
	"time"

	"github.com/blackwell-systems/pluginwatch/internal/event"
)

var t0 = time.Date(2026, 5, 4, 22, 0, 0, 0, time.UTC)

func ev(session, eventType, tool string, at time.Time, payload map[string]any) event.Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return event.Event{
		SessionID: session,
		DeviceID:  "dev-" + session,
		EventType: eventType,
		EventAt:   at,
		Source:    "ui",
		Tool:      tool,
		Payload:   payload,
		User:      event.User{AnonymousID: "anon-" + session, IdentitySource: "derived"},
	}
}

func authed(e event.Event, userID string) event.Event {
	e.User = event.User{IsAuthenticated: true, UserID: userID, IdentitySource: "user"}
	return e
}

func TestBuildSummary_Empty(t *testing.T) {
	s := BuildSummary(nil)
	if s.KPIs.TotalEvents != 0 || s.KPIs.TotalSessions != 0 {
		t.Errorf("expected zero KPIs, got %+v", s.KPIs)
	}
	if s.TopTools == nil || s.TopActions == nil || s.EventsByDay == nil {
		t.Error("expected empty, non-nil listings")
	}
}

func TestBuildSummary_SingleClick(t *testing.T) {
	events := []event.Event{
		ev("s1", "ui_click", "palettable", t0, map[string]any{"normalizedX": 0.5, "normalizedY": 0.5}),
	}
	s := BuildSummary(events)

	if s.KPIs.TotalEvents != 1 {
		t.Errorf("TotalEvents = %d, want 1", s.KPIs.TotalEvents)
	}
	if s.KPIs.TotalSessions != 1 {
		t.Errorf("TotalSessions = %d, want 1", s.KPIs.TotalSessions)
	}
	if len(s.TopTools) != 1 || s.TopTools[0].Tool != "palettable" || s.TopTools[0].Events != 1 {
		t.Errorf("TopTools = %+v", s.TopTools)
	}
	if s.KPIs.AvgSessionDurationMs != 0 || s.KPIs.MaxSessionDurationMs != 0 {
		t.Errorf("single-event session should have zero duration, got %+v", s.KPIs)
	}
}

func TestBuildSummary_SessionDurations(t *testing.T) {
	events := []event.Event{
		ev("s1", "ui_click", "dashboard", t0, nil),
		ev("s2", "ui_click", "dashboard", t0.Add(time.Second), nil),
		ev("s1", "ui_click", "dashboard", t0.Add(10*time.Second), nil),
		ev("s3", "ui_click", "dashboard", t0.Add(2*time.Second), nil),
		ev("s3", "ui_click", "dashboard", t0.Add(2*time.Second+5*time.Millisecond), nil),
	}
	s := BuildSummary(events)

	// (10000 + 0 + 5) / 3 = 3335
	if s.KPIs.AvgSessionDurationMs != 3335 {
		t.Errorf("AvgSessionDurationMs = %d, want 3335", s.KPIs.AvgSessionDurationMs)
	}
	if s.KPIs.MaxSessionDurationMs != 10000 {
		t.Errorf("MaxSessionDurationMs = %d, want 10000", s.KPIs.MaxSessionDurationMs)
	}
}

func TestBuildSummary_PassivePartition(t *testing.T) {
	events := []event.Event{
		ev("s1", "session_heartbeat", "dashboard", t0, nil),
		ev("s1", "ui_click", "dashboard", t0.Add(time.Second), nil),
		ev("s1", "plugin_message", "dashboard", t0.Add(2*time.Second), map[string]any{"messageType": "analytics-batch"}),
		ev("s1", "plugin_message", "dashboard", t0.Add(3*time.Second), map[string]any{"messageType": "get-all-frames"}),
	}
	s := BuildSummary(events)

	if s.KPIs.PassiveEvents != 2 {
		t.Errorf("PassiveEvents = %d, want 2", s.KPIs.PassiveEvents)
	}
	if s.KPIs.MeaningfulEvents != 2 {
		t.Errorf("MeaningfulEvents = %d, want 2", s.KPIs.MeaningfulEvents)
	}
	if s.KPIs.MeaningfulEvents+s.KPIs.PassiveEvents != s.KPIs.TotalEvents {
		t.Errorf("partition broken: %+v", s.KPIs)
	}
}

func TestBuildSummary_Users(t *testing.T) {
	events := []event.Event{
		authed(ev("s1", "ui_click", "dashboard", t0, nil), "u1"),
		authed(ev("s2", "ui_click", "dashboard", t0, nil), "u1"),
		ev("s3", "ui_click", "dashboard", t0, nil),
		ev("s4", "ui_click", "dashboard", t0, nil),
		ev("s4", "ui_click", "dashboard", t0, nil),
	}
	s := BuildSummary(events)

	if s.KPIs.AuthenticatedUsers != 1 {
		t.Errorf("AuthenticatedUsers = %d, want 1", s.KPIs.AuthenticatedUsers)
	}
	if s.KPIs.AnonymousUsers != 2 {
		t.Errorf("AnonymousUsers = %d, want 2", s.KPIs.AnonymousUsers)
	}
	if s.KPIs.AnonymousEvents != 3 {
		t.Errorf("AnonymousEvents = %d, want 3", s.KPIs.AnonymousEvents)
	}
}

func TestBuildSummary_EventsByDayUTC(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	events := []event.Event{
		// 2026-05-05 01:00 UTC even though it is the 4th in EST.
		ev("s2", "ui_click", "dashboard", time.Date(2026, 5, 4, 20, 0, 0, 0, est), nil),
		ev("s1", "ui_click", "dashboard", t0, nil),
		ev("s1", "ui_click", "dashboard", t0.Add(time.Minute), nil),
	}
	s := BuildSummary(events)

	want := []DayBucket{
		{Day: "2026-05-04", Events: 2, Sessions: 1},
		{Day: "2026-05-05", Events: 1, Sessions: 1},
	}
	if len(s.EventsByDay) != len(want) {
		t.Fatalf("EventsByDay = %+v", s.EventsByDay)
	}
	for i := range want {
		if s.EventsByDay[i] != want[i] {
			t.Errorf("EventsByDay[%d] = %+v, want %+v", i, s.EventsByDay[i], want[i])
		}
	}
}

func TestBuildSummary_TopActionsTieBreak(t *testing.T) {
	events := []event.Event{
		ev("s1", "tool_action", "dashboard", t0, map[string]any{"action": "click:b"}),
		ev("s1", "tool_action", "dashboard", t0, map[string]any{"action": "click:a"}),
		ev("s1", "tool_action", "dashboard", t0, map[string]any{"action": "click:c"}),
		ev("s1", "tool_action", "dashboard", t0, map[string]any{"action": "click:c"}),
	}
	s := BuildSummary(events)

	got := make([]string, len(s.TopActions))
	for i, a := range s.TopActions {
		got[i] = a.Action
	}
	want := []string{"click:c", "click:b", "click:a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("TopActions order = %v, want %v", got, want)
		}
	}
}

func TestBuildSummary_TopToolsLimit(t *testing.T) {
	var events []event.Event
	for i := 0; i < 20; i++ {
		tool := string(rune('a' + i))
		for j := 0; j <= i; j++ {
			events = append(events, ev("s1", "ui_click", tool, t0, nil))
		}
	}
	s := BuildSummary(events)

	if len(s.TopTools) != topToolsLimit {
		t.Fatalf("len(TopTools) = %d, want %d", len(s.TopTools), topToolsLimit)
	}
	if s.TopTools[0].Tool != "t" || s.TopTools[0].ActiveEventCount != 20 {
		t.Errorf("TopTools[0] = %+v", s.TopTools[0])
	}
}

func TestBuildToolUsage_PassiveSplit(t *testing.T) {
	events := []event.Event{
		ev("s1", "session_heartbeat", "palettable", t0, nil),
		ev("s1", "ui_click", "palettable", t0.Add(time.Second), nil),
	}
	usage := BuildToolUsage(events)

	if len(usage) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(usage))
	}
	u := usage[0]
	if u.ActiveEventCount != 1 || u.PassiveEventCount != 1 {
		t.Errorf("active/passive = %d/%d, want 1/1", u.ActiveEventCount, u.PassiveEventCount)
	}
	if u.ClickCount != 1 {
		t.Errorf("ClickCount = %d, want 1", u.ClickCount)
	}
}

func TestBuildToolUsage_Ordering(t *testing.T) {
	events := []event.Event{
		// gallery: 1 active, 3 total
		ev("s1", "ui_click", "frame-gallery", t0, nil),
		ev("s1", "ui_heartbeat", "frame-gallery", t0, nil),
		ev("s1", "ui_heartbeat", "frame-gallery", t0, nil),
		// profile: 1 active, 1 total
		ev("s1", "ui_click", "profile", t0, nil),
		// palettable: 2 active
		ev("s1", "ui_click", "palettable", t0, nil),
		ev("s1", "ui_click", "palettable", t0, nil),
	}
	usage := BuildToolUsage(events)

	want := []string{"palettable", "frame-gallery", "profile"}
	for i, tool := range want {
		if usage[i].Tool != tool {
			t.Errorf("usage[%d].Tool = %q, want %q", i, usage[i].Tool, tool)
		}
	}
}

func TestBuildToolUsage_UsersAndTime(t *testing.T) {
	events := []event.Event{
		authed(ev("s1", "tool_time_spent", "palettable", t0, map[string]any{"durationMs": 1000.125}), "u1"),
		authed(ev("s2", "tool_time_spent", "palettable", t0, map[string]any{"durationMs": "250"}), "u2"),
		ev("s3", "tool_time_spent", "palettable", t0, map[string]any{"durationMs": "bogus"}),
		ev("s3", "ui_click", "palettable", t0, map[string]any{"durationMs": 9999}),
	}
	usage := BuildToolUsage(events)

	u := usage[0]
	if u.TimeSpentMs != 1250.13 {
		t.Errorf("TimeSpentMs = %v, want 1250.13", u.TimeSpentMs)
	}
	if u.AuthenticatedUserCount != 2 || u.AnonymousUserCount != 1 || u.UserCount != 3 {
		t.Errorf("user counts = %d/%d/%d", u.AuthenticatedUserCount, u.AnonymousUserCount, u.UserCount)
	}
	if u.SessionCount != 3 {
		t.Errorf("SessionCount = %d, want 3", u.SessionCount)
	}
}
