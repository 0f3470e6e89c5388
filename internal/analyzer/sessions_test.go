package analyzer

import (
	"testing"
	"time"

	"github.com/blackwell-systems/pluginwatch/internal/event"
)

func TestBuildSessions(t *testing.T) {
	late := authed(ev("s1", "tool_opened", "palettable", t0.Add(90*time.Second), nil), "u1")
	late.Source = "main"
	events := []event.Event{
		ev("s1", "ui_click", "dashboard", t0, nil),
		ev("s2", "ui_click", "frame-gallery", t0.Add(2*time.Minute), nil),
		ev("s1", "session_heartbeat", "dashboard", t0.Add(30*time.Second), nil),
		late,
	}

	sessions := BuildSessions(events, 0)
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}

	if sessions[0].SessionID != "s2" {
		t.Errorf("expected latest-ending session first, got %q", sessions[0].SessionID)
	}
	if sessions[0].DurationMs != 0 || sessions[0].EventCount != 1 {
		t.Errorf("single-event session = %+v", sessions[0])
	}

	s1 := sessions[1]
	if s1.DurationMs != 90000 {
		t.Errorf("DurationMs = %d, want 90000", s1.DurationMs)
	}
	if !s1.StartedAt.Equal(t0) || !s1.EndedAt.Equal(t0.Add(90*time.Second)) {
		t.Errorf("span = %v..%v", s1.StartedAt, s1.EndedAt)
	}
	if s1.EventCount != 3 || s1.ActiveEventCount != 2 || s1.PassiveEventCount != 1 {
		t.Errorf("counts = %d/%d/%d", s1.EventCount, s1.ActiveEventCount, s1.PassiveEventCount)
	}
	if s1.User.UserID != "u1" || s1.LastSource != "main" {
		t.Errorf("last seen user/source = %+v / %q", s1.User, s1.LastSource)
	}
	if len(s1.Tools) != 2 || s1.Tools[0] != "dashboard" || s1.Tools[1] != "palettable" {
		t.Errorf("Tools = %v", s1.Tools)
	}
}

func TestBuildSessions_Limit(t *testing.T) {
	var events []event.Event
	for i := 0; i < 5; i++ {
		events = append(events, ev(string(rune('a'+i)), "ui_click", "dashboard", t0.Add(time.Duration(i)*time.Minute), nil))
	}
	sessions := BuildSessions(events, 2)
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].SessionID != "e" || sessions[1].SessionID != "d" {
		t.Errorf("got %q, %q", sessions[0].SessionID, sessions[1].SessionID)
	}
}

func TestBuildRecentEvents(t *testing.T) {
	events := []event.Event{
		ev("s1", "ui_click", "dashboard", t0, map[string]any{"action": "click:custom-widget-42"}),
		ev("s1", "session_heartbeat", "dashboard", t0.Add(time.Second), nil),
		ev("s1", "tool_opened", "palettable", t0.Add(2*time.Second), nil),
	}

	all := BuildRecentEvents(events, 0, true)
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	if all[0].EventType != "tool_opened" || all[2].EventType != "ui_click" {
		t.Errorf("expected newest first, got %q..%q", all[0].EventType, all[2].EventType)
	}
	if !all[1].Passive {
		t.Error("heartbeat should be marked passive")
	}
	if all[2].Action != "click:custom-widget-42" || all[2].ActionMeta.Label != "Click: Custom Widget 42" {
		t.Errorf("action = %q, label = %q", all[2].Action, all[2].ActionMeta.Label)
	}

	meaningful := BuildRecentEvents(events, 0, false)
	if len(meaningful) != 2 {
		t.Errorf("expected passive events dropped, got %d", len(meaningful))
	}

	limited := BuildRecentEvents(events, 1, true)
	if len(limited) != 1 || limited[0].EventType != "tool_opened" {
		t.Errorf("limited = %+v", limited)
	}
}
