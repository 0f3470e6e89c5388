package watcher

import (
	"strings"
	"testing"
)

var th = Thresholds{NoiseShare: 0.6, StallPeriods: 3}

func makeState() *WatchState {
	return &WatchState{
		ToolEvents: make(map[string]int),
		EventTypes: make(map[string]int),
	}
}

func findAlert(alerts []Alert, level, titlePrefix string) *Alert {
	for i := range alerts {
		if alerts[i].Level == level && strings.HasPrefix(alerts[i].Title, titlePrefix) {
			return &alerts[i]
		}
	}
	return nil
}

func TestCompare_IdenticalStates(t *testing.T) {
	prev := makeState()
	prev.TotalEvents = 10
	prev.MeaningfulEvents = 8
	prev.ToolEvents["palettable"] = 10
	prev.EventTypes["ui_click"] = 10

	curr := makeState()
	curr.TotalEvents = 10
	curr.MeaningfulEvents = 8
	curr.ToolEvents["palettable"] = 10
	curr.EventTypes["ui_click"] = 10

	if alerts := Compare(prev, curr, th); len(alerts) != 0 {
		t.Errorf("expected 0 alerts for identical states, got %d", len(alerts))
		for _, a := range alerts {
			t.Logf("  [%s] %s: %s", a.Level, a.Title, a.Message)
		}
	}
}

func TestCompare_EmptyStates(t *testing.T) {
	if alerts := Compare(makeState(), makeState(), th); len(alerts) != 0 {
		t.Errorf("expected 0 alerts for empty states, got %d", len(alerts))
	}
}

func TestCompare_NoiseSpike(t *testing.T) {
	prev := makeState()
	prev.TotalEvents = 10
	prev.NoiseShare = 0.3

	curr := makeState()
	curr.TotalEvents = 20
	curr.NoiseShare = 0.75

	a := findAlert(Compare(prev, curr, th), "warning", "Passive noise spike")
	if a == nil {
		t.Fatal("expected noise spike warning")
	}
	if !strings.Contains(a.Message, "75%") {
		t.Errorf("message = %q", a.Message)
	}

	// Staying above the threshold does not re-alert.
	if findAlert(Compare(curr, curr, th), "warning", "Passive noise spike") != nil {
		t.Error("expected no repeat while share stays high")
	}
}

func TestCompare_NoiseRecovered(t *testing.T) {
	prev := makeState()
	prev.NoiseShare = 0.8
	curr := makeState()
	curr.TotalEvents = 5
	curr.NoiseShare = 0.2

	if findAlert(Compare(prev, curr, th), "info", "Passive noise recovered") == nil {
		t.Error("expected recovery alert")
	}
}

func TestCompare_NoiseDisabled(t *testing.T) {
	prev := makeState()
	curr := makeState()
	curr.TotalEvents = 5
	curr.NoiseShare = 1

	if findAlert(Compare(prev, curr, Thresholds{}), "warning", "Passive noise spike") != nil {
		t.Error("zero threshold should disable the noise alert")
	}
}

func TestCompare_NewTool(t *testing.T) {
	prev := makeState()
	prev.ToolEvents["palettable"] = 3

	curr := makeState()
	curr.ToolEvents["palettable"] = 3
	curr.ToolEvents["frame-gallery"] = 2

	alerts := Compare(prev, curr, th)
	a := findAlert(alerts, "info", "New tool:")
	if a == nil {
		t.Fatal("expected new tool alert")
	}
	if !strings.Contains(a.Message, "frame-gallery") {
		t.Errorf("message = %q", a.Message)
	}
}

func TestCompare_NewEventTypes(t *testing.T) {
	prev := makeState()
	curr := makeState()
	curr.EventTypes["tool_opened"] = 2
	curr.EventTypes["widget_spun"] = 1

	alerts := Compare(prev, curr, th)
	if a := findAlert(alerts, "info", "New event type: Tool Opened"); a == nil {
		t.Error("expected info alert for catalogued type")
	}
	a := findAlert(alerts, "warning", "Uncatalogued event type: widget_spun")
	if a == nil {
		t.Fatal("expected warning for uncatalogued type")
	}
	if !strings.Contains(a.Message, "Widget Spun") {
		t.Errorf("message = %q", a.Message)
	}
}

func TestCompare_OnlyPassiveActivity(t *testing.T) {
	prev := makeState()
	prev.SessionCount = 2
	prev.MeaningfulEvents = 4
	prev.PassiveEvents = 1

	curr := makeState()
	curr.SessionCount = 3
	curr.MeaningfulEvents = 4
	curr.PassiveEvents = 6

	if findAlert(Compare(prev, curr, th), "warning", "Only passive activity") == nil {
		t.Error("expected passive-only warning")
	}
}

func TestCompare_NewActivity(t *testing.T) {
	prev := makeState()
	prev.MeaningfulEvents = 4
	curr := makeState()
	curr.MeaningfulEvents = 9
	curr.SessionCount = 2

	a := findAlert(Compare(prev, curr, th), "info", "New activity")
	if a == nil {
		t.Fatal("expected activity alert")
	}
	if !strings.HasPrefix(a.Message, "+5 ") {
		t.Errorf("message = %q", a.Message)
	}
}

func TestAppeared_Sorted(t *testing.T) {
	got := appeared(map[string]int{"a": 1}, map[string]int{"a": 1, "c": 1, "b": 2, "z": 0})
	if strings.Join(got, ",") != "b,c" {
		t.Errorf("appeared = %v", got)
	}
}

func TestCompare_WarningsFirstAndStamped(t *testing.T) {
	prev := makeState()
	prev.SessionCount = 1
	curr := makeState()
	curr.Timestamp = now
	curr.TotalEvents = 4
	curr.MeaningfulEvents = 4
	curr.SessionCount = 2
	curr.ToolEvents["palettable"] = 4
	curr.EventTypes["zz_unlisted_probe"] = 4

	alerts := Compare(prev, curr, th)
	if len(alerts) < 3 {
		t.Fatalf("alerts = %+v", alerts)
	}
	if alerts[0].Level != LevelWarning || !strings.HasPrefix(alerts[0].Title, "Uncatalogued event type") {
		t.Errorf("first alert = %+v", alerts[0])
	}
	for _, a := range alerts {
		if !a.Time.Equal(now) {
			t.Errorf("%s stamped %v, want %v", a.Title, a.Time, now)
		}
	}
}
