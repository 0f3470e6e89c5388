package analyzer

import (
	"testing"
	"time"

	"github.com/blackwell-systems/pluginwatch/internal/event"
)

func clickAt(i int, tool string, payload map[string]any) event.Event {
	return ev("s1", "ui_click", tool, t0.Add(time.Duration(i)*time.Second), payload)
}

func heatmapFixture() []event.Event {
	return []event.Event{
		clickAt(0, "dashboard", map[string]any{"normalizedX": 0.5, "normalizedY": 0.5}),
		clickAt(1, "dashboard", map[string]any{"x": 100.0, "y": 50.0, "viewportWidth": 200.0, "viewportHeight": 100.0}),
		clickAt(2, "dashboard", map[string]any{"normalizedX": 1.0, "normalizedY": 2.0}),
		clickAt(3, "dashboard", map[string]any{"normalizedX": -0.3, "normalizedY": 0.05}),
		clickAt(4, "dashboard", map[string]any{"x": 10.0}),
		ev("s1", "ui_scroll", "dashboard", t0, map[string]any{"normalizedX": 0.1, "normalizedY": 0.1}),
	}
}

func TestBuildHeatmap_Compact(t *testing.T) {
	h := BuildHeatmap(heatmapFixture(), HeatmapOptions{Compact: true, GridX: 10, GridY: 10})

	if !h.Compact || h.HeatmapGrid == nil || h.HeatmapPoints != nil {
		t.Fatalf("expected compact grid, got %+v", h)
	}
	g := h.HeatmapGrid
	if g.SampleCount != 5 {
		t.Errorf("SampleCount = %d, want 5", g.SampleCount)
	}
	if g.TotalPoints != 4 {
		t.Errorf("TotalPoints = %d, want 4", g.TotalPoints)
	}
	if g.MaxCount != 2 {
		t.Errorf("MaxCount = %d, want 2", g.MaxCount)
	}

	sum := 0
	cells := make(map[[2]int]int)
	for _, b := range g.Bins {
		sum += b.Count
		cells[[2]int{b.X, b.Y}] = b.Count
	}
	if sum != g.TotalPoints {
		t.Errorf("bin counts sum to %d, want %d", sum, g.TotalPoints)
	}
	want := map[[2]int]int{{5, 5}: 2, {9, 9}: 1, {0, 0}: 1}
	for cell, n := range want {
		if cells[cell] != n {
			t.Errorf("cell %v = %d, want %d", cell, cells[cell], n)
		}
	}
}

func TestBuildHeatmap_DefaultGrid(t *testing.T) {
	h := BuildHeatmap(heatmapFixture(), HeatmapOptions{Compact: true})
	if h.Grid.X != DefaultGridX || h.Grid.Y != DefaultGridY {
		t.Errorf("grid = %+v", h.Grid)
	}
}

func TestBuildHeatmap_FullNewestFirst(t *testing.T) {
	h := BuildHeatmap(heatmapFixture(), HeatmapOptions{Limit: 2})

	if h.Compact || h.HeatmapPoints == nil {
		t.Fatalf("expected point list, got %+v", h)
	}
	if h.Count != 2 || len(h.Points) != 2 {
		t.Fatalf("Count = %d, len = %d", h.Count, len(h.Points))
	}
	if !h.Points[0].EventAt.Equal(t0.Add(4 * time.Second)) {
		t.Errorf("expected newest click first, got %v", h.Points[0].EventAt)
	}
	if h.Points[0].NormalizedX != nil || h.Points[0].X == nil || *h.Points[0].X != 10 {
		t.Errorf("raw point fields = %+v", h.Points[0])
	}
}

func TestBuildHeatmap_ToolFilter(t *testing.T) {
	events := []event.Event{
		clickAt(0, "palettable", map[string]any{"normalizedX": 0.1, "normalizedY": 0.1}),
		clickAt(1, "dashboard", map[string]any{"normalizedX": 0.2, "normalizedY": 0.2, "element": map[string]any{"toolId": "palettable", "tag": "button"}}),
		clickAt(2, "dashboard", map[string]any{"normalizedX": 0.3, "normalizedY": 0.3, "uiTool": "palettable"}),
		clickAt(3, "dashboard", map[string]any{"normalizedX": 0.4, "normalizedY": 0.4}),
	}

	h := BuildHeatmap(events, HeatmapOptions{Tool: "palettable"})
	if h.Count != 3 {
		t.Errorf("Count = %d, want 3", h.Count)
	}
	if h.Points[1].ElementTag != "button" || h.Points[1].ElementToolID != "palettable" {
		t.Errorf("element fields = %+v", h.Points[1])
	}

	all := BuildHeatmap(events, HeatmapOptions{Tool: "all"})
	if all.Count != 4 {
		t.Errorf("Count = %d, want 4", all.Count)
	}
}

func TestNormalizePoint(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	tests := []struct {
		name   string
		point  HeatmapPoint
		nx, ny float64
		ok     bool
	}{
		{"normalized", HeatmapPoint{NormalizedX: f(0.25), NormalizedY: f(0.75)}, 0.25, 0.75, true},
		{"from viewport", HeatmapPoint{X: f(50), Y: f(25), ViewportWidth: f(100), ViewportHeight: f(100)}, 0.5, 0.25, true},
		{"mixed axes", HeatmapPoint{NormalizedX: f(0.1), Y: f(10), ViewportHeight: f(20)}, 0.1, 0.5, true},
		{"clamped", HeatmapPoint{NormalizedX: f(-1), NormalizedY: f(3)}, 0, 1, true},
		{"zero viewport", HeatmapPoint{X: f(5), Y: f(5), ViewportWidth: f(0), ViewportHeight: f(10)}, 0, 0, false},
		{"missing y", HeatmapPoint{NormalizedX: f(0.5)}, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nx, ny, ok := NormalizePoint(tt.point)
			if ok != tt.ok || nx != tt.nx || ny != tt.ny {
				t.Errorf("got (%v, %v, %v), want (%v, %v, %v)", nx, ny, ok, tt.nx, tt.ny, tt.ok)
			}
		})
	}
}
