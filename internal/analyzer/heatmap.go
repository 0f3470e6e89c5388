package analyzer

import (
	"math"
	"sort"
	"strings"

	"github.com/blackwell-systems/pluginwatch/internal/event"
)

// Default heatmap grid.
const (
	DefaultGridX = 96
	DefaultGridY = 24
)

// clickEventType is the only event type that carries heatmap coordinates.
const clickEventType = "ui_click"

// MatchesHeatmapTool reports whether a click belongs to tool by its own
// tool, its element's toolId or its uiTool payload field.
func MatchesHeatmapTool(e event.Event, tool string) bool {
	tool = strings.TrimSpace(tool)
	if tool == "" || tool == "all" {
		return true
	}
	if e.Tool == tool || stringField(e.Payload, "uiTool") == tool {
		return true
	}
	return stringField(objectField(e.Payload, "element"), "toolId") == tool
}

// BuildHeatmap collects the newest clicks matching opts and returns them
// either binned into a grid or as raw points.
func BuildHeatmap(events []event.Event, opts HeatmapOptions) Heatmap {
	clicks := make([]event.Event, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		if e.EventType == clickEventType && MatchesHeatmapTool(e, opts.Tool) {
			clicks = append(clicks, e)
		}
	}
	sort.SliceStable(clicks, func(i, j int) bool {
		return clicks[i].EventAt.After(clicks[j].EventAt)
	})
	if opts.Limit > 0 && len(clicks) > opts.Limit {
		clicks = clicks[:opts.Limit]
	}

	points := make([]HeatmapPoint, 0, len(clicks))
	for _, e := range clicks {
		points = append(points, pointFromEvent(e))
	}

	if !opts.Compact {
		return Heatmap{HeatmapPoints: &HeatmapPoints{Points: points, Count: len(points)}}
	}

	gridX, gridY := opts.GridX, opts.GridY
	if gridX <= 0 {
		gridX = DefaultGridX
	}
	if gridY <= 0 {
		gridY = DefaultGridY
	}
	grid := BinPoints(points, gridX, gridY)
	grid.SampleCount = len(points)
	return Heatmap{Compact: true, HeatmapGrid: &grid}
}

func pointFromEvent(e event.Event) HeatmapPoint {
	element := objectField(e.Payload, "element")
	return HeatmapPoint{
		EventAt:        e.EventAt,
		Tool:           e.Tool,
		X:              numberPtr(e.Payload, "x"),
		Y:              numberPtr(e.Payload, "y"),
		NormalizedX:    numberPtr(e.Payload, "normalizedX"),
		NormalizedY:    numberPtr(e.Payload, "normalizedY"),
		ViewportWidth:  numberPtr(e.Payload, "viewportWidth"),
		ViewportHeight: numberPtr(e.Payload, "viewportHeight"),
		ElementTag:     stringField(element, "tag"),
		ElementID:      stringField(element, "id"),
		ElementToolID:  stringField(element, "toolId"),
	}
}

func numberPtr(payload map[string]any, key string) *float64 {
	f, ok := toNumber(payload[key])
	if !ok {
		return nil
	}
	return &f
}

// NormalizePoint returns the click position in [0,1]x[0,1]. Each axis uses
// its normalized coordinate when present, else the pixel coordinate over
// the viewport size. ok is false when either axis cannot be derived.
func NormalizePoint(p HeatmapPoint) (nx, ny float64, ok bool) {
	nx, okX := normalizedAxis(p.NormalizedX, p.X, p.ViewportWidth)
	ny, okY := normalizedAxis(p.NormalizedY, p.Y, p.ViewportHeight)
	if !okX || !okY {
		return 0, 0, false
	}
	return nx, ny, true
}

func normalizedAxis(normalized, pixel, viewport *float64) (float64, bool) {
	var v float64
	switch {
	case normalized != nil:
		v = *normalized
	case pixel != nil && viewport != nil && *viewport > 0:
		v = *pixel / *viewport
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return math.Max(0, math.Min(1, v)), true
}

// BinPoints counts points per grid cell. Cells appear in the order their
// first point was seen; points without a derivable position are skipped.
func BinPoints(points []HeatmapPoint, gridX, gridY int) HeatmapGrid {
	grid := HeatmapGrid{Grid: GridSize{X: gridX, Y: gridY}, Bins: []HeatmapBin{}}
	index := make(map[[2]int]int)

	for _, p := range points {
		nx, ny, ok := NormalizePoint(p)
		if !ok {
			continue
		}
		x := min(gridX-1, int(math.Floor(nx*float64(gridX))))
		y := min(gridY-1, int(math.Floor(ny*float64(gridY))))

		cell := [2]int{x, y}
		i, seen := index[cell]
		if !seen {
			i = len(grid.Bins)
			index[cell] = i
			grid.Bins = append(grid.Bins, HeatmapBin{X: x, Y: y})
		}
		grid.Bins[i].Count++
		if grid.Bins[i].Count > grid.MaxCount {
			grid.MaxCount = grid.Bins[i].Count
		}
		grid.TotalPoints++
	}
	return grid
}
