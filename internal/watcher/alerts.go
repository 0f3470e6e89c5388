package watcher

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/blackwell-systems/pluginwatch/internal/taxonomy"
)

// Alert levels, most severe first.
const (
	LevelCritical = "critical"
	LevelWarning  = "warning"
	LevelInfo     = "info"
)

// A rule inspects two consecutive states and reports what changed.
type rule func(prev, curr *WatchState, th Thresholds) []Alert

// rules run in order. Warnings come before informational alerts.
var rules = []rule{
	noiseSpike,
	uncataloguedTypes,
	passiveOnly,
	newActivity,
	newTools,
	catalogTypes,
	noiseRecovered,
}

// Compare runs every rule over prev and curr. Alerts carry the time of
// the current state, or the wall clock when that is unset.
func Compare(prev, curr *WatchState, th Thresholds) []Alert {
	at := curr.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	var out []Alert
	for _, r := range rules {
		for _, a := range r(prev, curr, th) {
			a.Time = at
			out = append(out, a)
		}
	}
	return out
}

func alertf(level, title, format string, args ...any) Alert {
	return Alert{Level: level, Title: title, Message: fmt.Sprintf(format, args...)}
}

func noiseSpike(prev, curr *WatchState, th Thresholds) []Alert {
	if th.NoiseShare <= 0 || curr.TotalEvents == 0 ||
		curr.NoiseShare <= th.NoiseShare || prev.NoiseShare > th.NoiseShare {
		return nil
	}
	return []Alert{alertf(LevelWarning, "Passive noise spike",
		"%.0f%% of events are passive (was %.0f%%, threshold %.0f%%)",
		pct(curr.NoiseShare), pct(prev.NoiseShare), pct(th.NoiseShare))}
}

func noiseRecovered(prev, curr *WatchState, th Thresholds) []Alert {
	if th.NoiseShare <= 0 || prev.NoiseShare <= th.NoiseShare || curr.NoiseShare > th.NoiseShare {
		return nil
	}
	return []Alert{alertf(LevelInfo, "Passive noise recovered",
		"Passive share back to %.0f%% (was %.0f%%)", pct(curr.NoiseShare), pct(prev.NoiseShare))}
}

// uncataloguedTypes flags event types the catalog has no entry for.
func uncataloguedTypes(prev, curr *WatchState, _ Thresholds) []Alert {
	var out []Alert
	for _, et := range appeared(prev.EventTypes, curr.EventTypes) {
		if taxonomy.EventMeta(et).Category != taxonomy.CategoryCustom {
			continue
		}
		out = append(out, alertf(LevelWarning, "Uncatalogued event type: "+et,
			"First seen with %d event(s); it renders as %q", curr.EventTypes[et], taxonomy.Humanize(et)))
	}
	return out
}

func catalogTypes(prev, curr *WatchState, _ Thresholds) []Alert {
	var out []Alert
	for _, et := range appeared(prev.EventTypes, curr.EventTypes) {
		meta := taxonomy.EventMeta(et)
		if meta.Category == taxonomy.CategoryCustom {
			continue
		}
		out = append(out, alertf(LevelInfo, "New event type: "+meta.Label,
			"First seen with %d event(s) (%s)", curr.EventTypes[et], meta.Category))
	}
	return out
}

// passiveOnly fires when new sessions arrived but added nothing meaningful.
func passiveOnly(prev, curr *WatchState, _ Thresholds) []Alert {
	sessions := curr.SessionCount - prev.SessionCount
	if sessions <= 0 || curr.MeaningfulEvents != prev.MeaningfulEvents || curr.PassiveEvents <= prev.PassiveEvents {
		return nil
	}
	return []Alert{alertf(LevelWarning, "Only passive activity",
		"%d new session(s) produced no meaningful events", sessions)}
}

func newActivity(prev, curr *WatchState, _ Thresholds) []Alert {
	delta := curr.MeaningfulEvents - prev.MeaningfulEvents
	if delta <= 0 {
		return nil
	}
	return []Alert{alertf(LevelInfo, "New activity",
		"+%d meaningful event(s), %d session(s) in window", delta, curr.SessionCount)}
}

func newTools(prev, curr *WatchState, _ Thresholds) []Alert {
	var out []Alert
	for _, tool := range appeared(prev.ToolEvents, curr.ToolEvents) {
		out = append(out, alertf(LevelInfo, "New tool: "+taxonomy.LabelTool(tool),
			"First %d event(s) from %s in window", curr.ToolEvents[tool], tool))
	}
	return out
}

// appeared lists, in sorted order, the keys counted in curr but absent
// from prev.
func appeared(prev, curr map[string]int) []string {
	var keys []string
	for _, k := range slices.Sorted(maps.Keys(curr)) {
		if _, had := prev[k]; !had && curr[k] > 0 {
			keys = append(keys, k)
		}
	}
	return keys
}

func pct(share float64) float64 { return share * 100 }
