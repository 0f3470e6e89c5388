package dashboard

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/blackwell-systems/pluginwatch/internal/analyzer"
	"github.com/blackwell-systems/pluginwatch/internal/event"
	"github.com/blackwell-systems/pluginwatch/internal/store"
)

// DefaultRange is the query window when from/to are absent.
const DefaultRange = 7 * 24 * time.Hour

// Limit defaults and caps, per query.
const (
	SessionsLimit     = 60
	SessionsMax       = 300
	EventsLimit       = 150
	EventsMax         = 1000
	DashboardEvents   = 100
	HeatmapCompact    = 12000
	HeatmapCompactMax = 25000
	HeatmapFull       = 3000
	HeatmapFullMax    = 12000
	GridXMax          = 256
	GridYMax          = 128
)

const (
	maxToolParam   = 120
	maxAuthParam   = 20
	maxActionParam = 600
	maxActions     = 50
)

// Query is the filter predicate every aggregate accepts.
type Query struct {
	From    time.Time
	To      time.Time
	Tool    string
	Auth    store.AuthFilter
	Actions []string
}

// ParseQuery reads from, to, tool, auth and action from query values.
// Malformed values fall back to defaults; it never fails.
func ParseQuery(values url.Values, now time.Time) Query {
	from, to := ParseDateRange(values.Get("from"), values.Get("to"), now)
	q := Query{
		From: from,
		To:   to,
		Auth: store.ParseAuthFilter(clip(values.Get("auth"), maxAuthParam)),
	}
	if tool := clip(values.Get("tool"), maxToolParam); tool != "" && tool != "all" {
		q.Tool = tool
	}
	q.Actions = ParseActions(values.Get("action"))
	return q
}

// Filter converts q into a store filter.
func (q Query) Filter() store.Filter {
	return store.Filter{
		From:    q.From,
		To:      q.To,
		Tool:    q.Tool,
		Auth:    q.Auth,
		Actions: q.Actions,
	}
}

// Values renders q back into query values, for cache keys and CLI calls.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("from", q.From.UTC().Format(time.RFC3339Nano))
	v.Set("to", q.To.UTC().Format(time.RFC3339Nano))
	if q.Tool != "" {
		v.Set("tool", q.Tool)
	}
	if q.Auth != "" && q.Auth != store.AuthAll {
		v.Set("auth", string(q.Auth))
	}
	if len(q.Actions) > 0 {
		v.Set("action", strings.Join(q.Actions, ","))
	}
	return v
}

// ParseDateRange parses RFC 3339 (or date-only) bounds. A missing or
// unparseable from defaults to seven days before now, to defaults to now,
// and a reversed range is swapped.
func ParseDateRange(fromRaw, toRaw string, now time.Time) (time.Time, time.Time) {
	from := parseDate(fromRaw, now.Add(-DefaultRange))
	to := parseDate(toRaw, now)
	if from.After(to) {
		return to, from
	}
	return from, to
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseDate(raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil && event.Representable(t) {
			return t.UTC()
		}
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if t := time.UnixMilli(ms); event.Representable(t) {
			return t.UTC()
		}
	}
	return fallback
}

// ParseLimit returns floor(raw) capped at max, or fallback when raw is not
// a finite number of at least 1.
func ParseLimit(raw string, fallback, max int) int {
	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return fallback
	}
	n = math.Floor(n)
	if n < 1 {
		return fallback
	}
	if n >= float64(max) {
		return max
	}
	return int(n)
}

// ParseBool accepts 1, true and yes (any case) as true. An empty value
// yields fallback; anything else is false.
func ParseBool(raw string, fallback bool) bool {
	if raw == "" {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// ParseActions splits a comma-separated action allow-list. "all" and empty
// entries are dropped.
func ParseActions(raw string) []string {
	raw = clip(raw, maxActionParam)
	if raw == "" || raw == "all" {
		return nil
	}
	var actions []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		a := strings.TrimSpace(part)
		if a == "" || a == "all" || seen[a] {
			continue
		}
		seen[a] = true
		actions = append(actions, a)
		if len(actions) == maxActions {
			break
		}
	}
	return actions
}

// HeatmapParams reads heatmap options using the given parameter names.
// Compact and full mode have different limit defaults and caps.
func HeatmapParams(values url.Values, compactKey, limitKey, gridXKey, gridYKey string, compactDefault bool) analyzer.HeatmapOptions {
	opts := analyzer.HeatmapOptions{
		Compact: ParseBool(values.Get(compactKey), compactDefault),
		GridX:   ParseLimit(values.Get(gridXKey), analyzer.DefaultGridX, GridXMax),
		GridY:   ParseLimit(values.Get(gridYKey), analyzer.DefaultGridY, GridYMax),
	}
	if opts.Compact {
		opts.Limit = ParseLimit(values.Get(limitKey), HeatmapCompact, HeatmapCompactMax)
	} else {
		opts.Limit = ParseLimit(values.Get(limitKey), HeatmapFull, HeatmapFullMax)
	}
	return opts
}

// clip trims s and cuts it to at most n runes.
func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
