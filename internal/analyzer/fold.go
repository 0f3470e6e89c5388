package analyzer

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/blackwell-systems/pluginwatch/internal/event"
	"github.com/blackwell-systems/pluginwatch/internal/taxonomy"
)

// classifier memoizes action resolution and passivity per (event type,
// action) pair for the duration of one fold.
type classifier struct {
	passive map[[2]string]bool
}

func newClassifier() *classifier {
	return &classifier{passive: make(map[[2]string]bool)}
}

// classify returns the resolved action key of e and whether e is passive.
func (c *classifier) classify(e event.Event) (string, bool) {
	action := taxonomy.ResolveAction(e.EventType, e.Payload)
	key := [2]string{e.EventType, action}
	p, ok := c.passive[key]
	if !ok {
		p = taxonomy.IsPassive(e.EventType, action)
		c.passive[key] = p
	}
	return action, p
}

// counter counts string keys and remembers first-seen order, which is the
// tie-break for every top-N listing.
type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string, n int) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key] += n
}

// ranked returns keys by count descending, ties in first-seen order,
// truncated to limit when limit > 0.
func (c *counter) ranked(limit int) []string {
	keys := append([]string(nil), c.order...)
	sort.SliceStable(keys, func(i, j int) bool {
		return c.counts[keys[i]] > c.counts[keys[j]]
	})
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

// stringSet is an insertion-ordered set.
type stringSet struct {
	order []string
	seen  map[string]struct{}
}

func newStringSet() *stringSet {
	return &stringSet{seen: make(map[string]struct{})}
}

func (s *stringSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.order = append(s.order, v)
}

func (s *stringSet) len() int { return len(s.order) }

// toNumber coerces a decoded JSON or CBOR value to a finite float64.
func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// numberField returns payload[key] as a number, or 0.
func numberField(payload map[string]any, key string) float64 {
	f, _ := toNumber(payload[key])
	return f
}

func stringField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return strings.TrimSpace(s)
}

func objectField(payload map[string]any, key string) map[string]any {
	m, _ := payload[key].(map[string]any)
	return m
}

// boolField reports payload[key] as a boolean. Strings "true"/"1"/"yes"
// and non-zero numbers count as true; ok is false when the key is absent
// or not interpretable.
func boolField(payload map[string]any, key string) (value, ok bool) {
	switch v := payload[key].(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		}
		return false, false
	}
	if f, ok := toNumber(payload[key]); ok {
		return f != 0, true
	}
	return false, false
}

// timeSpent returns the durationMs of a tool_time_spent event, else 0.
func timeSpent(e event.Event) float64 {
	if e.EventType != "tool_time_spent" {
		return 0
	}
	return numberField(e.Payload, "durationMs")
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func ratio(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return part / total
}
