package taxonomy

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// CategoryCustom holds event types and actions the catalog does not list.
const CategoryCustom = "Custom"

// Meta describes an event type or action key for display and filtering.
type Meta struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Signal      Signal `json:"signal"`
	Passive     bool   `json:"passive"`
}

func (e entry) meta(key string) Meta {
	return Meta{
		Key:         key,
		Label:       e.Label,
		Description: e.Description,
		Category:    e.Category,
		Signal:      e.Signal,
		Passive:     e.Passive,
	}
}

// EventMeta returns metadata for an event type. Unlisted types get a
// humanized label in the Custom category.
func EventMeta(eventType string) Meta {
	key := strings.TrimSpace(eventType)
	if key == "" {
		key = UnknownEventType
	}
	if e, ok := eventCatalog[key]; ok {
		m := e.meta(key)
		m.Passive = passiveEventTypes[key]
		return m
	}
	return Meta{
		Key:         key,
		Label:       Humanize(key),
		Description: "Custom telemetry event captured from plugin runtime.",
		Category:    CategoryCustom,
		Signal:      SignalMedium,
		Passive:     passiveEventTypes[key],
	}
}

// rule synthesizes metadata for keys that share a structural prefix.
// Rules are tried in order; the first match wins.
type rule struct {
	match    func(normalized string) bool
	classify func(key, normalized string) Meta
}

func hasPrefix(prefix string) func(string) bool {
	return func(normalized string) bool { return strings.HasPrefix(normalized, prefix) }
}

// segmentsAfter joins the colon-separated segments of key after the first n.
func segmentsAfter(key string, n int) string {
	parts := strings.Split(key, ":")
	if len(parts) <= n {
		return ""
	}
	return strings.Join(parts[n:], ":")
}

func labelled(category, description string, signal Signal, label func(key, normalized string) string) func(string, string) Meta {
	return func(key, normalized string) Meta {
		return Meta{
			Key:         key,
			Label:       label(key, normalized),
			Description: description,
			Category:    category,
			Signal:      signal,
		}
	}
}

func addRemove(add, remove, updated string) func(string, string) string {
	return func(_, normalized string) string {
		switch {
		case strings.HasSuffix(normalized, ":add"):
			return add
		case strings.HasSuffix(normalized, ":remove"):
			return remove
		default:
			return updated
		}
	}
}

var prefixRules = []rule{
	{hasPrefix("tab:"), labelled("Navigation", "User switched in-tool tab/view.", SignalHigh,
		func(key, _ string) string { return "Tab: " + Humanize(key[len("tab:"):]) })},
	{hasPrefix("click:"), labelled("Interaction", "User clicked an interactive control.", SignalHigh,
		func(key, _ string) string { return "Click: " + Humanize(key[len("click:"):]) })},
	{hasPrefix("input:"), labelled("Interaction", "User changed an input/dropdown/toggle value.", SignalHigh,
		func(key, _ string) string { return "Input: " + Humanize(key[len("input:"):]) })},
	{hasPrefix("key:"), labelled("Interaction", "Keyboard-triggered interaction on a control.", SignalMedium,
		func(key, _ string) string { return "Keyboard: " + Humanize(key[len("key:"):]) })},
	{hasPrefix("palette:export-scheme:"), labelled("Palette", "Palette scheme exported from palette tool.", SignalHigh,
		func(key, _ string) string { return "Export Scheme: " + Humanize(segmentsAfter(key, 2)) })},
	{hasPrefix("palette:export-variation:"), labelled("Palette", "Palette variation exported from palette tool.", SignalHigh,
		func(key, _ string) string { return "Export Variation: " + Humanize(segmentsAfter(key, 2)) })},
	{func(n string) bool { return n == "palette:export-selected-options" }, labelled("Palette", "Batch export of selected palette variation/scheme options.", SignalHigh,
		func(string, string) string { return "Export Selected Palette Options" })},
	{hasPrefix("favorite:"), labelled("Engagement", "Favorite preference changed in dashboard tools.", SignalHigh,
		addRemove("Add Favorite", "Remove Favorite", "Favorite Updated"))},
	{hasPrefix("importer-favorite:"), labelled("Engagement", "Favorite preference changed in import tool.", SignalHigh,
		addRemove("Add Importer Favorite", "Remove Importer Favorite", "Importer Favorite Updated"))},
	{hasPrefix("import:conversion:"), labelled("Import", "Pre-import conversion completed for selected file.", SignalHigh,
		func(key, _ string) string { return "Import Conversion: " + Humanize(segmentsAfter(key, 2)) })},
	{hasPrefix("import:file-selected:"), labelled("Import", "User selected import file for processing.", SignalHigh,
		func(key, _ string) string { return "Import Selected: " + Humanize(segmentsAfter(key, 2)) })},
	{hasPrefix("export:pdf:"), labelled("Export", "PDF export workflow lifecycle event.", SignalHigh,
		func(key, _ string) string { return "PDF Export " + Humanize(segmentsAfter(key, 2)) })},
}

// heuristic assigns a category by verb prefix when no rule matched.
type heuristic struct {
	match    func(normalized string) bool
	category string
	signal   Signal
	passive  bool
}

func containsAny(subs ...string) func(string) bool {
	return func(normalized string) bool {
		for _, s := range subs {
			if strings.Contains(normalized, s) {
				return true
			}
		}
		return false
	}
}

func hasAnyPrefix(prefixes ...string) func(string) bool {
	return func(normalized string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(normalized, p) {
				return true
			}
		}
		return false
	}
}

var heuristics = []heuristic{
	{func(n string) bool { return strings.HasPrefix(n, "toggle-") || strings.Contains(n, "collapse") }, "Navigation", SignalHigh, false},
	{hasAnyPrefix("get-", "load-"), "Read", SignalLow, false},
	{hasAnyPrefix("save-", "store-", "delete-", "clear-"), "Write", SignalMedium, false},
	{hasAnyPrefix("export-"), "Export", SignalHigh, false},
	{containsAny("auth", "token", "session"), "Auth", SignalMedium, false},
	{hasAnyPrefix("analytics-"), "System", SignalLow, true},
}

// ActionMeta classifies an action key. Lookup order: event catalog, action
// catalog, structural prefix rules, verb heuristics, then a Custom fallback.
func ActionMeta(actionKey string) Meta {
	key := strings.TrimSpace(actionKey)
	if key == "" {
		return Meta{
			Key:         "unknown_action",
			Label:       "Unknown Action",
			Description: "Action key missing in payload.",
			Category:    "Unmapped",
			Signal:      SignalLow,
		}
	}
	if _, ok := eventCatalog[key]; ok {
		return EventMeta(key)
	}
	if e, ok := actionCatalog[key]; ok {
		return e.meta(key)
	}

	normalized := strings.ToLower(key)
	for _, r := range prefixRules {
		if r.match(normalized) {
			return r.classify(key, normalized)
		}
	}

	m := Meta{
		Key:         key,
		Label:       Humanize(key),
		Description: "Action observed from plugin message handling.",
		Category:    CategoryCustom,
		Signal:      SignalMedium,
	}
	for _, h := range heuristics {
		if h.match(normalized) {
			m.Category = h.category
			m.Signal = h.signal
			m.Passive = h.passive
			break
		}
	}
	return m
}

// actionFields are the payload fields that may carry an action key, in
// priority order.
var actionFields = []string{"action", "messageType", "interactionAction", "type"}

// ResolveAction returns the canonical action key of an event: the first
// non-empty action-bearing payload field, else the event type.
func ResolveAction(eventType string, payload map[string]any) string {
	for _, field := range actionFields {
		if s := stringField(payload, field); s != "" {
			return s
		}
	}
	if eventType != "" {
		return eventType
	}
	return UnknownEventType
}

// IsPassive reports whether an event is system noise: a passive event type,
// a passive action key, or any key under the analytics- prefix.
func IsPassive(eventType, actionKey string) bool {
	if passiveEventTypes[eventType] {
		return true
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(actionKey)), "analytics-") {
		return true
	}
	return ActionMeta(actionKey).Passive
}

// IsPassiveEvent resolves the action key from the payload and applies
// IsPassive.
func IsPassiveEvent(eventType string, payload map[string]any) bool {
	return IsPassive(eventType, ResolveAction(eventType, payload))
}

var (
	separatorRe  = regexp.MustCompile(`[._-]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Humanize turns an identifier like "custom-widget_42" into
// "Custom Widget 42". Empty input yields "Unknown".
func Humanize(value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return "Unknown"
	}
	raw = separatorRe.ReplaceAllString(raw, " ")
	raw = whitespaceRe.ReplaceAllString(raw, " ")

	var b strings.Builder
	b.Grow(len(raw))
	prevWord := false
	for _, r := range raw {
		word := isWordRune(r)
		if word && !prevWord {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
		prevWord = word
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// stringField returns payload[key] when it is a non-empty string.
func stringField(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	s, _ := payload[key].(string)
	return strings.TrimSpace(s)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
