package analyzer

import (
	"github.com/blackwell-systems/pluginwatch/internal/event"
	"github.com/blackwell-systems/pluginwatch/internal/taxonomy"
)

const eventTypesLimit = 40

// BuildActionCatalog lists every resolved action key with its count and the
// event types that produced it, most frequent first.
func BuildActionCatalog(events []event.Event) []CatalogAction {
	actions := newCounter()
	eventTypes := make(map[string]*stringSet)
	for _, e := range events {
		action := taxonomy.ResolveAction(e.EventType, e.Payload)
		actions.add(action, 1)
		set, ok := eventTypes[action]
		if !ok {
			set = newStringSet()
			eventTypes[action] = set
		}
		set.add(e.EventType)
	}

	keys := actions.ranked(0)
	catalog := make([]CatalogAction, 0, len(keys))
	for _, a := range keys {
		catalog = append(catalog, CatalogAction{
			Action:     a,
			Count:      actions.counts[a],
			EventTypes: eventTypes[a].order,
			Meta:       taxonomy.ActionMeta(a),
		})
	}
	return catalog
}

// BuildEventTypeBreakdown counts events and distinct sessions per event
// type, keeping the 40 most frequent.
func BuildEventTypeBreakdown(events []event.Event) []EventTypeCount {
	types := newCounter()
	sessions := make(map[string]*stringSet)
	for _, e := range events {
		types.add(e.EventType, 1)
		set, ok := sessions[e.EventType]
		if !ok {
			set = newStringSet()
			sessions[e.EventType] = set
		}
		set.add(e.SessionID)
	}

	keys := types.ranked(eventTypesLimit)
	breakdown := make([]EventTypeCount, 0, len(keys))
	for _, t := range keys {
		breakdown = append(breakdown, EventTypeCount{
			EventType:    t,
			Count:        types.counts[t],
			SessionCount: sessions[t].len(),
			Passive:      taxonomy.IsPassiveEventType(t),
		})
	}
	return breakdown
}
