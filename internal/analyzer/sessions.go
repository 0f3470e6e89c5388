package analyzer

import (
	"sort"

	"github.com/blackwell-systems/pluginwatch/internal/event"
	"github.com/blackwell-systems/pluginwatch/internal/taxonomy"
)

// BuildSessions groups events by session id and returns the sessions that
// ended most recently first, at most limit of them (limit <= 0 keeps all).
// The user and source of a session are those of its latest event; equal
// timestamps resolve to the later event in the input.
func BuildSessions(events []event.Event, limit int) []Session {
	c := newClassifier()
	var order []*Session
	byID := make(map[string]*Session)
	tools := make(map[string]*stringSet)

	for _, e := range events {
		s, ok := byID[e.SessionID]
		if !ok {
			s = &Session{
				SessionID: e.SessionID,
				StartedAt: e.EventAt,
				EndedAt:   e.EventAt,
			}
			byID[e.SessionID] = s
			tools[e.SessionID] = newStringSet()
			order = append(order, s)
		}

		if e.EventAt.Before(s.StartedAt) {
			s.StartedAt = e.EventAt
		}
		if !e.EventAt.Before(s.EndedAt) {
			s.EndedAt = e.EventAt
			s.User = e.User
			s.LastSource = e.Source
		}

		s.EventCount++
		if _, passive := c.classify(e); passive {
			s.PassiveEventCount++
		} else {
			s.ActiveEventCount++
		}
		tools[e.SessionID].add(e.Tool)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].EndedAt.After(order[j].EndedAt)
	})
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}

	sessions := make([]Session, 0, len(order))
	for _, s := range order {
		s.DurationMs = s.EndedAt.Sub(s.StartedAt).Milliseconds()
		s.Tools = tools[s.SessionID].order
		sessions = append(sessions, *s)
	}
	return sessions
}

// BuildRecentEvents returns events newest first, annotated with their
// resolved action. Passive events are dropped unless includePassive is set.
// At most limit events are returned (limit <= 0 keeps all).
func BuildRecentEvents(events []event.Event, limit int, includePassive bool) []RecentEvent {
	c := newClassifier()
	sorted := make([]event.Event, len(events))
	copy(sorted, events)
	// Reverse first so that equal timestamps come out latest-inserted first.
	for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EventAt.After(sorted[j].EventAt)
	})

	recent := make([]RecentEvent, 0, len(sorted))
	for _, e := range sorted {
		action, passive := c.classify(e)
		if passive && !includePassive {
			continue
		}
		recent = append(recent, RecentEvent{
			Event:      e,
			Action:     action,
			ActionMeta: taxonomy.ActionMeta(action),
			Passive:    passive,
		})
		if limit > 0 && len(recent) == limit {
			break
		}
	}
	return recent
}
