package analyzer

import (
	"math"
	"sort"
	"time"

	"github.com/blackwell-systems/pluginwatch/internal/event"
)

const (
	topToolsLimit   = 12
	topActionsLimit = 30
)

// toolAccumulator collects the per-tool counters shared by Summary and
// ToolUsage.
type toolAccumulator struct {
	tool      string
	events    int
	active    int
	passive   int
	clicks    int
	timeSpent float64
	sessions  *stringSet
	authUsers *stringSet
	anonUsers *stringSet
}

func (a *toolAccumulator) add(e event.Event, passive bool) {
	a.events++
	if passive {
		a.passive++
	} else {
		a.active++
	}
	if e.EventType == "ui_click" {
		a.clicks++
	}
	a.timeSpent += timeSpent(e)
	a.sessions.add(e.SessionID)
	if e.User.IsAuthenticated {
		if e.User.UserID != "" {
			a.authUsers.add(e.User.UserID)
		}
	} else if e.User.AnonymousID != "" {
		a.anonUsers.add(e.User.AnonymousID)
	}
}

// accumulateTools groups events by tool in first-seen order.
func accumulateTools(events []event.Event, c *classifier) []*toolAccumulator {
	var order []*toolAccumulator
	byTool := make(map[string]*toolAccumulator)
	for _, e := range events {
		acc, ok := byTool[e.Tool]
		if !ok {
			acc = &toolAccumulator{
				tool:      e.Tool,
				sessions:  newStringSet(),
				authUsers: newStringSet(),
				anonUsers: newStringSet(),
			}
			byTool[e.Tool] = acc
			order = append(order, acc)
		}
		_, passive := c.classify(e)
		acc.add(e, passive)
	}
	return order
}

// sessionSpan is the first and last event time of one session.
type sessionSpan struct {
	start, end time.Time
}

func (s sessionSpan) duration() int64 {
	return s.end.Sub(s.start).Milliseconds()
}

// BuildSummary computes headline KPIs, top tools, top actions and per-day
// counts.
func BuildSummary(events []event.Event) Summary {
	c := newClassifier()
	summary := Summary{
		TopTools:    []ToolSummary{},
		TopActions:  []ActionCount{},
		EventsByDay: []DayBucket{},
	}
	kpis := &summary.KPIs
	kpis.TotalEvents = len(events)

	spans := make(map[string]*sessionSpan)
	authUsers := newStringSet()
	anonUsers := newStringSet()
	actions := newCounter()

	type dayAcc struct {
		events   int
		sessions *stringSet
	}
	days := make(map[string]*dayAcc)

	for _, e := range events {
		action, passive := c.classify(e)
		if passive {
			kpis.PassiveEvents++
		} else {
			kpis.MeaningfulEvents++
		}
		actions.add(action, 1)

		if e.User.IsAuthenticated {
			if e.User.UserID != "" {
				authUsers.add(e.User.UserID)
			}
		} else {
			kpis.AnonymousEvents++
			if e.User.AnonymousID != "" {
				anonUsers.add(e.User.AnonymousID)
			}
		}

		span, ok := spans[e.SessionID]
		if !ok {
			spans[e.SessionID] = &sessionSpan{start: e.EventAt, end: e.EventAt}
		} else {
			if e.EventAt.Before(span.start) {
				span.start = e.EventAt
			}
			if e.EventAt.After(span.end) {
				span.end = e.EventAt
			}
		}

		day := e.EventAt.UTC().Format("2006-01-02")
		d, ok := days[day]
		if !ok {
			d = &dayAcc{sessions: newStringSet()}
			days[day] = d
		}
		d.events++
		d.sessions.add(e.SessionID)
	}

	kpis.TotalSessions = len(spans)
	kpis.AuthenticatedUsers = authUsers.len()
	kpis.AnonymousUsers = anonUsers.len()

	if len(spans) > 0 {
		var total, longest int64
		for _, s := range spans {
			d := s.duration()
			total += d
			if d > longest {
				longest = d
			}
		}
		kpis.AvgSessionDurationMs = int64(math.Round(float64(total) / float64(len(spans))))
		kpis.MaxSessionDurationMs = longest
	}

	tools := accumulateTools(events, c)
	sort.SliceStable(tools, func(i, j int) bool { return tools[i].active > tools[j].active })
	if len(tools) > topToolsLimit {
		tools = tools[:topToolsLimit]
	}
	for _, t := range tools {
		summary.TopTools = append(summary.TopTools, ToolSummary{
			Tool:              t.tool,
			Events:            t.events,
			ActiveEventCount:  t.active,
			PassiveEventCount: t.passive,
			SessionCount:      t.sessions.len(),
			TimeSpentMs:       round2(t.timeSpent),
		})
	}

	for _, a := range actions.ranked(topActionsLimit) {
		summary.TopActions = append(summary.TopActions, ActionCount{Action: a, Count: actions.counts[a]})
	}

	dayKeys := make([]string, 0, len(days))
	for day := range days {
		dayKeys = append(dayKeys, day)
	}
	sort.Strings(dayKeys)
	for _, day := range dayKeys {
		summary.EventsByDay = append(summary.EventsByDay, DayBucket{
			Day:      day,
			Events:   days[day].events,
			Sessions: days[day].sessions.len(),
		})
	}

	return summary
}

// BuildToolUsage returns per-tool counters sorted by active events, then
// total events, both descending.
func BuildToolUsage(events []event.Event) []ToolUsage {
	tools := accumulateTools(events, newClassifier())
	sort.SliceStable(tools, func(i, j int) bool {
		if tools[i].active != tools[j].active {
			return tools[i].active > tools[j].active
		}
		return tools[i].events > tools[j].events
	})

	usage := make([]ToolUsage, 0, len(tools))
	for _, t := range tools {
		usage = append(usage, ToolUsage{
			Tool:                   t.tool,
			EventCount:             t.events,
			ActiveEventCount:       t.active,
			PassiveEventCount:      t.passive,
			ClickCount:             t.clicks,
			SessionCount:           t.sessions.len(),
			UserCount:              t.authUsers.len() + t.anonUsers.len(),
			AuthenticatedUserCount: t.authUsers.len(),
			AnonymousUserCount:     t.anonUsers.len(),
			TimeSpentMs:            round2(t.timeSpent),
		})
	}
	return usage
}
