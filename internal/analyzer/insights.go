package analyzer

import (
	"github.com/blackwell-systems/pluginwatch/internal/taxonomy"
)

// BuildInsights derives engagement ratios from already computed aggregates.
// tools is expected in BuildToolUsage order and breakdown in
// BuildEventTypeBreakdown order.
func BuildInsights(summary Summary, tools []ToolUsage, breakdown []EventTypeCount) Insights {
	kpis := summary.KPIs
	total := float64(kpis.TotalEvents)
	// Per-session ratios treat an empty window as one session.
	sessions := float64(max(1, kpis.TotalSessions))

	in := Insights{
		TotalEvents:        kpis.TotalEvents,
		MeaningfulEvents:   kpis.MeaningfulEvents,
		PassiveEvents:      kpis.PassiveEvents,
		ActiveShare:        ratio(float64(kpis.MeaningfulEvents), total),
		NoiseShare:         ratio(float64(kpis.PassiveEvents), total),
		AuthenticatedUsers: kpis.AuthenticatedUsers,
		AnonymousUsers:     kpis.AnonymousUsers,
		AuthenticatedShare: ratio(float64(kpis.AuthenticatedUsers), float64(kpis.AuthenticatedUsers+kpis.AnonymousUsers)),
	}
	in.AvgMeaningfulPerSession = float64(kpis.MeaningfulEvents) / sessions

	for _, row := range breakdown {
		if row.EventType == clickEventType {
			in.ClickCount = row.Count
		}
		if row.Passive {
			continue
		}
		if in.TopMeaningfulEvent == nil || row.Count > in.TopMeaningfulEvent.Count {
			in.TopMeaningfulEvent = &TopEvent{
				EventType: row.EventType,
				Count:     row.Count,
				Meta:      taxonomy.EventMeta(row.EventType),
			}
		}
	}
	in.ClickPerSession = float64(in.ClickCount) / sessions

	for i := range tools {
		if tools[i].ActiveEventCount > 0 {
			in.ActiveToolCount++
		}
		if in.TopTool == nil || tools[i].ActiveEventCount > in.TopTool.ActiveEventCount {
			top := tools[i]
			in.TopTool = &top
		}
	}
	if in.TopTool != nil {
		in.TopToolShare = ratio(float64(in.TopTool.ActiveEventCount), float64(kpis.MeaningfulEvents))
	}

	return in
}
