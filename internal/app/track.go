package app

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pluginwatch/internal/analyzer"
	"github.com/blackwell-systems/pluginwatch/internal/dashboard"
	"github.com/blackwell-systems/pluginwatch/internal/output"
	"github.com/blackwell-systems/pluginwatch/internal/store"
)

var (
	trackCompare int
	trackHistory int
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Snapshot and compare KPIs over time",
	Long: `Compute the dashboard KPIs for the window, store them as a new snapshot,
and compare against an earlier snapshot with trend arrows.

Examples:
  pluginwatch track                 # snapshot and compare with the previous one
  pluginwatch track --compare 7     # compare with the 7th most recent snapshot
  pluginwatch track --history 10    # KPI timeline across the last 10 snapshots`,
	RunE: runTrack,
}

func init() {
	addQueryFlags(trackCmd)
	trackCmd.Flags().IntVar(&trackCompare, "compare", 1, "Compare against Nth previous snapshot (1 = most recent)")
	trackCmd.Flags().IntVar(&trackHistory, "history", 0, "Show KPI trends across N most recent snapshots")
	rootCmd.AddCommand(trackCmd)
}

func runTrack(cmd *cobra.Command, args []string) error {
	if trackCompare < 1 {
		return fmt.Errorf("--compare must be at least 1, got %d", trackCompare)
	}
	ctx := cmd.Context()
	return runQuery(func(svc *localService, q dashboard.Query) error {
		db, err := openStore(ctx, svc)
		if err != nil {
			return err
		}

		kpis, err := collectKPIs(ctx, svc.Service, q)
		if err != nil {
			return err
		}
		current, err := recordSnapshot(ctx, db, kpis)
		if err != nil {
			return err
		}

		if trackHistory > 0 {
			return renderHistory(ctx, os.Stdout, db, trackHistory)
		}

		// trackCompare=1 means the immediate predecessor, offset 2 from newest.
		previous, err := db.SnapshotN(ctx, trackCompare+1)
		if err != nil {
			return fmt.Errorf("loading previous snapshot: %w", err)
		}
		var diff *store.SnapshotDiff
		if previous != nil {
			if diff, err = db.DiffSnapshots(ctx, previous, current); err != nil {
				return fmt.Errorf("comparing snapshots: %w", err)
			}
		}

		if flagJSON {
			result := map[string]any{"snapshot": current}
			if diff != nil {
				result["diff"] = diff
			}
			return writeJSON(os.Stdout, result)
		}
		renderTrack(os.Stdout, current, diff)
		return nil
	})
}

// collectKPIs computes the tracked metrics for q from the summary,
// insights and feature aggregates.
func collectKPIs(ctx context.Context, svc *dashboard.Service, q dashboard.Query) (map[string]float64, error) {
	opts := dashboard.ParseDashboardOptions(url.Values{})
	opts.SessionsLimit = 1
	opts.EventsLimit = 1
	opts.Heatmap.Limit = 1

	dash, err := svc.Dashboard(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("loading dashboard: %w", err)
	}
	features, err := svc.Features(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("loading features: %w", err)
	}
	return buildKPIs(dash.Summary.KPIs, dash.Insights, features.KPIs), nil
}

// buildKPIs produces a flat map of metric name to value.
func buildKPIs(s analyzer.SummaryKPIs, in analyzer.Insights, f analyzer.FeatureKPIs) map[string]float64 {
	return map[string]float64{
		"total_events":           float64(s.TotalEvents),
		"total_sessions":         float64(s.TotalSessions),
		"authenticated_users":    float64(s.AuthenticatedUsers),
		"anonymous_users":        float64(s.AnonymousUsers),
		"meaningful_events":      float64(in.MeaningfulEvents),
		"noise_share_pct":        in.NoiseShare * 100,
		"meaningful_per_session": in.AvgMeaningfulPerSession,
		"clicks_per_session":     in.ClickPerSession,
		"active_tools":           float64(in.ActiveToolCount),
		"avg_session_minutes":    float64(s.AvgSessionDurationMs) / 60000,
		"palette_exports":        float64(f.PaletteExportEvents),
		"favorite_adds":          float64(f.FavoriteAdds),
		"pdf_export_runs":        float64(f.ExportRuns),
		"merged_pdf_groups":      float64(f.MergedPDFGroups),
	}
}

// recordSnapshot stores kpis, in display order, under a new snapshot.
func recordSnapshot(ctx context.Context, db *store.DB, kpis map[string]float64) (*store.Snapshot, error) {
	metrics := make([]store.AggregateMetric, 0, len(kpis))
	for _, name := range metricDisplayOrder {
		if value, ok := kpis[name]; ok {
			metrics = append(metrics, store.AggregateMetric{MetricName: name, MetricValue: value})
		}
	}
	snap, err := db.RecordSnapshot(ctx, "track", appVersion, metrics)
	if err != nil {
		return nil, fmt.Errorf("recording snapshot: %w", err)
	}
	return snap, nil
}

// metricDirection maps metric names to whether higher values are better.
var metricDirection = map[string]bool{
	"noise_share_pct": false,
}

func higherIsBetter(name string) bool {
	v, known := metricDirection[name]
	return !known || v
}

// metricDisplayOrder defines the order metrics are stored and displayed.
var metricDisplayOrder = []string{
	"total_events",
	"meaningful_events",
	"noise_share_pct",
	"total_sessions",
	"avg_session_minutes",
	"meaningful_per_session",
	"clicks_per_session",
	"authenticated_users",
	"anonymous_users",
	"active_tools",
	"palette_exports",
	"favorite_adds",
	"pdf_export_runs",
	"merged_pdf_groups",
}

// metricShortName returns a compact label for display.
func metricShortName(name string) string {
	short := map[string]string{
		"total_events":           "Events",
		"meaningful_events":      "Meaningful Events",
		"noise_share_pct":        "Noise %",
		"total_sessions":         "Sessions",
		"avg_session_minutes":    "Avg Session (min)",
		"meaningful_per_session": "Meaningful/Session",
		"clicks_per_session":     "Clicks/Session",
		"authenticated_users":    "Signed-in Users",
		"anonymous_users":        "Anonymous Users",
		"active_tools":           "Active Tools",
		"palette_exports":        "Palette Exports",
		"favorite_adds":          "Favorites Added",
		"pdf_export_runs":        "PDF Exports",
		"merged_pdf_groups":      "Merged PDFs",
	}
	if s, ok := short[name]; ok {
		return s
	}
	return name
}

func renderTrack(w io.Writer, current *store.Snapshot, diff *store.SnapshotDiff) {
	fmt.Fprintln(w, output.Section("Track: Snapshot Comparison"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, " Snapshot #%d taken at %s\n\n", current.ID, current.TakenAt.Local().Format("2006-01-02 15:04:05"))

	if diff == nil {
		fmt.Fprintln(w, " First snapshot recorded. Run 'pluginwatch track' again later to see trends.")
		return
	}

	fmt.Fprintf(w, " Comparing against snapshot #%d (%s)\n\n",
		diff.Previous.ID, diff.Previous.TakenAt.Local().Format("2006-01-02 15:04:05"))

	deltas := slices.Clone(diff.Deltas)
	slices.SortStableFunc(deltas, func(a, b store.MetricDelta) int {
		return displayIndex(a.Name) - displayIndex(b.Name)
	})

	tbl := output.NewTable("Metric", "Previous", "Current", "Delta", "Trend").AlignRight(1, 2, 3)
	for _, d := range deltas {
		tbl.AddRow(
			metricShortName(d.Name),
			fmt.Sprintf("%.1f", d.Previous),
			fmt.Sprintf("%.1f", d.Current),
			fmt.Sprintf("%+.1f", d.Delta),
			output.TrendArrow(d.Delta, higherIsBetter(d.Name)),
		)
	}
	fmt.Fprint(w, tbl.Render())
}

// displayIndex orders unknown metrics after the known ones.
func displayIndex(name string) int {
	if i := slices.Index(metricDisplayOrder, name); i >= 0 {
		return i
	}
	return len(metricDisplayOrder)
}

// renderHistory shows a multi-snapshot timeline table, or JSON with --json.
func renderHistory(ctx context.Context, w io.Writer, db *store.DB, n int) error {
	snapshots, err := db.ListSnapshots(ctx, n)
	if err != nil {
		return fmt.Errorf("loading snapshots: %w", err)
	}
	// Oldest first, left to right.
	slices.Reverse(snapshots)

	type snapshotEntry struct {
		Snapshot store.Snapshot          `json:"snapshot"`
		Metrics  []store.AggregateMetric `json:"metrics"`
	}
	entries := make([]snapshotEntry, 0, len(snapshots))
	for _, s := range snapshots {
		metrics, err := db.SnapshotMetrics(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("loading metrics for snapshot #%d: %w", s.ID, err)
		}
		entries = append(entries, snapshotEntry{Snapshot: s, Metrics: metrics})
	}

	if flagJSON {
		return writeJSON(w, map[string]any{"history": entries})
	}

	fmt.Fprintln(w, output.Section("Track: KPI History"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, " Showing %d most recent snapshots\n\n", len(entries))

	headers := []string{"Metric"}
	values := make([]map[string]float64, len(entries))
	for i, e := range entries {
		headers = append(headers, fmt.Sprintf("#%d %s", e.Snapshot.ID, e.Snapshot.TakenAt.Local().Format("Jan 02")))
		values[i] = make(map[string]float64, len(e.Metrics))
		for _, m := range e.Metrics {
			values[i][m.MetricName] = m.MetricValue
		}
	}
	headers = append(headers, "Trend")
	tbl := output.NewTable(headers...)

	for _, name := range metricDisplayOrder {
		row := []string{metricShortName(name)}
		for _, v := range values {
			row = append(row, fmt.Sprintf("%.1f", v[name]))
		}
		trend := ""
		if len(values) >= 2 {
			trend = output.TrendArrow(values[len(values)-1][name]-values[0][name], higherIsBetter(name))
		}
		row = append(row, trend)
		tbl.AddRow(row...)
	}
	fmt.Fprint(w, tbl.Render())
	return nil
}
