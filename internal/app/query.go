package app

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pluginwatch/internal/analyzer"
	"github.com/blackwell-systems/pluginwatch/internal/dashboard"
	"github.com/blackwell-systems/pluginwatch/internal/output"
	"github.com/blackwell-systems/pluginwatch/internal/taxonomy"
)

// Query flags shared by the read-only commands. They take the same values
// as the HTTP query parameters.
var (
	qFrom    string
	qTo      string
	qTool    string
	qAuth    string
	qAction  string
	qLimit   int
	qPassive bool
)

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&qFrom, "from", "", "Window start, RFC 3339 or YYYY-MM-DD (default 7 days ago)")
	cmd.Flags().StringVar(&qTo, "to", "", "Window end (default now)")
	cmd.Flags().StringVar(&qTool, "tool", "", "Restrict to one tool id")
	cmd.Flags().StringVar(&qAuth, "auth", "", "User filter: all, authenticated or anonymous")
	cmd.Flags().StringVar(&qAction, "action", "", "Comma-separated action keys")
}

func queryValues() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("from", qFrom)
	set("to", qTo)
	set("tool", qTool)
	set("auth", qAuth)
	set("action", qAction)
	return v
}

// runQuery opens the service, resolves the window and hands both to fn.
func runQuery(fn func(svc *localService, q dashboard.Query) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := openService(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()
	return fn(svc, dashboard.ParseQuery(queryValues(), svc.Now()))
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Headline KPIs for a date window",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(func(svc *localService, q dashboard.Query) error {
			res, err := svc.Summary(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("loading summary: %w", err)
			}
			if flagJSON {
				return writeJSON(os.Stdout, res)
			}
			renderSummary(os.Stdout, res)
			return nil
		})
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Per-tool usage breakdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(func(svc *localService, q dashboard.Query) error {
			res, err := svc.ToolUsage(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("loading tool usage: %w", err)
			}
			if flagJSON {
				return writeJSON(os.Stdout, res)
			}
			renderToolUsage(os.Stdout, res)
			return nil
		})
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Recent plugin sessions",
	Long: `List sessions in the window, most recently active first.

Examples:
  pluginwatch sessions                         # last 7 days, 60 sessions
  pluginwatch sessions --tool palettable --limit 10
  pluginwatch sessions --auth anonymous`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(func(svc *localService, q dashboard.Query) error {
			limit := dashboard.ParseLimit(fmt.Sprint(qLimit), dashboard.SessionsLimit, dashboard.SessionsMax)
			res, err := svc.Sessions(cmd.Context(), q, limit)
			if err != nil {
				return fmt.Errorf("loading sessions: %w", err)
			}
			if flagJSON {
				return writeJSON(os.Stdout, res)
			}
			renderSessions(os.Stdout, res)
			return nil
		})
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Latest events with resolved actions",
	Long: `Show the newest events in the window with their resolved action and
classification. Heartbeats and other system noise are hidden unless
--include-passive is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(func(svc *localService, q dashboard.Query) error {
			limit := dashboard.ParseLimit(fmt.Sprint(qLimit), 30, dashboard.EventsMax)
			res, err := svc.RecentEvents(cmd.Context(), q, limit, qPassive)
			if err != nil {
				return fmt.Errorf("loading recent events: %w", err)
			}
			if flagJSON {
				return writeJSON(os.Stdout, res)
			}
			renderEvents(os.Stdout, res)
			return nil
		})
	},
}

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Feature analytics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(func(svc *localService, q dashboard.Query) error {
			res, err := svc.Features(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("loading features: %w", err)
			}
			if flagJSON {
				return writeJSON(os.Stdout, res)
			}
			renderFeatures(os.Stdout, res)
			return nil
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{summaryCmd, toolsCmd, sessionsCmd, eventsCmd, featuresCmd} {
		addQueryFlags(cmd)
		rootCmd.AddCommand(cmd)
	}
	sessionsCmd.Flags().IntVar(&qLimit, "limit", 0, "Maximum sessions to show (default 60, max 300)")
	eventsCmd.Flags().IntVar(&qLimit, "limit", 0, "Maximum events to show (default 30, max 1000)")
	eventsCmd.Flags().BoolVar(&qPassive, "include-passive", false, "Include heartbeats and other system noise")
}

func windowLine(w dashboard.Window) string {
	return output.StyleMuted.Render(fmt.Sprintf(" %s → %s",
		w.From.Format("2006-01-02 15:04"), w.To.Format("2006-01-02 15:04")))
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}

func share(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

func renderSummary(w io.Writer, s *dashboard.SummaryResponse) {
	k := s.KPIs
	fmt.Fprintln(w, output.Section("Summary"))
	fmt.Fprintln(w, windowLine(s.Window))
	fmt.Fprintln(w)
	fmt.Fprintln(w, output.KV("Events", k.TotalEvents))
	fmt.Fprintln(w, output.KV("Sessions", k.TotalSessions))
	fmt.Fprintln(w, output.KV("Signed-in users", k.AuthenticatedUsers))
	fmt.Fprintln(w, output.KV("Anonymous users", k.AnonymousUsers))
	fmt.Fprintln(w, output.KV("Avg session", formatDuration(k.AvgSessionDurationMs)))
	fmt.Fprintln(w, output.KV("Longest session", formatDuration(k.MaxSessionDurationMs)))
	fmt.Fprintf(w, " %s %s\n", output.StyleLabel.Render("Meaningful"),
		output.ShareBar(share(k.MeaningfulEvents, k.TotalEvents), 20, true))

	if len(s.TopTools) > 0 {
		fmt.Fprintln(w)
		tbl := output.NewTable("Tool", "Events", "Active", "Sessions").AlignRight(1, 2, 3)
		for _, t := range s.TopTools {
			tbl.AddRow(taxonomy.LabelTool(t.Tool), fmt.Sprint(t.Events), fmt.Sprint(t.ActiveEventCount), fmt.Sprint(t.SessionCount))
		}
		fmt.Fprint(w, tbl.Render())
	}

	if len(s.TopActions) > 0 {
		fmt.Fprintln(w)
		top := s.TopActions[0].Count
		tbl := output.NewTable("Action", "Count", "").AlignRight(1)
		for _, a := range s.TopActions {
			tbl.AddRow(taxonomy.ActionMeta(a.Action).Label, fmt.Sprint(a.Count), output.CountBar(a.Count, top, 20))
		}
		fmt.Fprint(w, tbl.Render())
	}
}

func renderToolUsage(w io.Writer, res *dashboard.ToolUsageResponse) {
	fmt.Fprintln(w, output.Section("Tool Usage"))
	fmt.Fprintln(w, windowLine(res.Window))
	fmt.Fprintln(w)
	if len(res.Tools) == 0 {
		fmt.Fprintln(w, output.StyleMuted.Render(" No events in this window."))
		return
	}
	tbl := output.NewTable("Tool", "Events", "Active", "Passive", "Clicks", "Sessions", "Users", "Time").AlignRight(1, 2, 3, 4, 5, 6, 7)
	for _, t := range res.Tools {
		tbl.AddRow(
			taxonomy.LabelTool(t.Tool),
			fmt.Sprint(t.EventCount),
			fmt.Sprint(t.ActiveEventCount),
			fmt.Sprint(t.PassiveEventCount),
			fmt.Sprint(t.ClickCount),
			fmt.Sprint(t.SessionCount),
			fmt.Sprintf("%d (%d signed in)", t.UserCount, t.AuthenticatedUserCount),
			formatDuration(int64(t.TimeSpentMs)),
		)
	}
	fmt.Fprint(w, tbl.Render())
}

func renderSessions(w io.Writer, res *dashboard.SessionsResponse) {
	fmt.Fprintln(w, output.Section("Sessions"))
	fmt.Fprintln(w, windowLine(res.Window))
	fmt.Fprintln(w)
	if len(res.Sessions) == 0 {
		fmt.Fprintln(w, output.StyleMuted.Render(" No sessions in this window."))
		return
	}
	tbl := output.NewTable("Session", "Last Seen", "Duration", "Events", "Active", "User", "Tools").AlignRight(2, 3, 4)
	for _, s := range res.Sessions {
		tools := make([]string, len(s.Tools))
		for i, t := range s.Tools {
			tools[i] = taxonomy.LabelTool(t)
		}
		tbl.AddRow(
			shortID(s.SessionID),
			s.EndedAt.Local().Format("Jan 02 15:04"),
			formatDuration(s.DurationMs),
			fmt.Sprint(s.EventCount),
			fmt.Sprint(s.ActiveEventCount),
			s.User.Identity(),
			strings.Join(tools, ", "),
		)
	}
	fmt.Fprint(w, tbl.Render())
}

func renderEvents(w io.Writer, res *dashboard.RecentEventsResponse) {
	fmt.Fprintln(w, output.Section("Recent Events"))
	fmt.Fprintln(w, windowLine(res.Window))
	fmt.Fprintln(w)
	if len(res.Events) == 0 {
		fmt.Fprintln(w, output.StyleMuted.Render(" No events in this window."))
		return
	}
	tbl := output.NewTable("Time", "Tool", "Event", "Action", "Category", "Session")
	for _, e := range res.Events {
		action := e.ActionMeta.Label
		if e.Passive {
			action = output.StyleMuted.Render(action)
		}
		tbl.AddRow(
			e.EventAt.Local().Format("Jan 02 15:04:05"),
			taxonomy.LabelTool(e.Tool),
			e.EventType,
			action,
			e.ActionMeta.Category,
			shortID(e.SessionID),
		)
	}
	fmt.Fprint(w, tbl.Render())
}

func renderFeatures(w io.Writer, res *dashboard.FeaturesResponse) {
	k := res.KPIs
	fmt.Fprintln(w, output.Section("Features"))
	fmt.Fprintln(w, windowLine(res.Window))
	fmt.Fprintln(w)
	fmt.Fprintln(w, output.KV("Palette exports", k.PaletteExportEvents))
	if k.TopPaletteExport != nil {
		fmt.Fprintln(w, output.KV("Top palette", fmt.Sprintf("%s (%d)", k.TopPaletteExport.Palette, k.TopPaletteExport.Count)))
	}
	fmt.Fprintln(w, output.KV("Favorites added", k.FavoriteAdds))
	fmt.Fprintln(w, output.KV("Favorites removed", k.FavoriteRemoves))
	if k.TopFavoritedTool != nil {
		fmt.Fprintln(w, output.KV("Top favorite", fmt.Sprintf("%s (%d)", taxonomy.LabelTool(k.TopFavoritedTool.Tool), k.TopFavoritedTool.Count)))
	}
	fmt.Fprintln(w, output.KV("Collapsed time", formatDuration(int64(k.CollapsedModeMs))))
	fmt.Fprintln(w, output.KV("Expanded time", formatDuration(int64(k.ExpandedModeMs))))
	fmt.Fprintln(w, output.KV("PDF export runs", k.ExportRuns))
	fmt.Fprintln(w, output.KV("With password", k.PasswordEnabledRuns))
	fmt.Fprintln(w, output.KV("Merged PDFs", k.MergedPDFGroups))
	fmt.Fprintln(w, output.KV("Avg pages/merge", fmt.Sprintf("%.1f", k.AvgPagesPerMerge)))

	renderBuckets(w, "Import sizes", res.ImportSizeBuckets)
	renderBuckets(w, "Export sizes", res.ExportSizeBuckets)
}

func renderBuckets(w io.Writer, title string, buckets []analyzer.BucketCount) {
	top := 0
	for _, b := range buckets {
		top = max(top, b.Count)
	}
	if top == 0 {
		return
	}
	fmt.Fprintln(w)
	tbl := output.NewTable(title, "Count", "").AlignRight(1)
	for _, b := range buckets {
		tbl.AddRow(b.Bucket, fmt.Sprint(b.Count), output.CountBar(b.Count, top, 20))
	}
	fmt.Fprint(w, tbl.Render())
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	if id == "" {
		return "-"
	}
	return id
}
