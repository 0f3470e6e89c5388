package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/pluginwatch/internal/analyzer"
	"github.com/blackwell-systems/pluginwatch/internal/dashboard"
	"github.com/blackwell-systems/pluginwatch/internal/event"
	"github.com/blackwell-systems/pluginwatch/internal/store"
)

func TestCommands_Registered(t *testing.T) {
	registered := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range []string{
		"serve", "ingest", "summary", "tools", "sessions", "events",
		"features", "track", "watch", "mcp", "doctor", "init",
	} {
		if !registered[name] {
			t.Errorf("%s subcommand not registered on rootCmd", name)
		}
	}
}

func TestQueryFlags(t *testing.T) {
	for _, name := range []string{"from", "to", "tool", "auth", "action"} {
		if summaryCmd.Flags().Lookup(name) == nil {
			t.Errorf("summary is missing --%s", name)
		}
	}
	if eventsCmd.Flags().Lookup("include-passive") == nil {
		t.Error("events is missing --include-passive")
	}
}

func TestReadEnvelopes(t *testing.T) {
	t.Run("envelope", func(t *testing.T) {
		envs, err := readEnvelopes(strings.NewReader(`{"source":"backfill","events":[{"eventType":"ui_click"}]}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(envs) != 1 {
			t.Fatalf("got %d envelopes, want 1", len(envs))
		}
		if envs[0]["source"] != "backfill" {
			t.Errorf("source = %v, want backfill", envs[0]["source"])
		}
	})

	t.Run("bare array", func(t *testing.T) {
		envs, err := readEnvelopes(strings.NewReader(`[{"eventType":"ui_click"},{"eventType":"tool_opened"}]`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := len(envs[0]["events"].([]any)); got != 2 {
			t.Errorf("got %d events, want 2", got)
		}
	})

	t.Run("chunked", func(t *testing.T) {
		var sb strings.Builder
		sb.WriteString(`{"source":"bulk","events":[`)
		n := 2*event.MaxEventsPerBatch + 5
		for i := 0; i < n; i++ {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, `{"eventType":"ui_click","sessionId":"s%d"}`, i)
		}
		sb.WriteString("]}")

		envs, err := readEnvelopes(strings.NewReader(sb.String()))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(envs) != 3 {
			t.Fatalf("got %d envelopes, want 3", len(envs))
		}
		total := 0
		for _, env := range envs {
			if env["source"] != "bulk" {
				t.Errorf("chunk lost envelope source: %v", env["source"])
			}
			total += len(env["events"].([]any))
		}
		if total != n {
			t.Errorf("got %d events across chunks, want %d", total, n)
		}
		if got := len(envs[2]["events"].([]any)); got != 5 {
			t.Errorf("last chunk has %d events, want 5", got)
		}
	})

	t.Run("errors", func(t *testing.T) {
		if _, err := readEnvelopes(strings.NewReader(`{"events":[]}`)); !errors.Is(err, event.ErrNoEvents) {
			t.Errorf("empty events: got %v, want ErrNoEvents", err)
		}
		if _, err := readEnvelopes(strings.NewReader(`"nope"`)); err == nil {
			t.Error("expected error for a JSON string")
		}
		if _, err := readEnvelopes(strings.NewReader(`{`)); err == nil {
			t.Error("expected error for truncated JSON")
		}
	})
}

func TestBuildKPIs(t *testing.T) {
	kpis := buildKPIs(
		analyzer.SummaryKPIs{TotalEvents: 10, TotalSessions: 2, AvgSessionDurationMs: 90_000},
		analyzer.Insights{MeaningfulEvents: 6, NoiseShare: 0.4},
		analyzer.FeatureKPIs{PaletteExportEvents: 3},
	)
	tests := map[string]float64{
		"total_events":        10,
		"total_sessions":      2,
		"meaningful_events":   6,
		"noise_share_pct":     40,
		"avg_session_minutes": 1.5,
		"palette_exports":     3,
	}
	for name, want := range tests {
		if got := kpis[name]; got != want {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	for name := range kpis {
		if displayIndex(name) == len(metricDisplayOrder) {
			t.Errorf("metric %s missing from display order", name)
		}
	}
}

func TestRecordSnapshot_Diff(t *testing.T) {
	db, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer func() { _ = db.Close() }()

	first, err := recordSnapshot(context.Background(), db, map[string]float64{"total_events": 10, "noise_share_pct": 50})
	if err != nil {
		t.Fatalf("first snapshot: %v", err)
	}
	second, err := recordSnapshot(context.Background(), db, map[string]float64{"total_events": 15, "noise_share_pct": 30})
	if err != nil {
		t.Fatalf("second snapshot: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected distinct snapshot ids")
	}

	prev, err := db.SnapshotN(context.Background(), 2)
	if err != nil || prev == nil {
		t.Fatalf("loading previous snapshot: %v", err)
	}
	diff, err := db.DiffSnapshots(context.Background(), prev, second)
	if err != nil {
		t.Fatalf("diffing: %v", err)
	}

	var buf bytes.Buffer
	renderTrack(&buf, second, diff)
	out := buf.String()
	for _, want := range []string{"Events", "Noise %", "+5.0", "-20.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("track output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Events") > strings.Index(out, "Noise %") {
		t.Error("expected metrics in display order")
	}
}

func TestRenderTrack_FirstSnapshot(t *testing.T) {
	var buf bytes.Buffer
	renderTrack(&buf, &store.Snapshot{ID: 1}, nil)
	if !strings.Contains(buf.String(), "First snapshot recorded") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestHigherIsBetter(t *testing.T) {
	if higherIsBetter("noise_share_pct") {
		t.Error("noise share should improve downward")
	}
	if !higherIsBetter("total_events") || !higherIsBetter("unknown_metric") {
		t.Error("counts and unknown metrics should improve upward")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0s"},
		{45_000, "45s"},
		{125_000, "2m05s"},
		{3_723_000, "1h02m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.ms); got != tt.want {
			t.Errorf("formatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID(""); got != "-" {
		t.Errorf("shortID(\"\") = %q", got)
	}
	if got := shortID("abcdefghijklmnop"); got != "abcdefghijkl" {
		t.Errorf("shortID long = %q", got)
	}
}

func TestRenderToolUsage(t *testing.T) {
	var buf bytes.Buffer
	renderToolUsage(&buf, &dashboard.ToolUsageResponse{})
	if !strings.Contains(buf.String(), "No events in this window") {
		t.Errorf("expected empty notice, got: %s", buf.String())
	}

	buf.Reset()
	renderToolUsage(&buf, &dashboard.ToolUsageResponse{ToolList: dashboard.ToolList{Tools: []analyzer.ToolUsage{
		{Tool: "palettable", EventCount: 7, ActiveEventCount: 5, PassiveEventCount: 2, UserCount: 3, AuthenticatedUserCount: 1},
	}}})
	out := buf.String()
	for _, want := range []string{"Tool Usage", "7", "3 (1 signed in)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDaemonFiles_ClaimAndStale(t *testing.T) {
	files := daemonFiles{dir: t.TempDir()}

	if got := files.running(); got != 0 {
		t.Fatalf("running() with no PID file = %d, want 0", got)
	}

	release, err := files.claim()
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if pid, err := files.readPID(); err != nil || pid != os.Getpid() {
		t.Fatalf("readPID = %d, %v; want %d", pid, err, os.Getpid())
	}
	if _, err := files.claim(); err == nil {
		t.Error("second claim succeeded while this process holds the PID file")
	}
	if c := checkWatchDaemon(files); !c.Passed || !strings.Contains(c.Message, "running") {
		t.Errorf("checkWatchDaemon = %+v", c)
	}

	release()
	if _, err := os.Stat(files.pidPath()); !os.IsNotExist(err) {
		t.Errorf("PID file still present after release: %v", err)
	}
	if c := checkWatchDaemon(files); !c.Passed || c.Message != "not running" {
		t.Errorf("checkWatchDaemon after release = %+v", c)
	}

	// A PID beyond the kernel's range is never alive, so the file is stale.
	if err := os.WriteFile(files.pidPath(), []byte("999999999\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if c := checkWatchDaemon(files); c.Passed {
		t.Errorf("stale PID file reported as running: %+v", c)
	}
	if _, err := files.stop(); err == nil {
		t.Error("stop on a stale PID file should report no daemon")
	}
	if _, err := os.Stat(files.pidPath()); !os.IsNotExist(err) {
		t.Error("stop should remove a stale PID file")
	}
	release, err = files.claim()
	if err != nil {
		t.Fatalf("claim over a removed stale file: %v", err)
	}
	release()
}

func TestCheckStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	checks := checkStore(context.Background(), path, now)
	if len(checks) != 2 {
		t.Fatalf("got %d checks, want 2: %+v", len(checks), checks)
	}
	if !checks[0].Passed || !strings.Contains(checks[0].Message, "0 events") {
		t.Errorf("store check = %+v", checks[0])
	}
	if checks[1].Passed || checks[1].Message != "no events ingested yet" {
		t.Errorf("latest event check = %+v", checks[1])
	}
}

func TestRenderDoctor(t *testing.T) {
	var buf bytes.Buffer
	renderDoctor(&buf, doctorOutput{
		Checks:      []doctorCheck{pass("Event store", "ok"), fail("Static files", "no index.html in %s", "web")},
		PassedCount: 1,
		TotalCount:  2,
	})
	out := buf.String()
	for _, want := range []string{"Event store", "no index.html in web", "1/2 checks passed"} {
		if !strings.Contains(out, want) {
			t.Errorf("doctor output missing %q:\n%s", want, out)
		}
	}
}
