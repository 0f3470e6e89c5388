package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pluginwatch/internal/config"
	"github.com/blackwell-systems/pluginwatch/internal/dashboard"
	"github.com/blackwell-systems/pluginwatch/internal/output"
	"github.com/blackwell-systems/pluginwatch/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, store and cache",
	Long: `Run a series of health checks against the pluginwatch configuration,
the SQLite event store and the optional redis cache. Prints a pass/fail line
for each check and a summary of how many checks passed.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// doctorCheck is one line of the doctor report.
type doctorCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

func pass(name, format string, args ...any) doctorCheck {
	return doctorCheck{Name: name, Passed: true, Message: fmt.Sprintf(format, args...)}
}

func fail(name, format string, args ...any) doctorCheck {
	return doctorCheck{Name: name, Passed: false, Message: fmt.Sprintf(format, args...)}
}

type doctorOutput struct {
	Checks      []doctorCheck `json:"checks"`
	PassedCount int           `json:"passed"`
	TotalCount  int           `json:"total"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	checks := []doctorCheck{checkConfig(cfg)}
	checks = append(checks, checkStore(ctx, cfg.Store.Path, time.Now())...)
	checks = append(checks,
		checkStaticDir(cfg.Server.StaticDir),
		checkCache(ctx, cfg.Cache),
		checkIngestAuth(cfg.Auth),
		checkWatchDaemon(defaultDaemonFiles()),
	)

	report := doctorOutput{Checks: checks, TotalCount: len(checks)}
	for _, c := range checks {
		if c.Passed {
			report.PassedCount++
		}
	}
	if flagJSON {
		return writeJSON(os.Stdout, report)
	}
	renderDoctor(os.Stdout, report)
	return nil
}

func renderDoctor(w io.Writer, r doctorOutput) {
	fmt.Fprintln(w, output.Section("Doctor"))
	fmt.Fprintln(w)
	for _, c := range r.Checks {
		mark := output.StyleSuccess.Render("✓")
		if !c.Passed {
			mark = output.StyleWarning.Render("✗")
		}
		fmt.Fprintf(w, "  %s  %-24s %s\n", mark, c.Name, output.StyleMuted.Render(c.Message))
	}
	summary := fmt.Sprintf("%d/%d checks passed", r.PassedCount, r.TotalCount)
	style := output.StyleSuccess
	if r.PassedCount < r.TotalCount {
		style = output.StyleWarning
	}
	fmt.Fprintf(w, "\n %s\n\n", style.Render(summary))
}

func checkConfig(cfg *config.Config) doctorCheck {
	if err := cfg.Validate(); err != nil {
		return fail("Configuration", "%v", err)
	}
	if w := cfg.Warnings(); len(w) > 0 {
		return fail("Configuration", "%s", strings.Join(w, "; "))
	}
	return pass("Configuration", "listening on %s", cfg.Server.Addr())
}

// checkStore opens the event store, which also migrates it, and reports
// its size and how fresh the newest event is relative to now.
func checkStore(ctx context.Context, path string, now time.Time) []doctorCheck {
	db, err := store.Open(path)
	if err != nil {
		return []doctorCheck{fail("Event store", "cannot open %s: %v", path, err)}
	}
	defer func() { _ = db.Close() }()

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return []doctorCheck{fail("Event store", "reading schema: %v", err)}
	}
	n, err := db.CountEvents(ctx, store.Filter{To: now.AddDate(100, 0, 0)})
	if err != nil {
		return []doctorCheck{fail("Event store", "query failed: %v", err)}
	}
	checks := []doctorCheck{pass("Event store", "%s (schema v%d, %d events)", path, version, n)}

	latest, err := db.LatestEventAt(ctx)
	switch {
	case err != nil:
		checks = append(checks, fail("Latest event", "%v", err))
	case latest.IsZero():
		checks = append(checks, fail("Latest event", "no events ingested yet"))
	default:
		age := now.Sub(latest).Round(time.Second)
		c := pass("Latest event", "%s (%s ago)", latest.Local().Format("2006-01-02 15:04:05"), age)
		c.Passed = age < dashboard.DefaultRange
		checks = append(checks, c)
	}
	return checks
}

// checkStaticDir verifies the dashboard build has an index.html when a
// static directory is configured.
func checkStaticDir(dir string) doctorCheck {
	if dir == "" {
		return pass("Static files", "not configured (API only)")
	}
	if _, err := os.Stat(filepath.Join(dir, "index.html")); err != nil {
		return fail("Static files", "no index.html in %s", dir)
	}
	return pass("Static files", "%s", dir)
}

func checkCache(ctx context.Context, cfg config.Cache) doctorCheck {
	if !cfg.Enabled() {
		return pass("Response cache", "not configured")
	}
	cache, err := dashboard.NewRedisCache(ctx, cfg)
	if err != nil {
		return fail("Response cache", "%v", err)
	}
	defer func() { _ = cache.Close() }()
	return pass("Response cache", "redis at %s (ttl %s)", cfg.RedisAddr, cfg.TTL)
}

func checkIngestAuth(a config.Auth) doctorCheck {
	switch {
	case a.IngestToken == "":
		return pass("Ingest token", "not configured (ingest is open)")
	case a.IngestTokenRequired:
		return pass("Ingest token", "required")
	default:
		return pass("Ingest token", "configured, mismatches are only logged")
	}
}

// checkWatchDaemon reports whether a watch daemon is alive. Not running is
// informational, so it passes.
func checkWatchDaemon(files daemonFiles) doctorCheck {
	pid, err := files.readPID()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return pass("Watch daemon", "not running")
	case err != nil:
		return fail("Watch daemon", "%v", err)
	case !processAlive(pid):
		return fail("Watch daemon", "PID %d is not running (stale PID file %s)", pid, files.pidPath())
	default:
		return pass("Watch daemon", "running (PID %d)", pid)
	}
}
