package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackwell-systems/pluginwatch/internal/config"
	"github.com/blackwell-systems/pluginwatch/internal/logger"
	"github.com/blackwell-systems/pluginwatch/internal/output"
	"github.com/blackwell-systems/pluginwatch/internal/watcher"
)

var (
	watchDaemon   bool
	watchInterval time.Duration
	watchWindow   time.Duration
	watchStop     bool
	watchQuiet    bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the event store and alert on changes",
	Long: `Poll the dashboard aggregates over a rolling window and raise desktop
notifications and terminal alerts when something notable happens: new tools
or event types show up, passive noise spikes, or ingestion stalls.

--daemon does not fork. Start it under nohup, systemd or similar; it records
its PID so --stop and doctor can find it, and logs alerts as JSON to a
rotated watch.log next to the config file.

Examples:
  pluginwatch watch                    # run in foreground (ctrl-c to stop)
  pluginwatch watch --interval 1m      # check every minute (default: watch.interval)
  pluginwatch watch --window 1h        # compare the last hour instead of 24h
  nohup pluginwatch watch --daemon &   # run in background
  pluginwatch watch --stop             # stop the background daemon`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "Record a PID file and log alerts to watch.log instead of the terminal")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Check interval (default: watch.interval from config)")
	watchCmd.Flags().DurationVar(&watchWindow, "window", watcher.DefaultWindow, "Rolling window the aggregates cover")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "Stop a running background daemon")
	watchCmd.Flags().BoolVar(&watchQuiet, "quiet", false, "Suppress terminal output, only send notifications")
	rootCmd.AddCommand(watchCmd)
}

// daemonFiles locates the watch daemon's PID and log files.
type daemonFiles struct {
	dir string
}

func defaultDaemonFiles() daemonFiles {
	return daemonFiles{dir: config.ConfigDir()}
}

func (d daemonFiles) pidPath() string { return filepath.Join(d.dir, "watch.pid") }
func (d daemonFiles) logPath() string { return filepath.Join(d.dir, "watch.log") }

func (d daemonFiles) readPID() (int, error) {
	data, err := os.ReadFile(d.pidPath())
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file %s: %w", d.pidPath(), err)
	}
	return pid, nil
}

// running returns the PID of a live daemon, or 0.
func (d daemonFiles) running() int {
	pid, err := d.readPID()
	if err != nil || !processAlive(pid) {
		return 0
	}
	return pid
}

// claim records the current process as the daemon. A stale PID file is
// replaced; a live one is an error. release removes the file.
func (d daemonFiles) claim() (release func(), err error) {
	if pid := d.running(); pid != 0 {
		return nil, fmt.Errorf("watch daemon already running (PID %d), use --stop to stop it", pid)
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", d.dir, err)
	}
	if err := os.WriteFile(d.pidPath(), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return nil, fmt.Errorf("writing PID file: %w", err)
	}
	return func() { _ = os.Remove(d.pidPath()) }, nil
}

// stop terminates the recorded daemon and removes its PID file.
func (d daemonFiles) stop() (int, error) {
	pid, err := d.readPID()
	if err != nil {
		return 0, fmt.Errorf("no watch daemon running: %w", err)
	}
	if !processAlive(pid) {
		_ = os.Remove(d.pidPath())
		return pid, fmt.Errorf("no watch daemon running (PID %d is gone, removed stale PID file)", pid)
	}
	if err := terminate(pid); err != nil {
		return pid, fmt.Errorf("stopping watch daemon (PID %d): %w", pid, err)
	}
	_ = os.Remove(d.pidPath())
	return pid, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	files := defaultDaemonFiles()
	if watchStop {
		pid, err := files.stop()
		if err != nil {
			return err
		}
		fmt.Printf("Stopped watch daemon (PID %d)\n", pid)
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	interval := cfg.Watch.Interval
	if watchInterval != 0 {
		interval = watchInterval
	}
	if interval < config.MinWatchInterval {
		return fmt.Errorf("interval must be at least %s, got %s", config.MinWatchInterval, interval)
	}

	svc, err := openService(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	th := watcher.Thresholds{
		NoiseShare:   cfg.Watch.NoiseShareWarning,
		StallPeriods: cfg.Watch.IngestStallPeriods,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
	defer stop()

	if watchDaemon {
		return runDaemon(ctx, cfg, files, svc, interval, th)
	}
	return runForeground(ctx, svc, interval, th)
}

func runForeground(ctx context.Context, src watcher.Source, interval time.Duration, th watcher.Thresholds) error {
	w := watcher.New(src, interval, th, func(a watcher.Alert) {
		_ = watcher.Notify(a)
		if !watchQuiet {
			printAlert(os.Stdout, a)
		}
	})
	w.SetWindow(watchWindow)

	baseline, err := w.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}
	if !watchQuiet {
		fmt.Printf("Watching every %s over the last %s\n", interval, watchWindow)
		fmt.Printf("[%s] %s baseline: %d events (%d meaningful), %d sessions, %d tools\n",
			time.Now().Format("15:04:05"), output.StyleSuccess.Render("✓"),
			baseline.TotalEvents, baseline.MeaningfulEvents, baseline.SessionCount, len(baseline.ToolEvents))
	}

	if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
		return err
	}
	if !watchQuiet {
		fmt.Println("\nStopped.")
	}
	return nil
}

// runDaemon runs the watcher with alerts going to a rotated JSON log.
func runDaemon(ctx context.Context, cfg *config.Config, files daemonFiles, src watcher.Source, interval time.Duration, th watcher.Thresholds) error {
	release, err := files.claim()
	if err != nil {
		return err
	}
	defer release()

	lc := logger.FromConfig(cfg.Log)
	lc.OutputPath = files.logPath()
	lc.Console = io.Discard
	log, err := logger.New(lc)
	if err != nil {
		return fmt.Errorf("opening daemon log: %w", err)
	}
	defer func() { _ = log.Close() }()
	log = log.Named("watch")

	log.Info("watch daemon started",
		zap.Int("pid", os.Getpid()), zap.Duration("interval", interval), zap.Duration("window", watchWindow))

	w := watcher.New(src, interval, th, func(a watcher.Alert) {
		_ = watcher.Notify(a)
		log.Info(a.Title, zap.String("level", a.Level), zap.String("message", a.Message))
	})
	w.SetWindow(watchWindow)

	if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
		log.Error("watch daemon failed", zap.Error(err))
		return err
	}
	log.Info("watch daemon stopped")
	return nil
}

func printAlert(w io.Writer, a watcher.Alert) {
	fmt.Fprintf(w, "[%s] %s %s\n", a.Time.Format("15:04:05"), alertIcon(a.Level), a.Title)
	if a.Message != "" {
		fmt.Fprintf(w, "           %s\n", a.Message)
	}
}

func alertIcon(level string) string {
	switch level {
	case watcher.LevelCritical:
		return output.StyleError.Render("✗")
	case watcher.LevelWarning:
		return output.StyleWarning.Render("!")
	case watcher.LevelInfo:
		return output.StyleSuccess.Render("✓")
	default:
		return " "
	}
}
