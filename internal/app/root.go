// Package app contains the Cobra command tree for pluginwatch.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/pluginwatch/internal/config"
	"github.com/blackwell-systems/pluginwatch/internal/dashboard"
	"github.com/blackwell-systems/pluginwatch/internal/logger"
	"github.com/blackwell-systems/pluginwatch/internal/output"
	"github.com/blackwell-systems/pluginwatch/internal/store"
)

var appVersion = "dev"

// SetVersion sets the application version (called from main with ldflags value).
func SetVersion(v string) {
	appVersion = v
	rootCmd.Version = v
}

var (
	flagNoColor bool
	flagJSON    bool
	flagVerbose bool
	flagConfig  string
)

var rootCmd = &cobra.Command{
	Use:   "pluginwatch",
	Short: "Telemetry ingestion and analytics for the design-tool plugin",
	Long: `pluginwatch collects usage events posted by the plugin runtimes, stores
them in a local SQLite event store, and serves the aggregate queries behind
the analytics dashboard.

Run 'pluginwatch serve' to start the HTTP service, or use the query
subcommands to read the same aggregates from the terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		output.AutoColor(os.Stdout, flagNoColor)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("pluginwatch", appVersion)
		fmt.Println()
		fmt.Println("Use a subcommand:")
		fmt.Println("  serve     Run the ingest and dashboard HTTP service")
		fmt.Println("  ingest    Store an event envelope from a file or stdin")
		fmt.Println("  summary   Headline KPIs for a date window")
		fmt.Println("  tools     Per-tool usage breakdown")
		fmt.Println("  sessions  Recent plugin sessions")
		fmt.Println("  events    Latest events with resolved actions")
		fmt.Println("  features  Feature analytics")
		fmt.Println("  track     Snapshot and compare KPIs over time")
		fmt.Println("  watch     Poll the event store and alert on changes")
		fmt.Println("  mcp       Serve the queries as MCP tools over stdio")
		fmt.Println("  doctor    Check configuration, store and cache")
		return nil
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/pluginwatch/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable verbose output")
}

// loadConfig loads and validates the configuration named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// commandLogger is quiet unless --verbose is set, so command output on
// stdout is not interleaved with log lines.
func commandLogger(cfg *config.Config) (*logger.Logger, error) {
	if !flagVerbose {
		return logger.Nop(), nil
	}
	lc := logger.FromConfig(cfg.Log)
	lc.Level = "debug"
	return logger.New(lc)
}

// localService is a dashboard service over the configured event store.
type localService struct {
	*dashboard.Service
	provider *store.Provider
	log      *logger.Logger
}

func (l *localService) Close() error {
	err := l.provider.Close()
	_ = l.log.Close()
	return err
}

// openService wires a dashboard service for CLI use. The store opens
// lazily on the first query.
func openService(cfg *config.Config) (*localService, error) {
	log, err := commandLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	p := store.NewProvider(store.FileOpener(cfg.Store.Path))
	return &localService{
		Service:  dashboard.New(p, dashboard.WithLogger(log)),
		provider: p,
		log:      log,
	}, nil
}

// openStore opens the configured store directly, for commands that write
// snapshots.
func openStore(ctx context.Context, svc *localService) (*store.DB, error) {
	db, err := svc.provider.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening event store: %w", err)
	}
	return db, nil
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
