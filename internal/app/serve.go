package app

import (
	"context"
	"fmt"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackwell-systems/pluginwatch/internal/config"
	"github.com/blackwell-systems/pluginwatch/internal/dashboard"
	"github.com/blackwell-systems/pluginwatch/internal/logger"
	"github.com/blackwell-systems/pluginwatch/internal/metrics"
	"github.com/blackwell-systems/pluginwatch/internal/server"
	"github.com/blackwell-systems/pluginwatch/internal/store"
)

var (
	servePort      int
	serveStaticDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingest and dashboard HTTP service",
	Long: `Start the HTTP service. Plugin runtimes POST event batches to
/api/plugin-analytics/ingest and the dashboard reads the aggregate routes
under the same prefix. The event store opens on the first request.

Examples:
  pluginwatch serve                          # listen on the configured port (default 4080)
  pluginwatch serve --port 8080
  pluginwatch serve --static ./dashboard     # also serve the dashboard build`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides server.port)")
	serveCmd.Flags().StringVar(&serveStaticDir, "static", "", "Directory of dashboard static files (overrides server.static_dir)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveStaticDir != "" {
		cfg.Server.StaticDir = serveStaticDir
	}

	lc := logger.FromConfig(cfg.Log)
	if flagVerbose {
		lc.Level = "debug"
	}
	log, err := logger.New(lc)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = log.Close() }()

	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
	defer stop()

	provider := store.NewProvider(store.FileOpener(cfg.Store.Path))
	defer func() { _ = provider.Close() }()

	m := metrics.New()
	opts := []dashboard.Option{
		dashboard.WithLogger(log.Named("dashboard")),
		dashboard.WithRecorder(m),
	}
	if cache := openCache(ctx, cfg.Cache, log); cache != nil {
		defer func() { _ = cache.Close() }()
		opts = append(opts, dashboard.WithCache(cache, cfg.Cache.TTL))
	}

	srv := server.New(*cfg, server.Deps{
		Provider: provider,
		Service:  dashboard.New(provider, opts...),
		Metrics:  m,
		Logger:   log.Named("server"),
	})
	return srv.Run(ctx)
}

// openCache connects the redis response cache when configured. A cache
// that cannot be reached is logged and skipped.
func openCache(ctx context.Context, cfg config.Cache, log *logger.Logger) *dashboard.RedisCache {
	if !cfg.Enabled() {
		return nil
	}
	cache, err := dashboard.NewRedisCache(ctx, cfg)
	if err != nil {
		log.Warn("response cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		return nil
	}
	log.Info("response cache enabled", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.TTL))
	return cache
}
