// Package server exposes ingestion and the dashboard queries over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"go.uber.org/zap"

	"github.com/blackwell-systems/pluginwatch/internal/config"
	"github.com/blackwell-systems/pluginwatch/internal/dashboard"
	"github.com/blackwell-systems/pluginwatch/internal/logger"
	"github.com/blackwell-systems/pluginwatch/internal/metrics"
	"github.com/blackwell-systems/pluginwatch/internal/store"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "plugin-data-dashboard"

// APIPrefix is the root of the analytics routes.
const APIPrefix = "/api/plugin-analytics"

// Header names for the ingest token.
const (
	HeaderIngestToken      = "X-Plugin-Ingest-Token"
	HeaderIngestTokenAlias = "X-Ingest-Token"
)

// Provider is the lazily opened event store.
type Provider interface {
	Get(ctx context.Context) (*store.DB, error)
	Initialized() bool
}

// Deps are the collaborators a Server needs. Metrics and Logger are
// optional.
type Deps struct {
	Provider Provider
	Service  *dashboard.Service
	Metrics  *metrics.Metrics
	Logger   *logger.Logger
}

// Server is the pluginwatch HTTP surface.
type Server struct {
	cfg        config.Config
	provider   Provider
	svc        *dashboard.Service
	metrics    *metrics.Metrics
	log        *logger.Logger
	echo       *echo.Echo
	httpServer *http.Server
}

// New wires routes and middleware.
func New(cfg config.Config, deps Deps) *Server {
	s := &Server{
		cfg:      cfg,
		provider: deps.Provider,
		svc:      deps.Service,
		metrics:  deps.Metrics,
		log:      deps.Logger,
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.svc == nil {
		s.svc = dashboard.New(deps.Provider, dashboard.WithLogger(s.log), dashboard.WithRecorder(s.metrics))
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	e := echo.New()

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.cfg.Server.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			"Content-Type", "Content-Encoding", "Authorization", "If-None-Match",
			HeaderIngestToken, HeaderIngestTokenAlias,
		},
		ExposeHeaders: []string{"ETag"},
	}))

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	api := e.Group(APIPrefix, s.initGate)

	// Ingest is never behind the read gate.
	api.POST("/ingest", s.handleIngest, s.ingestGate)

	read := s.readGate
	api.GET("/summary", s.query("summary", "Failed to load summary", s.summary), read)
	api.GET("/tool-usage", s.query("tool-usage", "Failed to load tool usage", s.toolUsage), read)
	api.GET("/heatmap", s.query("heatmap", "Failed to load heatmap", s.heatmap), read)
	api.GET("/sessions", s.query("sessions", "Failed to load sessions", s.sessions), read)
	api.GET("/recent-events", s.query("recent-events", "Failed to load recent events", s.recentEvents), read)
	api.GET("/action-catalog", s.query("action-catalog", "Failed to load action catalog", s.actionCatalog), read)
	api.GET("/event-types", s.query("event-types", "Failed to load event types", s.eventTypes), read)
	api.GET("/features", s.query("features", "Failed to load features", s.features), read)
	api.GET("/dashboard", s.query("dashboard", "Failed to load dashboard", s.dashboard), read)

	if dir := s.cfg.Server.StaticDir; dir != "" {
		e.GET("/*", s.staticHandler(dir), read)
	}

	s.echo = e
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run listens on the configured address until ctx is done, then shuts
// down gracefully within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting",
			zap.String("addr", s.httpServer.Addr),
			zap.Bool("read_gate", s.cfg.Auth.ReadGateEnabled()),
			zap.Bool("ingest_token", s.cfg.Auth.IngestToken != ""))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultServer.ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.log.Info("server stopping")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"ok":          true,
		"service":     ServiceName,
		"initialized": s.provider.Initialized(),
	})
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
