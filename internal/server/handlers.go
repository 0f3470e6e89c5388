package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v5"
	"go.uber.org/zap"

	"github.com/blackwell-systems/pluginwatch/internal/dashboard"
	"github.com/blackwell-systems/pluginwatch/internal/event"
)

// queryFunc computes one read endpoint's response.
type queryFunc func(ctx context.Context, q dashboard.Query, values url.Values) (any, error)

// query adapts a queryFunc into a cached, fingerprinted JSON handler.
// Failures are logged and answered with failure as the error message.
func (s *Server) query(route, failure string, run queryFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		values := c.Request().URL.Query()
		q := dashboard.ParseQuery(values, s.svc.Now())

		rendered, err := s.svc.Render(c.Request().Context(), dashboard.CacheKey(route, values),
			func(ctx context.Context) (any, error) { return run(ctx, q, values) })
		if err != nil {
			s.log.Error(strings.ToLower(failure),
				zap.String("route", route),
				zap.String("query", values.Encode()),
				zap.Error(err))
			return c.JSON(http.StatusInternalServerError, errorBody(failure))
		}

		etag := `"` + rendered.Fingerprint + `"`
		h := c.Response().Header()
		h.Set("ETag", etag)
		h.Set("Cache-Control", "no-cache")
		if match := c.Request().Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
			return c.NoContent(http.StatusNotModified)
		}
		return c.Blob(http.StatusOK, "application/json", rendered.Body)
	}
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

func (s *Server) summary(ctx context.Context, q dashboard.Query, _ url.Values) (any, error) {
	return s.svc.Summary(ctx, q)
}

func (s *Server) toolUsage(ctx context.Context, q dashboard.Query, _ url.Values) (any, error) {
	return s.svc.ToolUsage(ctx, q)
}

func (s *Server) heatmap(ctx context.Context, q dashboard.Query, values url.Values) (any, error) {
	opts := dashboard.HeatmapParams(values, "compact", "limit", "gridX", "gridY", false)
	return s.svc.Heatmap(ctx, q, opts)
}

func (s *Server) sessions(ctx context.Context, q dashboard.Query, values url.Values) (any, error) {
	limit := dashboard.ParseLimit(values.Get("limit"), dashboard.SessionsLimit, dashboard.SessionsMax)
	return s.svc.Sessions(ctx, q, limit)
}

func (s *Server) recentEvents(ctx context.Context, q dashboard.Query, values url.Values) (any, error) {
	limit := dashboard.ParseLimit(values.Get("limit"), dashboard.EventsLimit, dashboard.EventsMax)
	includePassive := dashboard.ParseBool(values.Get("includeSystemEvents"), true)
	return s.svc.RecentEvents(ctx, q, limit, includePassive)
}

func (s *Server) actionCatalog(ctx context.Context, q dashboard.Query, _ url.Values) (any, error) {
	return s.svc.ActionCatalog(ctx, q)
}

func (s *Server) eventTypes(ctx context.Context, q dashboard.Query, _ url.Values) (any, error) {
	return s.svc.EventTypes(ctx, q)
}

func (s *Server) features(ctx context.Context, q dashboard.Query, _ url.Values) (any, error) {
	return s.svc.Features(ctx, q)
}

func (s *Server) dashboard(ctx context.Context, q dashboard.Query, values url.Values) (any, error) {
	return s.svc.Dashboard(ctx, q, dashboard.ParseDashboardOptions(values))
}

func (s *Server) handleIngest(c *echo.Context) error {
	raw, err := decodeIngestBody(c.Request(), s.cfg.Server.BodyLimitBytes)
	if err != nil {
		status, msg := http.StatusBadRequest, "Invalid request body"
		switch {
		case errors.Is(err, errBodyTooLarge):
			status, msg = http.StatusRequestEntityTooLarge, "Request body too large"
		case errors.Is(err, errUnsupportedEncoding):
			status, msg = http.StatusUnsupportedMediaType, "Unsupported content encoding"
		}
		s.log.Debug("rejecting ingest body", zap.Int("status", status), zap.Error(err))
		s.metrics.ObserveIngest(status, 0, 0)
		return c.JSON(status, errorBody(msg))
	}

	res, err := s.svc.Ingest(c.Request().Context(), raw)
	if errors.Is(err, event.ErrNoEvents) {
		s.metrics.ObserveIngest(http.StatusBadRequest, 0, 0)
		return c.JSON(http.StatusBadRequest, errorBody("events[] is required"))
	}
	if err != nil {
		s.log.Error("ingest failed", zap.Int("accepted", res.Accepted), zap.Error(err))
		s.metrics.ObserveIngest(http.StatusInternalServerError, res.Accepted, 0)
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to ingest analytics events"))
	}

	s.metrics.ObserveIngest(http.StatusAccepted, res.Accepted, res.Inserted)
	return c.JSON(http.StatusAccepted, res)
}
