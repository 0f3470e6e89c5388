package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v5"
	"go.uber.org/zap"

	"github.com/blackwell-systems/pluginwatch/internal/event"
)

const initDetailLimit = 320

// initGate opens the store before any analytics route runs. A failed
// open is not remembered, so the next request tries again.
func (s *Server) initGate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		if _, err := s.provider.Get(c.Request().Context()); err != nil {
			s.log.Error("database initialization failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error":  "Database initialization failed",
				"detail": event.Truncate(err.Error(), initDetailLimit),
			})
		}
		return next(c)
	}
}

// ingestGate checks the ingest token. With no token configured it is open;
// a wrong token only fails the request when the token is required.
func (s *Server) ingestGate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		want := s.cfg.Auth.IngestToken
		if want == "" {
			return next(c)
		}
		got := c.Request().Header.Get(HeaderIngestToken)
		if got == "" {
			got = c.Request().Header.Get(HeaderIngestTokenAlias)
		}
		if secureEqual(got, want) {
			return next(c)
		}
		if s.cfg.Auth.IngestTokenRequired {
			s.metrics.ObserveIngest(http.StatusUnauthorized, 0, 0)
			return c.JSON(http.StatusUnauthorized, errorBody("Invalid ingest token"))
		}
		s.log.Debug("ingest token mismatch tolerated", zap.String("remote", c.Request().RemoteAddr))
		return next(c)
	}
}

// readGate enforces HTTP Basic auth on dashboard reads when both
// credentials are configured.
func (s *Server) readGate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		if !s.cfg.Auth.ReadGateEnabled() {
			return next(c)
		}
		user, pass, ok := c.Request().BasicAuth()
		if !ok {
			c.Response().Header().Set("WWW-Authenticate", `Basic realm="Plugin Dashboard"`)
			return c.JSON(http.StatusUnauthorized, errorBody("Authentication required"))
		}
		userOK := secureEqual(user, s.cfg.Auth.BasicUser)
		passOK := secureEqual(pass, s.cfg.Auth.BasicPass)
		if !userOK || !passOK {
			return c.JSON(http.StatusForbidden, errorBody("Invalid credentials"))
		}
		return next(c)
	}
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
