package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const requestIDHeader = "X-Request-ID"

// quietPaths are endpoints hit on a tight loop by probes and scrapers.
// Their successes are logged once until they fail; failures always log.
var quietPaths = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
	"/metrics": {},
}

// RequestLog returns Echo middleware that logs requests with structured
// fields. It generates a request ID if none is provided and propagates
// it through the response header and echo context. Repeated successes
// on probe paths are suppressed; probe failures log at warn.
func RequestLog(log *slog.Logger) echo.MiddlewareFunc {
	var mu sync.Mutex
	successLogged := make(map[string]bool)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			reqID := c.Request().Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}

			c.Set("request_id", reqID)
			c.Response().Header().Set(requestIDHeader, reqID)

			err := next(c)

			path := c.Request().URL.Path
			status := c.Response().Status
			fields := []any{
				"method", c.Request().Method,
				"path", path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", reqID,
			}

			if _, quiet := quietPaths[path]; !quiet {
				log.Info("request", fields...)
				return err
			}

			if status >= 200 && status < 300 {
				mu.Lock()
				already := successLogged[path]
				successLogged[path] = true
				mu.Unlock()

				if !already {
					log.Info("request", fields...)
				}
				return err
			}

			// A failure resets suppression so the next recovery shows up.
			mu.Lock()
			successLogged[path] = false
			mu.Unlock()

			log.Warn("request", fields...)
			return err
		}
	}
}
