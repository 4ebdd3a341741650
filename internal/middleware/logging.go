// Package middleware provides Echo middleware for logging, metrics, rate
// limiting and security headers.
package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// reservedSegments are first path segments served by the gateway itself.
var reservedSegments = map[string]bool{
	"health-check": true,
	"status":       true,
}

// RequestLogger returns an Echo middleware that logs each request with slog.
// Proxied requests carry the target service name.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// Let Echo write the error response so the logged status is final.
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			attrs := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", res.Header().Get(echo.HeaderXRequestID),
				"remote_ip", c.RealIP(),
				"bytes_out", res.Size,
			}
			if svc := serviceName(req.URL.Path); svc != "" {
				attrs = append(attrs, "service", svc)
			}

			logger.Info("request", attrs...)

			return nil
		}
	}
}

// serviceName returns the first path segment of a proxied request path.
func serviceName(path string) string {
	svc, _, ok := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if !ok || svc == "" || reservedSegments[svc] {
		return ""
	}
	return svc
}
