package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"api-gateway-go/internal/config"
	"api-gateway-go/internal/metrics"
)

// proxiedMethods are the methods forwarded by the /:service/* catch-all.
var proxiedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// RegisterRoutes wires all route handlers onto the Echo instance.
// Static routes win over the catch-all, so a backend cannot be named
// health-check or status.
func RegisterRoutes(e *echo.Echo, gw *GatewayHandler, health *HealthHandler) {
	e.GET("/health-check", health.HealthCheck)
	e.GET("/status", health.Status)

	e.GET("/:service/openapi.json", gw.OpenAPI)
	for _, method := range proxiedMethods {
		e.Add(method, "/:service/*", gw.Handle)
	}
}

// RegisterMetrics exposes the registry on cfg.Metrics.Path when metrics are enabled.
func RegisterMetrics(e *echo.Echo, cfg *config.Config, m *metrics.Metrics) {
	if !cfg.Metrics.Enabled {
		return
	}
	h := promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
	e.GET(cfg.Metrics.Path, echo.WrapHandler(h))
}
