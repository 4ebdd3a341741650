package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"api-gateway-go/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// HealthCheck returns a simple OK response for liveness probes.
func (h *HealthHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "API Gateway is running",
	})
}

// Status returns gateway status information.
func (h *HealthHandler) Status(c echo.Context) error {
	upstream := h.cfg.Upstream.StaticURL
	if upstream == "" {
		upstream = h.cfg.Upstream.Scheme + "://{service}" + h.cfg.Upstream.HostSuffix + ":" + strconv.Itoa(h.cfg.Upstream.Port)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":      "ok",
		"version":     string(h.version),
		"title":       h.cfg.App.Title,
		"description": h.cfg.App.Description,
		"app_version": h.cfg.App.Version,
		"upstream":    upstream,
	})
}
