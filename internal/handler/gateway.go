package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"api-gateway-go/internal/model"
	"api-gateway-go/internal/resolver"
	"api-gateway-go/internal/service"
)

// GatewayHandler turns inbound Echo requests into gateway dispatches.
type GatewayHandler struct {
	gateway *service.Gateway
	logger  *slog.Logger
}

// NewGatewayHandler creates a GatewayHandler.
func NewGatewayHandler(gw *service.Gateway, logger *slog.Logger) *GatewayHandler {
	return &GatewayHandler{
		gateway: gw,
		logger:  logger.With("component", "gateway_handler"),
	}
}

// Handle serves /:service/* for GET, POST, PUT, PATCH and DELETE. The status
// code written is the one the backend returned.
func (h *GatewayHandler) Handle(c echo.Context) error {
	req := c.Request()
	svc, path := splitServicePath(req.URL.Path)

	var raw []byte
	if service.CarriesBody(req.Method) {
		var err error
		raw, err = io.ReadAll(req.Body)
		if err != nil {
			return h.mapError(c, err)
		}
	}
	body, err := service.DecodeBody(req.Method, raw)
	if err != nil {
		return h.mapError(c, err)
	}

	resp, err := h.gateway.Dispatch(req.Context(), &model.IncomingRequest{
		Method:  req.Method,
		Service: svc,
		Path:    path,
		Header:  req.Header,
		Query:   req.URL.Query(),
		Body:    body,
	})
	if err != nil {
		return h.mapError(c, err)
	}
	return writeResponse(c, resp)
}

// OpenAPI serves GET /:service/openapi.json.
func (h *GatewayHandler) OpenAPI(c echo.Context) error {
	svc, _ := splitServicePath(c.Request().URL.Path)

	resp, err := h.gateway.FetchOpenAPI(c.Request().Context(), svc)
	if err != nil {
		return h.mapError(c, err)
	}
	return writeResponse(c, resp)
}

// splitServicePath splits a decoded request path into the service segment and
// the forwarded tail. An encoded "?" in the tail survives as an embedded query.
func splitServicePath(p string) (svc, rest string) {
	svc, rest, _ = strings.Cut(strings.TrimPrefix(p, "/"), "/")
	return svc, rest
}

func writeResponse(c echo.Context, resp *model.ProxiedResponse) error {
	if resp.ContentEncoding != "" {
		c.Response().Header().Set(echo.HeaderContentEncoding, resp.ContentEncoding)
	}
	if resp.Location != "" {
		c.Response().Header().Set(echo.HeaderLocation, resp.Location)
	}
	if !bodyAllowed(resp.StatusCode) {
		return c.NoContent(resp.StatusCode)
	}
	return c.Blob(resp.StatusCode, resp.ContentType, resp.Body)
}

// bodyAllowed reports whether a response with status may carry a body.
func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

func (h *GatewayHandler) mapError(c echo.Context, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		// Body limit and similar middleware errors keep their own status.
		return he
	}

	if errors.Is(err, resolver.ErrInvalidServiceName) {
		return c.JSON(http.StatusNotFound, model.ErrorEnvelope{Error: "unknown service"})
	}

	if errors.Is(err, service.ErrInvalidBody) {
		return c.JSON(http.StatusUnprocessableEntity, model.ErrorEnvelope{Error: err.Error()})
	}

	h.logger.Error("gateway error",
		"err", err,
		"path", c.Request().URL.Path,
	)

	if errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusGatewayTimeout, model.ErrorEnvelope{Error: "upstream request timed out"})
	}

	if errors.Is(err, context.Canceled) {
		return c.JSON(http.StatusBadGateway, model.ErrorEnvelope{Error: "client disconnected"})
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return c.JSON(http.StatusBadGateway, model.ErrorEnvelope{Error: "upstream host unreachable"})
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return c.JSON(http.StatusBadGateway, model.ErrorEnvelope{Error: "upstream connection failed"})
	}

	return c.JSON(http.StatusBadGateway, model.ErrorEnvelope{Error: "upstream request failed"})
}
