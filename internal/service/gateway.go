// Package service implements request forwarding and documentation rewriting
// for the gateway.
package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"api-gateway-go/internal/client"
	"api-gateway-go/internal/metrics"
	"api-gateway-go/internal/model"
	"api-gateway-go/internal/resolver"
)

// Documentation pages rendered by backends and proxied with rewritten URLs.
const (
	PageDocs    = "docs"
	PageRedoc   = "redoc"
	OpenAPIPath = "openapi.json"
)

// Gateway routes normalized requests to backend services.
type Gateway struct {
	resolver resolver.ServiceResolver
	client   *client.UpstreamClient
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewGateway creates a Gateway. The metrics parameter is optional.
func NewGateway(r resolver.ServiceResolver, c *client.UpstreamClient, m *metrics.Metrics, logger *slog.Logger) *Gateway {
	return &Gateway{
		resolver: r,
		client:   c,
		metrics:  m,
		logger:   logger.With("component", "gateway"),
	}
}

// Dispatch sends req to the documentation rewriters or the forwarder depending
// on its path. Only a GET of openapi.json is rewritten; other methods on that
// path are forwarded like any call. Upstream 4xx and 5xx responses are
// returned, not errors.
func (g *Gateway) Dispatch(ctx context.Context, req *model.IncomingRequest) (*model.ProxiedResponse, error) {
	switch {
	case req.Path == PageDocs, req.Path == PageRedoc:
		return g.FetchDocs(ctx, req.Service, req.Path)
	case req.Path == OpenAPIPath && req.Method == http.MethodGet:
		return g.FetchOpenAPI(ctx, req.Service)
	}
	return g.Forward(ctx, req)
}

// endpointPath appends tail to the endpoint's own path, so a static endpoint
// such as http://dev:9000/api keeps its prefix.
func endpointPath(endpoint *url.URL, tail string) string {
	return strings.TrimSuffix(endpoint.Path, "/") + "/" + strings.TrimPrefix(tail, "/")
}
