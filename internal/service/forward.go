package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"api-gateway-go/internal/model"
)

// Forward relays req to its backend. The embedded query string of req.Path is
// merged into the query parameters and the JSON body is only sent for POST,
// PUT and PATCH.
func (g *Gateway) Forward(ctx context.Context, req *model.IncomingRequest) (*model.ProxiedResponse, error) {
	endpoint, err := g.resolver.Resolve(req.Service)
	if err != nil {
		return nil, err
	}

	cleanPath, params := MergeQuery(req.Path, req.Query)
	header := FilterHeaders(req.Header)

	var body io.Reader = http.NoBody
	if CarriesBody(req.Method) && req.Body != nil {
		body = bytes.NewReader(req.Body)
		header.Set("Content-Type", "application/json")
	}

	target := targetURL(endpoint, cleanPath, params)

	g.logger.Debug("forwarding request",
		"service", req.Service,
		"method", req.Method,
		"path", cleanPath,
	)

	resp, err := g.client.Do(ctx, req.Method, target, header, body)
	if err != nil {
		return nil, fmt.Errorf("forward to %s: %w", req.Service, err)
	}
	return resp, nil
}

// targetURL joins endpoint and path and encodes params as the query.
func targetURL(endpoint *url.URL, path string, params url.Values) string {
	u := *endpoint
	u.Path = endpointPath(endpoint, path)
	u.RawPath = ""
	u.RawQuery = params.Encode()
	return u.String()
}
