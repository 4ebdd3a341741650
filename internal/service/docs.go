package service

import (
	"bytes"
	"context"
	"fmt"

	"api-gateway-go/internal/model"
)

const htmlContentType = "text/html; charset=utf-8"

// FetchDocs fetches a backend's Swagger UI or ReDoc page and points every
// /openapi.json reference in it back through the gateway.
func (g *Gateway) FetchDocs(ctx context.Context, service, page string) (*model.ProxiedResponse, error) {
	endpoint, err := g.resolver.Resolve(service)
	if err != nil {
		return nil, err
	}

	openAPIURL := gatewayOpenAPIURL(service)

	u := *endpoint
	u.Path = endpointPath(endpoint, page)
	u.RawPath = ""
	u.RawQuery = "url=" + openAPIURL

	resp, err := g.client.Get(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("fetch %s for %s: %w", page, service, err)
	}

	return &model.ProxiedResponse{
		StatusCode:  resp.StatusCode,
		ContentType: htmlContentType,
		Body:        RewriteDocsHTML(resp.Body, service),
	}, nil
}

// RewriteDocsHTML replaces every literal /openapi.json in html with the
// gateway-prefixed /{service}/openapi.json. The HTML is not parsed.
func RewriteDocsHTML(html []byte, service string) []byte {
	return bytes.ReplaceAll(html, []byte("/"+OpenAPIPath), []byte(gatewayOpenAPIURL(service)))
}

func gatewayOpenAPIURL(service string) string {
	return "/" + service + "/" + OpenAPIPath
}
