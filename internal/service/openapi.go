package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"api-gateway-go/internal/model"
)

// errNotObject is returned for OpenAPI documents that decode to anything but an object.
var errNotObject = errors.New("openapi document is not a JSON object")

type openAPIServer struct {
	URL string `json:"url"`
}

// FetchOpenAPI fetches a backend's OpenAPI document and rewrites its servers
// to the gateway prefix. A transport failure or an undecodable document is
// answered with a 502 error envelope rather than an error; only an invalid
// service name is returned as an error.
func (g *Gateway) FetchOpenAPI(ctx context.Context, service string) (*model.ProxiedResponse, error) {
	endpoint, err := g.resolver.Resolve(service)
	if err != nil {
		return nil, err
	}

	u := *endpoint
	u.Path = endpointPath(endpoint, OpenAPIPath)
	u.RawPath = ""

	resp, err := g.client.Get(ctx, u.String())
	if err != nil {
		g.logger.Warn("openapi fetch failed", "service", service, "err", err)
		g.countRewrite("unreachable")
		return openAPIFailure(service, err), nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.countRewrite("upstream_status")
		return resp, nil
	}

	doc, err := RewriteServers(resp.Body, service)
	if err != nil {
		g.logger.Warn("openapi document rejected", "service", service, "err", err)
		g.countRewrite("invalid_document")
		return openAPIFailure(service, err), nil
	}

	g.countRewrite("ok")
	return &model.ProxiedResponse{
		StatusCode:  resp.StatusCode,
		ContentType: "application/json",
		Body:        doc,
	}, nil
}

// RewriteServers overwrites the top-level servers field of doc with a single
// entry for /{service}, appending it when absent. Every other top-level member
// is kept as sent, in the document's own order.
func RewriteServers(doc []byte, service string) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode openapi document: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}

	servers, err := json.Marshal([]openAPIServer{{URL: "/" + service}})
	if err != nil {
		return nil, fmt.Errorf("encode servers: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	replaced := false
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode openapi document: %w", err)
		}
		key, _ := tok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("decode openapi document: %w", err)
		}
		if key == "servers" {
			if replaced {
				// Duplicate member; the first occurrence already carries the rewrite.
				continue
			}
			value, replaced = servers, true
		}
		if err := writeMember(&buf, key, value); err != nil {
			return nil, err
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode openapi document: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("decode openapi document: trailing data after object")
	}

	if !replaced {
		if err := writeMember(&buf, "servers", servers); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeMember appends "key":value to an object being built in buf.
func writeMember(buf *bytes.Buffer, key string, value json.RawMessage) error {
	if buf.Len() > 1 {
		buf.WriteByte(',')
	}
	var k bytes.Buffer
	enc := json.NewEncoder(&k)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(key); err != nil {
		return fmt.Errorf("encode openapi key: %w", err)
	}
	buf.Write(bytes.TrimSuffix(k.Bytes(), []byte("\n")))
	buf.WriteByte(':')
	buf.Write(value)
	return nil
}

func openAPIFailure(service string, err error) *model.ProxiedResponse {
	body, _ := json.Marshal(model.ErrorEnvelope{
		Error: fmt.Sprintf("Failed to fetch OpenAPI for %s: %s", service, errorDetail(err)),
	})
	return &model.ProxiedResponse{
		StatusCode:  http.StatusBadGateway,
		ContentType: "application/json",
		Body:        body,
	}
}

// errorDetail drops the method and URL that *url.Error prefixes to transport failures.
func errorDetail(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}
	return err.Error()
}

func (g *Gateway) countRewrite(result string) {
	if g.metrics != nil {
		g.metrics.OpenAPIRewrites.WithLabelValues(result).Inc()
	}
}
