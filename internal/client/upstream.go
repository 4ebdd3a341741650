// Package client provides the pooled HTTP client used to reach backend services.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"api-gateway-go/internal/config"
	"api-gateway-go/internal/metrics"
	"api-gateway-go/internal/model"
)

// UpstreamClient sends requests to backend services. One instance is shared by
// the whole process; its transport keeps an idle pool per backend host.
type UpstreamClient struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewUpstreamClient creates an UpstreamClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &UpstreamClient{
		// The per-call deadline lives on the request context, see Do.
		httpClient: &http.Client{
			Transport: transport,
			// Redirects are relayed to the caller, not followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: cfg.Upstream.Timeout(),
		logger:  logger.With("component", "upstream_client"),
		metrics: m,
	}
}

// Do executes a request against a backend and reads the whole response.
// The call is bounded by the configured timeout and by ctx, so a caller that
// goes away aborts the upstream exchange.
func (c *UpstreamClient) Do(ctx context.Context, method, url string, header http.Header, body io.Reader) (*model.ProxiedResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	if header != nil {
		req.Header = header
	}

	c.logger.Debug("upstream request",
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	label := metrics.NormalizeMethod(method)
	if err != nil {
		c.observe(label, "", start)
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	c.observe(label, strconv.Itoa(resp.StatusCode), start)
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = model.DefaultContentType
	}

	// The transport strips Content-Encoding when it decompressed the body itself.
	return &model.ProxiedResponse{
		StatusCode:      resp.StatusCode,
		ContentType:     contentType,
		ContentEncoding: resp.Header.Get("Content-Encoding"),
		Location:        resp.Header.Get("Location"),
		Body:            payload,
	}, nil
}

// Get is Do with GET and no body.
func (c *UpstreamClient) Get(ctx context.Context, url string) (*model.ProxiedResponse, error) {
	return c.Do(ctx, http.MethodGet, url, nil, http.NoBody)
}

func (c *UpstreamClient) observe(method, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if status != "" {
		c.metrics.UpstreamResponses.WithLabelValues(method, status).Inc()
	}
}

// CloseIdleConnections releases pooled connections. It is called on shutdown.
func (c *UpstreamClient) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}
