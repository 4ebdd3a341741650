// Package resolver maps logical service names to backend base URLs.
package resolver

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"api-gateway-go/internal/config"
)

// ErrInvalidServiceName is returned for names that cannot form a hostname.
var ErrInvalidServiceName = errors.New("invalid service name")

// serviceNamePattern is a single DNS label.
var serviceNamePattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)

// ServiceResolver returns the base URL of the backend serving a service name.
// Implementations must not cache results across requests.
type ServiceResolver interface {
	Resolve(service string) (*url.URL, error)
}

// NamingConvention resolves {scheme}://{service}{suffix}:{port}.
type NamingConvention struct {
	scheme string
	suffix string
	port   string
}

// NewNamingConvention builds a resolver from the upstream config section.
func NewNamingConvention(cfg *config.Config) *NamingConvention {
	return &NamingConvention{
		scheme: cfg.Upstream.Scheme,
		suffix: cfg.Upstream.HostSuffix,
		port:   strconv.Itoa(cfg.Upstream.Port),
	}
}

// Resolve builds the endpoint for service. No existence check is made; an
// unreachable backend surfaces when the call is attempted.
func (r *NamingConvention) Resolve(service string) (*url.URL, error) {
	if !serviceNamePattern.MatchString(service) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidServiceName, service)
	}
	return &url.URL{
		Scheme: r.scheme,
		Host:   service + r.suffix + ":" + r.port,
	}, nil
}

// Static resolves every name to one fixed endpoint. It backs local development
// against a single backend and tests that run against httptest servers.
type Static struct {
	endpoint *url.URL
}

// NewStatic parses rawURL into a Static resolver.
func NewStatic(rawURL string) (*Static, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse static endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("static endpoint %q must be absolute", rawURL)
	}
	return &Static{endpoint: u}, nil
}

// Resolve returns a copy of the fixed endpoint for any valid service name.
func (s *Static) Resolve(service string) (*url.URL, error) {
	if !serviceNamePattern.MatchString(service) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidServiceName, service)
	}
	u := *s.endpoint
	return &u, nil
}

// New picks the resolver for cfg: Static when upstream.static_url is set,
// NamingConvention otherwise.
func New(cfg *config.Config) (ServiceResolver, error) {
	if cfg.Upstream.StaticURL != "" {
		return NewStatic(cfg.Upstream.StaticURL)
	}
	return NewNamingConvention(cfg), nil
}
