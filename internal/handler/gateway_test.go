package handler

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"api-gateway-go/internal/client"
	"api-gateway-go/internal/config"
	"api-gateway-go/internal/model"
	"api-gateway-go/internal/resolver"
	"api-gateway-go/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEcho returns an Echo instance with every gateway route registered
// against a static backend at upstreamURL.
func newTestEcho(t *testing.T, upstreamURL string) *echo.Echo {
	t.Helper()
	r, err := resolver.NewStatic(upstreamURL)
	if err != nil {
		t.Fatalf("NewStatic: %v", err)
	}
	cfg := &config.Config{
		App:      config.AppConfig{Title: "API Gateway"},
		Upstream: config.UpstreamConfig{StaticURL: upstreamURL, TimeoutSeconds: 5, IdleConnections: 10},
	}
	logger := discardLogger()
	gw := service.NewGateway(r, client.NewUpstreamClient(cfg, logger, nil), nil, logger)

	e := echo.New()
	RegisterRoutes(e, NewGatewayHandler(gw, logger), NewHealthHandler(cfg, "test"))
	return e
}

func decodeEnvelope(t *testing.T, body []byte) model.ErrorEnvelope {
	t.Helper()
	var env model.ErrorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("unmarshal envelope %q: %v", body, err)
	}
	return env
}

func TestHandle_RelaysStatusAndBody(t *testing.T) {
	var gotMethod, gotPath, gotBody, gotContentType string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotMethod, gotPath, gotBody = r.Method, r.URL.Path, string(b)
		gotContentType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":7}`))
	}))
	defer upstream.Close()

	e := newTestEcho(t, upstream.URL)

	req := httptest.NewRequest(http.MethodPost, "/billing/invoices", strings.NewReader(`{"amount":10}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if rec.Body.String() != `{"id":7}` {
		t.Errorf("body = %q, want %q", rec.Body.String(), `{"id":7}`)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("upstream method = %q, want POST", gotMethod)
	}
	if gotPath != "/invoices" {
		t.Errorf("upstream path = %q, want /invoices", gotPath)
	}
	if gotBody != `{"amount":10}` {
		t.Errorf("upstream body = %q, want %q", gotBody, `{"amount":10}`)
	}
	if gotContentType != "application/json" {
		t.Errorf("upstream Content-Type = %q, want application/json", gotContentType)
	}
}

func TestHandle_AllMethods(t *testing.T) {
	var gotMethod string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	e := newTestEcho(t, upstream.URL)

	for _, method := range proxiedMethods {
		t.Run(method, func(t *testing.T) {
			var body io.Reader = http.NoBody
			if service.CarriesBody(method) {
				body = strings.NewReader(`{}`)
			}
			req := httptest.NewRequest(method, "/auth/users/1", body)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			if gotMethod != method {
				t.Errorf("upstream method = %q, want %q", gotMethod, method)
			}
		})
	}
}

func TestHandle_EncodedQueryInPath(t *testing.T) {
	var gotPath string
	var gotQuery url.Values
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.Query()
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	e := newTestEcho(t, upstream.URL)

	req := httptest.NewRequest(http.MethodGet, "/catalog/items%3Fcolor=red?size=m", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotPath != "/items" {
		t.Errorf("upstream path = %q, want /items", gotPath)
	}
	if gotQuery.Get("color") != "red" || gotQuery.Get("size") != "m" {
		t.Errorf("upstream query = %v, want color=red and size=m", gotQuery)
	}
}

func TestHandle_InvalidBody(t *testing.T) {
	called := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer upstream.Close()

	e := newTestEcho(t, upstream.URL)

	for _, body := range []string{`[1,2]`, `not json`, `"str"`} {
		t.Run(body, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/billing/invoices/1", strings.NewReader(body))
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
			}
			env := decodeEnvelope(t, rec.Body.Bytes())
			if env.Error != "request body must be a JSON object" {
				t.Errorf("error = %q", env.Error)
			}
		})
	}
	if called {
		t.Error("upstream must not be called for an invalid body")
	}
}

func TestHandle_InvalidService(t *testing.T) {
	e := newTestEcho(t, "http://127.0.0.1:1")

	req := httptest.NewRequest(http.MethodGet, "/bad_name/items", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if env := decodeEnvelope(t, rec.Body.Bytes()); env.Error != "unknown service" {
		t.Errorf("error = %q, want %q", env.Error, "unknown service")
	}
}

func TestHandle_Unreachable(t *testing.T) {
	e := newTestEcho(t, "http://127.0.0.1:1")

	req := httptest.NewRequest(http.MethodGet, "/billing/invoices", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if env := decodeEnvelope(t, rec.Body.Bytes()); env.Error != "upstream connection failed" {
		t.Errorf("error = %q, want %q", env.Error, "upstream connection failed")
	}
}

func TestHandle_NoContent(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer upstream.Close()

	e := newTestEcho(t, upstream.URL)

	req := httptest.NewRequest(http.MethodDelete, "/billing/invoices/1", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
}

func TestHandle_RelaysContentEncoding(t *testing.T) {
	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	_, _ = zw.Write([]byte(`{"ok":true}`))
	_ = zw.Close()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(compressed.Bytes())
	}))
	defer upstream.Close()

	e := newTestEcho(t, upstream.URL)

	req := httptest.NewRequest(http.MethodGet, "/billing/status", http.NoBody)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", got)
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	plain, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read gzip body: %v", err)
	}
	if string(plain) != `{"ok":true}` {
		t.Errorf("decoded body = %q, want %q", plain, `{"ok":true}`)
	}
}

func TestHandle_RewriteOnlyForOpenAPIGet(t *testing.T) {
	var gotMethod, gotPath, gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotMethod, gotPath, gotBody = r.Method, r.URL.Path, string(b)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"stored":true}`))
	}))
	defer upstream.Close()

	e := newTestEcho(t, upstream.URL)

	req := httptest.NewRequest(http.MethodPost, "/billing/openapi.json", strings.NewReader(`{"a":1}`))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if gotMethod != http.MethodPost || gotPath != "/openapi.json" {
		t.Errorf("upstream request = %s %s, want POST /openapi.json", gotMethod, gotPath)
	}
	if gotBody != `{"a":1}` {
		t.Errorf("upstream body = %q, want %q", gotBody, `{"a":1}`)
	}
	if rec.Body.String() != `{"stored":true}` {
		t.Errorf("body = %q, want %q", rec.Body.String(), `{"stored":true}`)
	}
}

func TestHandle_RelaysRedirectLocation(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer upstream.Close()

	e := newTestEcho(t, upstream.URL)

	req := httptest.NewRequest(http.MethodGet, "/billing/start", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusFound)
	}
	if got := rec.Header().Get("Location"); got != "/elsewhere" {
		t.Errorf("Location = %q, want /elsewhere", got)
	}
}

func TestHandle_DocsPage(t *testing.T) {
	var gotURLHint string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURLHint = r.URL.Query().Get("url")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<redoc spec-url="/openapi.json"></redoc>`))
	}))
	defer upstream.Close()

	e := newTestEcho(t, upstream.URL)

	req := httptest.NewRequest(http.MethodGet, "/billing/redoc", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotURLHint != "/billing/openapi.json" {
		t.Errorf("upstream url hint = %q, want /billing/openapi.json", gotURLHint)
	}
	if want := `<redoc spec-url="/billing/openapi.json"></redoc>`; rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}
}

func TestOpenAPI_Route(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openapi.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"openapi":"3.1.0","servers":[{"url":"http://internal"}]}`))
	}))
	defer upstream.Close()

	e := newTestEcho(t, upstream.URL)

	req := httptest.NewRequest(http.MethodGet, "/billing/openapi.json", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var doc struct {
		OpenAPI string `json:"openapi"`
		Servers []struct {
			URL string `json:"url"`
		} `json:"servers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.OpenAPI != "3.1.0" {
		t.Errorf("openapi = %q, want 3.1.0", doc.OpenAPI)
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "/billing" {
		t.Errorf("servers = %+v, want [{/billing}]", doc.Servers)
	}
}

func TestOpenAPI_Unreachable(t *testing.T) {
	e := newTestEcho(t, "http://127.0.0.1:1")

	req := httptest.NewRequest(http.MethodGet, "/billing/openapi.json", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	env := decodeEnvelope(t, rec.Body.Bytes())
	if !strings.HasPrefix(env.Error, "Failed to fetch OpenAPI for billing: ") {
		t.Errorf("error = %q, want Failed to fetch OpenAPI prefix", env.Error)
	}
}

func TestSplitServicePath(t *testing.T) {
	tests := []struct {
		path     string
		wantSvc  string
		wantRest string
	}{
		{"/billing/invoices", "billing", "invoices"},
		{"/billing/invoices/42/lines", "billing", "invoices/42/lines"},
		{"/billing/", "billing", ""},
		{"/billing", "billing", ""},
		{"/catalog/items?color=red", "catalog", "items?color=red"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			svc, rest := splitServicePath(tt.path)
			if svc != tt.wantSvc || rest != tt.wantRest {
				t.Errorf("splitServicePath(%q) = (%q, %q), want (%q, %q)",
					tt.path, svc, rest, tt.wantSvc, tt.wantRest)
			}
		})
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "invalid service",
			err:        fmt.Errorf("resolve: %w", resolver.ErrInvalidServiceName),
			wantStatus: http.StatusNotFound,
			wantError:  "unknown service",
		},
		{
			name:       "timeout",
			err:        &url.Error{Op: "Get", URL: "http://x", Err: context.DeadlineExceeded},
			wantStatus: http.StatusGatewayTimeout,
			wantError:  "upstream request timed out",
		},
		{
			name:       "canceled",
			err:        &url.Error{Op: "Get", URL: "http://x", Err: context.Canceled},
			wantStatus: http.StatusBadGateway,
			wantError:  "client disconnected",
		},
		{
			name: "dns",
			err: &url.Error{Op: "Get", URL: "http://x", Err: &net.OpError{
				Op:  "dial",
				Err: &net.DNSError{Err: "no such host", Name: "billing-service"},
			}},
			wantStatus: http.StatusBadGateway,
			wantError:  "upstream host unreachable",
		},
		{
			name:       "connection",
			err:        &url.Error{Op: "Get", URL: "http://x", Err: io.ErrUnexpectedEOF},
			wantStatus: http.StatusBadGateway,
			wantError:  "upstream connection failed",
		},
		{
			name:       "other",
			err:        io.ErrClosedPipe,
			wantStatus: http.StatusBadGateway,
			wantError:  "upstream request failed",
		},
	}

	h := NewGatewayHandler(nil, discardLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/billing/x", http.NoBody)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			if err := h.mapError(c, tt.err); err != nil {
				t.Fatalf("mapError() returned %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if env := decodeEnvelope(t, rec.Body.Bytes()); env.Error != tt.wantError {
				t.Errorf("error = %q, want %q", env.Error, tt.wantError)
			}
		})
	}
}

func TestMapError_PassesHTTPError(t *testing.T) {
	h := NewGatewayHandler(nil, discardLogger())
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/billing/x", http.NoBody), httptest.NewRecorder())

	err := h.mapError(c, echo.ErrStatusRequestEntityTooLarge)
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("mapError() = %v, want *echo.HTTPError", err)
	}
	if he.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("code = %d, want %d", he.Code, http.StatusRequestEntityTooLarge)
	}
}
