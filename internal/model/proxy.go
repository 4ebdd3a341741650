// Package model defines shared types for the gateway.
package model

import (
	"encoding/json"
	"net/http"
	"net/url"
)

// DefaultContentType is reported when the upstream omits Content-Type.
const DefaultContentType = "text/plain"

// IncomingRequest is a normalized inbound call addressed to one backend.
type IncomingRequest struct {
	Method  string
	Service string
	// Path is the tail after /{service}/. It may carry an embedded query string.
	Path   string
	Header http.Header
	Query  url.Values
	// Body is the JSON document for POST, PUT and PATCH. Nil otherwise.
	Body json.RawMessage
}

// ProxiedResponse is relayed to the caller byte for byte.
type ProxiedResponse struct {
	StatusCode  int
	ContentType string
	// ContentEncoding is set when Body is still compressed as the upstream sent it.
	ContentEncoding string
	// Location is relayed with 3xx and 201 responses. Redirects are not followed.
	Location string
	Body     []byte
}

// ErrorEnvelope is the JSON body of every gateway-generated error response.
type ErrorEnvelope struct {
	Error string `json:"error"`
}
