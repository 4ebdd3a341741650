package service

import "net/http"

// strippedRequestHeaders describe the inbound connection or body. The client
// recomputes them for the request actually sent upstream.
var strippedRequestHeaders = map[string]bool{
	"Host":           true,
	"Content-Length": true,
	"Content-Type":   true,
}

// FilterHeaders returns a copy of src without Host, Content-Length and
// Content-Type, matched case-insensitively. Every other header keeps all of
// its values in their original order.
func FilterHeaders(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for key, vals := range src {
		if strippedRequestHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		dst[key] = append([]string(nil), vals...)
	}
	return dst
}
