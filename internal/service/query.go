package service

import (
	"net/url"
	"strings"
)

// MergeQuery splits an embedded query string off path and merges it with the
// inbound query parameters. Embedded keys replace inbound keys of the same
// name. The inbound values are not modified.
//
// A malformed embedded query keeps whichever pairs parsed.
func MergeQuery(path string, query url.Values) (string, url.Values) {
	merged := make(url.Values, len(query))
	for key, vals := range query {
		merged[key] = append([]string(nil), vals...)
	}

	cleanPath, rawQuery, found := strings.Cut(path, "?")
	if !found {
		return path, merged
	}

	embedded, _ := url.ParseQuery(rawQuery)
	for key, vals := range embedded {
		merged[key] = vals
	}
	return cleanPath, merged
}
