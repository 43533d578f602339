// Package clientip derives a stable client identifier from proxy headers.
// The identifier is used only for rate-limit bucketing; it is not
// authenticated and the headers are trusted as-is, so a client that does not
// arrive through the expected proxy chain can spoof its identity.
package clientip

import (
	"net/http"
	"strings"
)

// Header precedence: the first non-empty value wins.
var headers = []string{"X-Forwarded-For", "X-Real-IP", "CF-Connecting-IP"}

// FromRequest returns the client identifier for a request, or ok=false when
// no proxy header is present. Absence is a valid outcome, not an error.
func FromRequest(r *http.Request) (string, bool) {
	return FromHeaders(r.Header)
}

// FromHeaders resolves the identifier from a header set. For X-Forwarded-For
// the first hop of the chain is used.
func FromHeaders(h http.Header) (string, bool) {
	for _, name := range headers {
		v := strings.TrimSpace(h.Get(name))
		if v == "" {
			continue
		}
		if name == "X-Forwarded-For" {
			if i := strings.Index(v, ","); i >= 0 {
				v = strings.TrimSpace(v[:i])
			}
		}
		if v != "" {
			return v, true
		}
	}
	return "", false
}
