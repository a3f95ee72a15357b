package middleware

import (
	"net/http"
)

// Common size limits
const (
	KB = 1024
	MB = 1024 * KB

	// DefaultMaxBodySize covers document payloads with many lines.
	DefaultMaxBodySize = 1 * MB

	// WebhookMaxBodySize is generous for processor events, which are small.
	WebhookMaxBodySize = 512 * KB
)

// MaxBodySize limits the size of request bodies. Requests announcing a
// larger Content-Length are rejected with 413 before the handler runs;
// others are cut off by http.MaxBytesReader while the handler reads.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				respondTooLarge(w, r, maxBytes)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
