package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/comptoir/internal/domain"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// =============================================================================
// REQUEST ID
// =============================================================================

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = domain.RequestIDFromContext(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "lb-1234")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "lb-1234", seen)
	})

	t.Run("oversized header replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("a", 500))
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Len(t, seen, 36)
	})
}

// =============================================================================
// CLIENT IP
// =============================================================================

func TestWithClientIP(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		xff        string
		realIP     string
		want       string
	}{
		{"remote addr", false, "", "", "192.0.2.1"},
		{"untrusted forwarded header ignored", false, "203.0.113.7", "", "192.0.2.1"},
		{"first forwarded hop", true, "203.0.113.7, 10.0.0.2", "", "203.0.113.7"},
		{"real ip", true, "", "203.0.113.9", "203.0.113.9"},
		{"garbage forwarded header", true, "unknown", "", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := WithClientIP(tt.trustProxy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = GetClientIPFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodPost, "/quotes/1/sign", nil)
			req.RemoteAddr = "192.0.2.1:51234"
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// RATE LIMIT
// =============================================================================

func TestRateLimiter(t *testing.T) {
	rl, err := NewRateLimiter("2-M", "pay")
	require.NoError(t, err)
	h := rl.Middleware(okHandler)

	hit := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/pay/1/success", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, hit("192.0.2.1:1").Code)
	rec := hit("192.0.2.1:2")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = hit("192.0.2.1:3")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	assert.Equal(t, http.StatusOK, hit("192.0.2.2:1").Code, "budgets are per client")
}

func TestNewRateLimiter_RejectsBadFormat(t *testing.T) {
	_, err := NewRateLimiter("thirty per minute", "pay")
	assert.Error(t, err)
}

// =============================================================================
// LIMITS & HEADERS
// =============================================================================

func TestMaxBodySize(t *testing.T) {
	h := MaxBodySize(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader("{}")))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(`{"notes":"far too long"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.ETOOLARGE)
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(DefaultSecurityHeadersConfig())(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pay/1/success", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=31536000")
}

// =============================================================================
// METRICS
// =============================================================================

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("comptoir_test", reg)

	mux := http.NewServeMux()
	mux.Handle("GET /api/documents/{id}", m.Middleware(okHandler))

	for _, id := range []string{"a", "b", "c"} {
		mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/documents/"+id, nil))
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `comptoir_test_http_requests_total{method="GET",route="GET /api/documents/{id}",status="200"} 3`)
	assert.NotContains(t, rec.Body.String(), "/api/documents/a")
}
