package router

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRouter_Get(t *testing.T) {
	r := New()

	var gotID string
	r.Get("/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		gotID = r.PathValue("id")
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/abc", nil))

	if gotID != "abc" {
		t.Errorf("expected path value abc, got %q", gotID)
	}
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/documents/abc", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405 for POST, got %d", w.Code)
	}
}

func TestRouter_MiddlewareOrder(t *testing.T) {
	var order []string

	trace := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, "before"+name)
				next.ServeHTTP(w, r)
				order = append(order, "after"+name)
			})
		}
	}

	r := New(trace("1"))
	group := r.Group(trace("2"))
	group.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}, trace("3"))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

	expected := []string{"before1", "before2", "before3", "handler", "after3", "after2", "after1"}
	if len(order) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, order)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("position %d: expected %s, got %s", i, v, order[i])
		}
	}
}

func TestRouter_MiddlewareSeesPattern(t *testing.T) {
	var pattern string
	capture := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pattern = r.Pattern
			next.ServeHTTP(w, r)
		})
	}

	r := New(capture)
	r.Route("/api", func(api *Router) {
		api.Post("/documents/{id}/send", func(w http.ResponseWriter, r *http.Request) {})
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/documents/42/send", nil))

	if pattern != "POST /api/documents/{id}/send" {
		t.Errorf("unexpected pattern %q", pattern)
	}
}

func TestRouter_RouteAndNotFound(t *testing.T) {
	groupCalls := 0
	counting := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			groupCalls++
			next.ServeHTTP(w, r)
		})
	}

	r := New()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {})
	r.Route("/api/", func(api *Router) {
		api.Get("/notifications", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		api.NotFound(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
	}, counting)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/notifications", http.StatusOK},
		{"/api/nothing-here", http.StatusTeapot},
		{"/health", http.StatusOK},
		{"/elsewhere", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if w.Code != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.path, tt.status, w.Code)
		}
	}
	if groupCalls != 2 {
		t.Errorf("expected group middleware on 2 requests, got %d", groupCalls)
	}
}

func TestRecovery_RendersErrorEnvelope(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	r := New(Recovery(logger))
	r.Get("/api/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("nil ledger")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %q", w.Body.String())
	}
	if strings.Contains(body.Error.Message, "nil ledger") {
		t.Errorf("panic value leaked to client: %q", body.Error.Message)
	}
	if !strings.Contains(logs.String(), "panic recovered") || !strings.Contains(logs.String(), "nil ledger") {
		t.Errorf("expected panic in logs, got %q", logs.String())
	}
}

func TestLogger_RecordsRouteAndStatus(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	r := New(Logger(logger))
	r.Get("/api/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/documents/42", nil))

	out := logs.String()
	for _, want := range []string{"level=WARN", `route="GET /api/documents/{id}"`, "status=404", "bytes=7"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in log line %q", want, out)
		}
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := CORS([]string{"https://app.comptoir.test"})(next)

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/documents", nil)
		req.Header.Set("Origin", "https://app.comptoir.test")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.comptoir.test" {
			t.Errorf("unexpected allow origin %q", got)
		}
		if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), "X-Organization-ID") {
			t.Errorf("identity header not allowed: %q", w.Header().Get("Access-Control-Allow-Headers"))
		}
	})

	t.Run("other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
		req.Header.Set("Origin", "https://evil.test")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("expected no allow origin header")
		}
		if w.Code != http.StatusOK {
			t.Errorf("expected request to pass through, got %d", w.Code)
		}
	})
}
