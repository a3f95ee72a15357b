package api

import (
	"context"
	"net/http"
	"time"

	"github.com/dukerupert/comptoir/internal/handler"
	"github.com/dukerupert/comptoir/internal/middleware"
)

// Pinger checks a dependency, such as the database pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health handles GET /health. It answers 503 while the database is
// unreachable so load balancers stop routing to the instance.
func Health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			middleware.GetLogger(r.Context()).Warn("health check failed", "error", err)
			handler.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": "down"})
			return
		}
		handler.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "up"})
	}
}
