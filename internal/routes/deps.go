package routes

import (
	"net/http"

	"github.com/dukerupert/comptoir/internal/handler/api"
	"github.com/dukerupert/comptoir/internal/middleware"
	"github.com/dukerupert/comptoir/internal/router"
)

// APIDeps contains dependencies for the authenticated /api routes
type APIDeps struct {
	Identity      middleware.IdentityResolver
	Documents     *api.DocumentHandler
	Payments      *api.PaymentHandler
	Notifications *api.NotificationHandler
}

// PublicDeps contains dependencies for the links sent to clients: pay
// links and quote signature. Limiter throttles them per client IP.
type PublicDeps struct {
	Limiter   *middleware.RateLimiter
	Documents *api.DocumentHandler
	Payments  *api.PaymentHandler
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
}

// OpsDeps contains the operational endpoints.
type OpsDeps struct {
	Health  http.HandlerFunc
	Metrics http.Handler
}

// RegisterOpsRoutes registers health and metrics. Neither is authenticated;
// /metrics is expected to be firewalled to the scraper.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get("/health", deps.Health)
	if deps.Metrics != nil {
		r.Handle(http.MethodGet, "/metrics", deps.Metrics)
	}
}
