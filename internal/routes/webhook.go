package routes

import (
	"github.com/dukerupert/comptoir/internal/middleware"
	"github.com/dukerupert/comptoir/internal/router"
)

// RegisterWebhookRoutes registers all webhook routes.
//
// Webhook routes have no authentication middleware. Each handler verifies
// the request signature against the secret of the organization the event
// belongs to.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Post("/webhooks/stripe", deps.StripeHandler, middleware.MaxBodySize(middleware.WebhookMaxBodySize))
}
