package routes

import (
	"github.com/dukerupert/comptoir/internal/handler"
	"github.com/dukerupert/comptoir/internal/middleware"
	"github.com/dukerupert/comptoir/internal/router"
)

// RegisterAPIRoutes registers the organization API. Every route requires an
// identity; the organization it carries scopes all reads and writes.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	r.Route("/api", func(api *router.Router) {
		// Documents
		api.Get("/documents", deps.Documents.List)
		api.Post("/documents", deps.Documents.Create)
		api.Get("/documents/{id}", deps.Documents.Get)
		api.Put("/documents/{id}", deps.Documents.Update)
		api.Delete("/documents/{id}", deps.Documents.Delete)
		api.Post("/documents/{id}/send", deps.Documents.Send)
		api.Post("/documents/{id}/cancel", deps.Documents.Cancel)
		api.Post("/documents/{id}/accept", deps.Documents.Accept)
		api.Post("/documents/{id}/reject", deps.Documents.Reject)
		api.Post("/documents/{id}/convert", deps.Documents.Convert)

		// Payments
		api.Post("/invoices/{id}/checkout", deps.Payments.Checkout)
		api.Get("/invoices/{id}/payments", deps.Payments.ListPayments)
		api.Post("/invoices/{id}/payments", deps.Payments.RecordPayment)

		// Notifications
		api.Get("/notifications", deps.Notifications.List)
		api.Post("/notifications/{id}/read", deps.Notifications.MarkRead)
		api.Post("/notifications/{id}/dismiss", deps.Notifications.Dismiss)

		api.NotFound(handler.NotFoundResponse)
	},
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		middleware.RequireIdentity(deps.Identity),
	)
}

// RegisterPublicRoutes registers the unauthenticated links clients follow
// from emails and SMS. The document id is the only credential, so every
// route is rate limited.
func RegisterPublicRoutes(r *router.Router, deps PublicDeps) {
	public := r.Group(deps.Limiter.Middleware)

	public.Get("/pay/{id}", deps.Payments.PublicCheckout, middleware.MaxBodySize(4*middleware.KB))
	public.Get("/pay/{id}/success", deps.Payments.CheckoutSuccess, middleware.MaxBodySize(4*middleware.KB))
	// Room for a base64 signature image.
	public.Post("/quotes/{id}/sign", deps.Documents.Sign, middleware.MaxBodySize(512*middleware.KB))
}
