// Package webhook receives payment processor events.
package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/handler"
	"github.com/dukerupert/comptoir/internal/middleware"
	"github.com/dukerupert/comptoir/internal/service"
)

// SignatureHeader carries Stripe's event signature.
const SignatureHeader = "Stripe-Signature"

// PaymentWebhooks applies verified processor events.
type PaymentWebhooks interface {
	HandleStripeWebhook(ctx context.Context, payload []byte, signature string) (*service.WebhookResult, error)
}

// StripeHandler handles Stripe webhook events
type StripeHandler struct {
	payments PaymentWebhooks
}

// NewStripeHandler creates a new Stripe webhook handler
func NewStripeHandler(payments PaymentWebhooks) *StripeHandler {
	return &StripeHandler{payments: payments}
}

// HandleWebhook processes incoming Stripe webhook events.
//
// Stripe redelivers anything that is not a 2xx, so only transient failures
// answer 5xx. Events for invoices that no longer exist are acknowledged:
// redelivery could never succeed.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger checkout.session.completed
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			handler.ErrorResponse(w, r, domain.Errorf(domain.ETOOLARGE, "", "Payload too large"))
			return
		}
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Error reading request body"))
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Missing signature"))
		return
	}

	result, err := h.payments.HandleStripeWebhook(r.Context(), payload, signature)
	switch {
	case err == nil:
		logger.Info("stripe webhook handled",
			"event_id", result.EventID,
			"event_type", result.EventType,
			"outcome", result.Outcome,
			"invoice_id", result.InvoiceID,
		)
		handler.WriteJSON(w, http.StatusOK, result)

	case domain.IsCode(err, domain.ENOTFOUND):
		logger.Warn("stripe webhook for unknown invoice acknowledged", "error", err)
		handler.WriteJSON(w, http.StatusOK, map[string]string{"outcome": "not_found"})

	default:
		// Signature and payload failures answer 4xx. Conflicts such as a
		// payment for a cancelled invoice answer 409 so they stay visible
		// in the Stripe dashboard. Anything else is 5xx and redelivered.
		handler.ErrorResponse(w, r, err)
	}
}
