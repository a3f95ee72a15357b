package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/handler"
	"github.com/dukerupert/comptoir/internal/service"
)

// Payments is the payment side of the ledger the API drives.
type Payments interface {
	CreateCheckoutSession(ctx context.Context, invoiceID uuid.UUID, successURL, cancelURL string) (string, error)
	StartPublicCheckout(ctx context.Context, invoiceID uuid.UUID, successURL, cancelURL string) (string, error)
	ConfirmCheckoutSession(ctx context.Context, invoiceID uuid.UUID, sessionID string) (domain.ReconcileResult, error)
	RecordManualPayment(ctx context.Context, invoiceID uuid.UUID, params service.RecordPaymentParams) (domain.ReconcileResult, error)
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]service.Payment, error)
}

// PaymentHandler serves invoice payments, both the authenticated API and the
// public pay links sent in reminders.
type PaymentHandler struct {
	payments Payments
	baseURL  string
}

// NewPaymentHandler builds checkout return URLs under baseURL.
func NewPaymentHandler(payments Payments, baseURL string) *PaymentHandler {
	return &PaymentHandler{payments: payments, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// returnURLs are absolute so the processor can redirect back. The success
// URL carries the session id placeholder Stripe substitutes.
func (h *PaymentHandler) returnURLs(invoiceID uuid.UUID) (success, cancel string) {
	pay := h.baseURL + "/pay/" + invoiceID.String()
	return pay + "/success?session_id={CHECKOUT_SESSION_ID}", pay
}

// Checkout handles POST /api/invoices/{id}/checkout
func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	success, cancel := h.returnURLs(id)
	url, err := h.payments.CreateCheckoutSession(r.Context(), id, success, cancel)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, map[string]string{"checkout_url": url})
}

// RecordPayment handles POST /api/invoices/{id}/payments
func (h *PaymentHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var params service.RecordPaymentParams
	if err := handler.DecodeJSON(w, r, &params); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}
	result, err := h.payments.RecordManualPayment(r.Context(), id, params)
	if err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}
	status := http.StatusOK
	if result.Applied {
		status = http.StatusCreated
	}
	handler.WriteJSON(w, status, result)
}

// ListPayments handles GET /api/invoices/{id}/payments
func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	payments, err := h.payments.ListPayments(r.Context(), id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

// PublicCheckout handles GET /pay/{id}, the link in reminders. It redirects
// to a fresh hosted payment page.
func (h *PaymentHandler) PublicCheckout(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	success, cancel := h.returnURLs(id)
	url, err := h.payments.StartPublicCheckout(r.Context(), id, success, cancel)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// CheckoutSuccess handles GET /pay/{id}/success?session_id=. It confirms
// the session with the processor so the invoice is paid even when the
// webhook is late or lost.
func (h *PaymentHandler) CheckoutSuccess(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		handler.ValidationErrorResponse(w, r, domain.NewValidationError("api.CheckoutSuccess", "session_id", "is required"))
		return
	}
	result, err := h.payments.ConfirmCheckoutSession(r.Context(), id, sessionID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, result)
}
