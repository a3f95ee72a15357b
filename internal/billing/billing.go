// Package billing wraps the card payment processor.
//
// Credentials are per organization, so every call that reaches the processor
// takes the organization's secret key explicitly.
package billing

//go:generate mockgen -source=billing.go -destination=mock_provider.go -package=billing

import (
	"context"
	"encoding/json"
	"fmt"
)

// Checkout session payment states.
const (
	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"
)

// Metadata keys stamped on every checkout session.
const (
	MetadataInvoiceID      = "invoice_id"
	MetadataOrganizationID = "organization_id"
)

// EventCheckoutSessionCompleted is the only event type that moves money on the
// ledger.
const EventCheckoutSessionCompleted = "checkout.session.completed"

// CheckoutSession is the processor's view of a hosted payment page.
type CheckoutSession struct {
	ID            string
	URL           string
	Status        string
	PaymentStatus string
	AmountTotal   int64
	Currency      string
	Metadata      map[string]string
}

// Paid reports whether the session collected the funds.
func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

// CreateCheckoutSessionParams describes a one-off payment of an invoice.
type CreateCheckoutSessionParams struct {
	SecretKey      string
	OrganizationID string
	InvoiceID      string
	InvoiceNumber  string
	AmountCents    int64
	Currency       string
	CustomerEmail  string
	SuccessURL     string // receives ?session_id={CHECKOUT_SESSION_ID}
	CancelURL      string
	IdempotencyKey string
}

// WebhookEvent is a verified processor notification.
type WebhookEvent struct {
	ID      string
	Type    string
	Session *CheckoutSession // set for checkout.session.* events
}

// Provider talks to the payment processor.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, secretKey, sessionID string) (*CheckoutSession, error)

	// ParseWebhookEvent verifies the signature header against secret and
	// decodes the event. A bad signature returns ErrInvalidWebhookSignature.
	ParseWebhookEvent(payload []byte, signatureHeader, secret string) (*WebhookEvent, error)
}

// EventRouting is what an unverified event payload claims about its target.
// It is only used to pick the secret to verify with.
type EventRouting struct {
	EventID        string
	Type           string
	InvoiceID      string
	OrganizationID string
}

// PeekEventRouting reads routing metadata from a raw event payload without
// verifying it.
func PeekEventRouting(payload []byte) (EventRouting, error) {
	var raw struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				Metadata map[string]string `json:"metadata"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return EventRouting{}, fmt.Errorf("failed to parse event payload: %w", err)
	}
	md := raw.Data.Object.Metadata
	return EventRouting{
		EventID:        raw.ID,
		Type:           raw.Type,
		InvoiceID:      md[MetadataInvoiceID],
		OrganizationID: md[MetadataOrganizationID],
	}, nil
}
