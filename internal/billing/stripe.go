package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v83"
	checkoutsession "github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/webhook"

	"github.com/dukerupert/comptoir/internal/telemetry"
)

// StripeProvider implements Provider with the Stripe SDK.
type StripeProvider struct {
	backend   stripe.Backend
	tolerance time.Duration
}

// NewStripeProvider creates a Stripe-backed Provider.
func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	retries := cfg.MaxNetworkRetries
	switch {
	case retries == 0:
		retries = 2
	case retries < 0:
		retries = 0
	}
	backendCfg := &stripe.BackendConfig{MaxNetworkRetries: stripe.Int64(retries)}
	if cfg.APIBaseURL != "" {
		backendCfg.URL = stripe.String(cfg.APIBaseURL)
	}

	tolerance := cfg.WebhookTolerance
	if tolerance <= 0 {
		tolerance = DefaultWebhookTolerance
	}

	return &StripeProvider{
		backend:   stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		tolerance: tolerance,
	}
}

func (p *StripeProvider) sessions(secretKey string) (checkoutsession.Client, error) {
	if secretKey == "" {
		return checkoutsession.Client{}, ErrInvalidAPIKey
	}
	return checkoutsession.Client{B: p.backend, Key: secretKey}, nil
}

// CreateCheckoutSession opens a hosted payment page for the outstanding
// amount of an invoice.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error) {
	if params.AmountCents <= 0 {
		return nil, ErrAmountTooSmall
	}
	client, err := p.sessions(params.SecretKey)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		MetadataInvoiceID:      params.InvoiceID,
		MetadataOrganizationID: params.OrganizationID,
	}
	sp := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(params.Currency),
					UnitAmount: stripe.Int64(params.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Invoice " + params.InvoiceNumber),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(params.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(params.CancelURL),
		ClientReferenceID: stripe.String(params.InvoiceID),
		Metadata:          metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	if params.CustomerEmail != "" {
		sp.CustomerEmail = stripe.String(params.CustomerEmail)
	}
	if params.IdempotencyKey != "" {
		sp.SetIdempotencyKey(params.IdempotencyKey)
	}
	sp.Context = ctx

	started := time.Now()
	s, err := client.New(sp)
	telemetry.Business.ObserveStripeCall("create_checkout_session", started)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	return toCheckoutSession(s), nil
}

// GetCheckoutSession fetches a session server to server.
func (p *StripeProvider) GetCheckoutSession(ctx context.Context, secretKey, sessionID string) (*CheckoutSession, error) {
	client, err := p.sessions(secretKey)
	if err != nil {
		return nil, err
	}

	sp := &stripe.CheckoutSessionParams{}
	sp.Context = ctx

	started := time.Now()
	s, err := client.Get(sessionID, sp)
	telemetry.Business.ObserveStripeCall("get_checkout_session", started)
	if err != nil {
		return nil, wrapStripeError(err)
	}
	return toCheckoutSession(s), nil
}

// ParseWebhookEvent verifies a Stripe-Signature header and decodes the event.
// API version mismatches are tolerated: only session fields present in every
// version are read.
func (p *StripeProvider) ParseWebhookEvent(payload []byte, signatureHeader, secret string) (*WebhookEvent, error) {
	if secret == "" || signatureHeader == "" {
		return nil, ErrInvalidWebhookSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		Tolerance:                p.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data != nil && len(event.Data.Raw) > 0 && event.Data.Object["object"] == "checkout.session" {
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("failed to decode checkout session: %w", err)
		}
		out.Session = toCheckoutSession(&s)
	}
	return out, nil
}

func toCheckoutSession(s *stripe.CheckoutSession) *CheckoutSession {
	return &CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		Metadata:      s.Metadata,
	}
}

func wrapStripeError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return &StripeError{Message: err.Error(), OriginalError: err}
	}
	if se.Code == stripe.ErrorCodeResourceMissing {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, se.Msg)
	}
	return &StripeError{
		Message:       se.Msg,
		Code:          string(se.Code),
		HTTPStatus:    se.HTTPStatusCode,
		RequestID:     se.RequestID,
		OriginalError: err,
	}
}
