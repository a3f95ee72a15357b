package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAPIKey is returned when the organization's secret key is missing.
	ErrInvalidAPIKey = errors.New("billing: invalid or missing API key")

	// ErrInvalidWebhookSignature is returned when webhook signature verification fails.
	ErrInvalidWebhookSignature = errors.New("billing: invalid webhook signature")

	// ErrSessionNotFound is returned when the processor has no such checkout session.
	ErrSessionNotFound = errors.New("billing: checkout session not found")

	// ErrAmountTooSmall is returned when there is nothing left to collect.
	ErrAmountTooSmall = errors.New("billing: amount must be positive")
)

// StripeError wraps a Stripe API error with additional context.
type StripeError struct {
	Message       string // Human-readable error message
	Code          string // Stripe error code (e.g., "resource_missing")
	HTTPStatus    int
	RequestID     string // Stripe request ID for debugging
	OriginalError error
}

func (e *StripeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe: %s (code: %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("stripe: %s", e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.OriginalError
}

// IsTemporary returns true if error is likely transient and retryable.
func (e *StripeError) IsTemporary() bool {
	return e.Code == "rate_limit" || e.HTTPStatus == 0 || e.HTTPStatus >= 500
}
