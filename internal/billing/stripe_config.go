package billing

import "time"

// DefaultWebhookTolerance is the maximum age of a signed webhook timestamp.
const DefaultWebhookTolerance = 300 * time.Second

// StripeConfig contains configuration for the Stripe provider. API keys are
// not part of it; they are loaded per organization.
type StripeConfig struct {
	// APIBaseURL overrides the Stripe API endpoint (stripe-mock, tests).
	APIBaseURL string

	// WebhookTolerance bounds webhook timestamp age. Default: 300s.
	WebhookTolerance time.Duration

	// MaxNetworkRetries is the SDK's retry budget for connection errors and
	// 409/5xx responses. Default: 2; negative disables retries.
	MaxNetworkRetries int64
}

// IsTestKey returns true for test mode secret keys.
func IsTestKey(key string) bool {
	return len(key) > 7 && key[:8] == "sk_test_"
}
