package provider

import (
	"strings"

	"github.com/dukerupert/comptoir/internal/domain"
)

// Validator checks credential formats before they are stored.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateStripe checks key prefixes and that test mode agrees with the key.
func (v *Validator) ValidateStripe(creds Credentials) error {
	var err error
	if creds.Provider != ProviderStripe {
		err = domain.AddFieldError(err, "provider", "unsupported payment provider")
	}
	switch {
	case creds.SecretKey == "":
		err = domain.AddFieldError(err, "secret_key", "is required")
	case !strings.HasPrefix(creds.SecretKey, "sk_test_") && !strings.HasPrefix(creds.SecretKey, "sk_live_") &&
		!strings.HasPrefix(creds.SecretKey, "rk_test_") && !strings.HasPrefix(creds.SecretKey, "rk_live_"):
		err = domain.AddFieldError(err, "secret_key", "must start with sk_test_, sk_live_, rk_test_ or rk_live_")
	case creds.TestMode != strings.Contains(creds.SecretKey, "_test_"):
		err = domain.AddFieldError(err, "test_mode", "does not match the secret key mode")
	}
	switch {
	case creds.WebhookSecret == "":
		err = domain.AddFieldError(err, "webhook_secret", "is required")
	case !strings.HasPrefix(creds.WebhookSecret, "whsec_"):
		err = domain.AddFieldError(err, "webhook_secret", "must start with whsec_")
	}
	return err
}
