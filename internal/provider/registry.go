// Package provider loads per-organization payment processor credentials.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dukerupert/comptoir/internal/crypto"
	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/postgres"
	"github.com/dukerupert/comptoir/internal/repository"
)

// ProviderStripe is the only supported processor.
const ProviderStripe = "stripe"

// DefaultCacheTTL bounds how long decrypted credentials stay in memory.
const DefaultCacheTTL = 5 * time.Minute

const cacheSize = 1024

// Credentials are an organization's decrypted processor secrets.
type Credentials struct {
	Provider      string
	SecretKey     string
	WebhookSecret string
	TestMode      bool
}

// Registry decrypts and caches credentials per organization.
type Registry struct {
	repo      repository.Querier
	encryptor crypto.Encryptor
	validator *Validator
	cache     *expirable.LRU[uuid.UUID, *Credentials]
}

// NewRegistry creates a registry. cacheTTL <= 0 uses DefaultCacheTTL.
func NewRegistry(repo repository.Querier, encryptor crypto.Encryptor, cacheTTL time.Duration) *Registry {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &Registry{
		repo:      repo,
		encryptor: encryptor,
		validator: NewValidator(),
		cache:     expirable.NewLRU[uuid.UUID, *Credentials](cacheSize, nil, cacheTTL),
	}
}

// Credentials returns the organization's processor secrets, or
// domain.ErrPaymentNotConfig when none are stored.
func (r *Registry) Credentials(ctx context.Context, orgID uuid.UUID) (*Credentials, error) {
	const op = "provider.Credentials"

	if creds, ok := r.cache.Get(orgID); ok {
		return creds, nil
	}

	cfg, err := r.repo.GetOrganizationPaymentConfig(ctx, postgres.UUID(orgID))
	if postgres.IsNotFound(err) {
		return nil, domain.WithOp(domain.ErrPaymentNotConfig, op)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load payment configuration")
	}

	secretKey, err := r.encryptor.Decrypt(cfg.SecretKeyEncrypted)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to decrypt secret key")
	}
	webhookSecret, err := r.encryptor.Decrypt(cfg.WebhookSecretEncrypted)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to decrypt webhook secret")
	}

	creds := &Credentials{
		Provider:      cfg.Provider,
		SecretKey:     string(secretKey),
		WebhookSecret: string(webhookSecret),
		TestMode:      cfg.IsTestMode,
	}
	r.cache.Add(orgID, creds)
	return creds, nil
}

// Save validates, encrypts and stores credentials, replacing any previous
// ones.
func (r *Registry) Save(ctx context.Context, orgID uuid.UUID, creds Credentials) error {
	const op = "provider.Save"

	if creds.Provider == "" {
		creds.Provider = ProviderStripe
	}
	if err := r.validator.ValidateStripe(creds); err != nil {
		return err
	}

	secretKey, err := r.encryptor.Encrypt([]byte(creds.SecretKey))
	if err != nil {
		return domain.Internal(err, op, "failed to encrypt secret key")
	}
	webhookSecret, err := r.encryptor.Encrypt([]byte(creds.WebhookSecret))
	if err != nil {
		return domain.Internal(err, op, "failed to encrypt webhook secret")
	}

	_, err = r.repo.UpsertOrganizationPaymentConfig(ctx, repository.UpsertOrganizationPaymentConfigParams{
		OrganizationID:         postgres.UUID(orgID),
		Provider:               creds.Provider,
		SecretKeyEncrypted:     secretKey,
		WebhookSecretEncrypted: webhookSecret,
		IsTestMode:             creds.TestMode,
	})
	if err != nil {
		return domain.Internal(fmt.Errorf("failed to upsert payment config: %w", err), op, "failed to store payment configuration")
	}
	r.Invalidate(orgID)
	return nil
}

// Invalidate drops cached credentials for an organization.
func (r *Registry) Invalidate(orgID uuid.UUID) {
	r.cache.Remove(orgID)
}
