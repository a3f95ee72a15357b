package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/comptoir/internal/crypto"
	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/postgres"
	"github.com/dukerupert/comptoir/internal/repository"
	"github.com/dukerupert/comptoir/internal/repository/repotest"
)

func newRegistry(t *testing.T) (*Registry, *repotest.Store) {
	t.Helper()
	return newRegistryTTL(t, time.Minute)
}

func newRegistryTTL(t *testing.T, ttl time.Duration) (*Registry, *repotest.Store) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	enc, err := crypto.NewAESEncryptor(key)
	require.NoError(t, err)
	store := repotest.New()
	return NewRegistry(store, enc, ttl), store
}

func TestRegistry_SaveAndLoad(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()
	org := uuid.New()

	err := reg.Save(ctx, org, Credentials{SecretKey: "sk_test_abc", WebhookSecret: "whsec_123", TestMode: true})
	require.NoError(t, err)

	creds, err := reg.Credentials(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, ProviderStripe, creds.Provider)
	assert.Equal(t, "sk_test_abc", creds.SecretKey)
	assert.Equal(t, "whsec_123", creds.WebhookSecret)
	assert.True(t, creds.TestMode)
}

func TestRegistry_MissingConfig(t *testing.T) {
	reg, _ := newRegistry(t)
	_, err := reg.Credentials(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrPaymentNotConfig)
}

func TestRegistry_CachesUntilInvalidated(t *testing.T) {
	reg, store := newRegistry(t)
	ctx := context.Background()
	org := uuid.New()
	require.NoError(t, reg.Save(ctx, org, Credentials{SecretKey: "sk_live_one", WebhookSecret: "whsec_one"}))

	_, err := reg.Credentials(ctx, org)
	require.NoError(t, err)

	store.FailNext("GetOrganizationPaymentConfig", errors.New("database down"))
	creds, err := reg.Credentials(ctx, org)
	require.NoError(t, err, "second read is served from cache")
	assert.Equal(t, "sk_live_one", creds.SecretKey)

	reg.Invalidate(org)
	_, err = reg.Credentials(ctx, org)
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
}

func TestRegistry_CacheExpires(t *testing.T) {
	reg, store := newRegistryTTL(t, 20*time.Millisecond)
	ctx := context.Background()
	org := uuid.New()

	require.NoError(t, reg.Save(ctx, org, Credentials{SecretKey: "sk_live_one", WebhookSecret: "whsec_one"}))
	_, err := reg.Credentials(ctx, org)
	require.NoError(t, err)

	// A write that bypasses the registry becomes visible once the entry expires.
	secret, err := reg.encryptor.Encrypt([]byte("sk_live_two"))
	require.NoError(t, err)
	hook, err := reg.encryptor.Encrypt([]byte("whsec_two"))
	require.NoError(t, err)
	_, err = store.UpsertOrganizationPaymentConfig(ctx, repository.UpsertOrganizationPaymentConfigParams{
		OrganizationID:         postgres.UUID(org),
		Provider:               ProviderStripe,
		SecretKeyEncrypted:     secret,
		WebhookSecretEncrypted: hook,
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		creds, err := reg.Credentials(ctx, org)
		return err == nil && creds.SecretKey == "sk_live_two"
	}, time.Second, 10*time.Millisecond)
}

func TestValidator_ValidateStripe(t *testing.T) {
	v := NewValidator()
	tests := []struct {
		name   string
		creds  Credentials
		fields []string
	}{
		{name: "valid live", creds: Credentials{Provider: ProviderStripe, SecretKey: "sk_live_x", WebhookSecret: "whsec_x"}},
		{name: "valid restricted test", creds: Credentials{Provider: ProviderStripe, SecretKey: "rk_test_x", WebhookSecret: "whsec_x", TestMode: true}},
		{name: "missing everything", creds: Credentials{Provider: ProviderStripe}, fields: []string{"secret_key", "webhook_secret"}},
		{name: "bad prefixes", creds: Credentials{Provider: ProviderStripe, SecretKey: "pk_live_x", WebhookSecret: "wh_x"}, fields: []string{"secret_key", "webhook_secret"}},
		{name: "mode mismatch", creds: Credentials{Provider: ProviderStripe, SecretKey: "sk_test_x", WebhookSecret: "whsec_x"}, fields: []string{"test_mode"}},
		{name: "unknown provider", creds: Credentials{Provider: "paypal", SecretKey: "sk_live_x", WebhookSecret: "whsec_x"}, fields: []string{"provider"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStripe(tt.creds)
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}
			fields := domain.GetValidationFields(err)
			for _, f := range tt.fields {
				assert.Contains(t, fields, f)
			}
			assert.Len(t, fields, len(tt.fields))
		})
	}
}
