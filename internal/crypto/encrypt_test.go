package crypto_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/comptoir/internal/crypto"
	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/postgres"
	"github.com/dukerupert/comptoir/internal/provider"
	"github.com/dukerupert/comptoir/internal/repository"
	"github.com/dukerupert/comptoir/internal/repository/repotest"
)

const (
	stripeSecretKey     = "sk_test_51Hcomptoir_secret_key"
	stripeWebhookSecret = "whsec_org_webhook_secret"
)

// encryptorFromEnv builds an encryptor the way the server does from
// ENCRYPTION_KEY.
func encryptorFromEnv(t *testing.T, encoded string) *crypto.AESEncryptor {
	t.Helper()
	key, err := crypto.DecodeKeyBase64(encoded)
	require.NoError(t, err)
	enc, err := crypto.NewAESEncryptor(key)
	require.NoError(t, err)
	return enc
}

func newEncodedKey(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	require.Len(t, key, crypto.KeySize)
	return crypto.EncodeKeyBase64(key)
}

func saveStripeCredentials(t *testing.T, reg *provider.Registry, orgID uuid.UUID) {
	t.Helper()
	err := reg.Save(context.Background(), orgID, provider.Credentials{
		SecretKey:     stripeSecretKey,
		WebhookSecret: stripeWebhookSecret,
		TestMode:      true,
	})
	require.NoError(t, err)
}

func storedConfig(t *testing.T, store *repotest.Store, orgID uuid.UUID) repository.OrganizationPaymentConfig {
	t.Helper()
	cfg, err := store.GetOrganizationPaymentConfig(context.Background(), postgres.UUID(orgID))
	require.NoError(t, err)
	return cfg
}

// ============================================================================
// Encryption key
// ============================================================================

func TestEncryptionKey_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{name: "not base64", encoded: "not-valid-base64!!!"},
		{name: "AES-128 key", encoded: base64.StdEncoding.EncodeToString(make([]byte, 16))},
		{name: "empty", encoded: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := crypto.DecodeKeyBase64(tt.encoded)
			assert.Error(t, err)
		})
	}

	_, err := crypto.NewAESEncryptor(nil)
	assert.Error(t, err, "a missing key never yields an encryptor")
}

func TestGenerateKey_IsRandom(t *testing.T) {
	first, second := newEncodedKey(t), newEncodedKey(t)
	assert.NotEqual(t, first, second)
}

// ============================================================================
// Credentials at rest
// ============================================================================

func TestCredentials_StoredEncrypted(t *testing.T) {
	store := repotest.New()
	reg := provider.NewRegistry(store, encryptorFromEnv(t, newEncodedKey(t)), time.Minute)
	orgID := uuid.New()

	saveStripeCredentials(t, reg, orgID)

	cfg := storedConfig(t, store, orgID)
	assert.False(t, bytes.Contains(cfg.SecretKeyEncrypted, []byte("sk_test_")), "secret key is not stored in clear")
	assert.False(t, bytes.Contains(cfg.WebhookSecretEncrypted, []byte("whsec_")), "webhook secret is not stored in clear")
	_, err := base64.StdEncoding.DecodeString(string(cfg.SecretKeyEncrypted))
	assert.NoError(t, err, "the column holds base64 text")

	creds, err := reg.Credentials(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, stripeSecretKey, creds.SecretKey)
	assert.Equal(t, stripeWebhookSecret, creds.WebhookSecret)
}

func TestCredentials_SameSecretEncryptsDifferently(t *testing.T) {
	store := repotest.New()
	reg := provider.NewRegistry(store, encryptorFromEnv(t, newEncodedKey(t)), time.Minute)
	first, second := uuid.New(), uuid.New()

	saveStripeCredentials(t, reg, first)
	saveStripeCredentials(t, reg, second)

	assert.NotEqual(t,
		storedConfig(t, store, first).SecretKeyEncrypted,
		storedConfig(t, store, second).SecretKeyEncrypted,
		"a fresh nonce per value keeps organizations sharing a key indistinguishable")
}

func TestCredentials_RotatedKeyCannotRead(t *testing.T) {
	store := repotest.New()
	orgID := uuid.New()
	saveStripeCredentials(t, provider.NewRegistry(store, encryptorFromEnv(t, newEncodedKey(t)), time.Minute), orgID)

	rotated := provider.NewRegistry(store, encryptorFromEnv(t, newEncodedKey(t)), time.Minute)
	_, err := rotated.Credentials(context.Background(), orgID)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.EINTERNAL))
	assert.NotContains(t, err.Error(), stripeSecretKey)
}

func TestCredentials_TamperedColumnFails(t *testing.T) {
	store := repotest.New()
	enc := encryptorFromEnv(t, newEncodedKey(t))
	reg := provider.NewRegistry(store, enc, time.Minute)
	orgID := uuid.New()
	saveStripeCredentials(t, reg, orgID)

	cfg := storedConfig(t, store, orgID)
	tampered := bytes.Clone(cfg.WebhookSecretEncrypted)
	if tampered[10] == 'A' {
		tampered[10] = 'B'
	} else {
		tampered[10] = 'A'
	}
	_, err := store.UpsertOrganizationPaymentConfig(context.Background(), repository.UpsertOrganizationPaymentConfigParams{
		OrganizationID:         cfg.OrganizationID,
		Provider:               cfg.Provider,
		SecretKeyEncrypted:     cfg.SecretKeyEncrypted,
		WebhookSecretEncrypted: tampered,
		IsTestMode:             cfg.IsTestMode,
	})
	require.NoError(t, err)

	// A fresh registry, so nothing is served from cache.
	_, err = provider.NewRegistry(store, enc, time.Minute).Credentials(context.Background(), orgID)
	assert.True(t, domain.IsCode(err, domain.EINTERNAL))
}

func TestDecrypt_TruncatedValue(t *testing.T) {
	enc := encryptorFromEnv(t, newEncodedKey(t))

	_, err := enc.Decrypt([]byte(base64.StdEncoding.EncodeToString([]byte("short"))))
	assert.ErrorIs(t, err, crypto.ErrCiphertextTooShort)

	_, err = enc.Decrypt([]byte("not-valid-base64!!!"))
	assert.Error(t, err)
}
