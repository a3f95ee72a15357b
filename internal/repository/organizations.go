package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createOrganization = `
INSERT INTO organizations (name, slug)
VALUES ($1, $2)
RETURNING id, name, slug, created_at, updated_at
`

type CreateOrganizationParams struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (q *Queries) CreateOrganization(ctx context.Context, arg CreateOrganizationParams) (Organization, error) {
	row := q.db.QueryRow(ctx, createOrganization, arg.Name, arg.Slug)
	var i Organization
	err := row.Scan(&i.ID, &i.Name, &i.Slug, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const getOrganization = `
SELECT id, name, slug, created_at, updated_at
FROM organizations
WHERE id = $1
`

func (q *Queries) GetOrganization(ctx context.Context, id pgtype.UUID) (Organization, error) {
	row := q.db.QueryRow(ctx, getOrganization, id)
	var i Organization
	err := row.Scan(&i.ID, &i.Name, &i.Slug, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const listOrganizationIDs = `
SELECT id FROM organizations ORDER BY created_at
`

func (q *Queries) ListOrganizationIDs(ctx context.Context) ([]pgtype.UUID, error) {
	rows, err := q.db.Query(ctx, listOrganizationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []pgtype.UUID
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	return items, rows.Err()
}

const getOrganizationPaymentConfig = `
SELECT organization_id, provider, secret_key_encrypted, webhook_secret_encrypted,
       is_test_mode, created_at, updated_at
FROM organization_payment_configs
WHERE organization_id = $1
`

func (q *Queries) GetOrganizationPaymentConfig(ctx context.Context, organizationID pgtype.UUID) (OrganizationPaymentConfig, error) {
	row := q.db.QueryRow(ctx, getOrganizationPaymentConfig, organizationID)
	var i OrganizationPaymentConfig
	err := row.Scan(
		&i.OrganizationID,
		&i.Provider,
		&i.SecretKeyEncrypted,
		&i.WebhookSecretEncrypted,
		&i.IsTestMode,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertOrganizationPaymentConfig = `
INSERT INTO organization_payment_configs (
    organization_id, provider, secret_key_encrypted, webhook_secret_encrypted, is_test_mode
) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (organization_id) DO UPDATE SET
    provider = EXCLUDED.provider,
    secret_key_encrypted = EXCLUDED.secret_key_encrypted,
    webhook_secret_encrypted = EXCLUDED.webhook_secret_encrypted,
    is_test_mode = EXCLUDED.is_test_mode,
    updated_at = now()
RETURNING organization_id, provider, secret_key_encrypted, webhook_secret_encrypted,
          is_test_mode, created_at, updated_at
`

type UpsertOrganizationPaymentConfigParams struct {
	OrganizationID         pgtype.UUID `json:"organization_id"`
	Provider               string      `json:"provider"`
	SecretKeyEncrypted     []byte      `json:"secret_key_encrypted"`
	WebhookSecretEncrypted []byte      `json:"webhook_secret_encrypted"`
	IsTestMode             bool        `json:"is_test_mode"`
}

func (q *Queries) UpsertOrganizationPaymentConfig(ctx context.Context, arg UpsertOrganizationPaymentConfigParams) (OrganizationPaymentConfig, error) {
	row := q.db.QueryRow(ctx, upsertOrganizationPaymentConfig,
		arg.OrganizationID,
		arg.Provider,
		arg.SecretKeyEncrypted,
		arg.WebhookSecretEncrypted,
		arg.IsTestMode,
	)
	var i OrganizationPaymentConfig
	err := row.Scan(
		&i.OrganizationID,
		&i.Provider,
		&i.SecretKeyEncrypted,
		&i.WebhookSecretEncrypted,
		&i.IsTestMode,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
