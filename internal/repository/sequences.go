package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// The upsert takes the scope's row lock, so concurrent callers serialize on
// it and each receives a distinct, consecutive last_value.
const nextDocumentSequenceValue = `
INSERT INTO document_sequences (organization_id, document_type, period, prefix, padding, last_value)
VALUES ($1, $2, $3, $4, $5, 1)
ON CONFLICT (organization_id, document_type, period)
DO UPDATE SET last_value = document_sequences.last_value + 1, updated_at = now()
RETURNING organization_id, document_type, period, prefix, padding, last_value, created_at, updated_at
`

type NextDocumentSequenceValueParams struct {
	OrganizationID pgtype.UUID `json:"organization_id"`
	DocumentType   string      `json:"document_type"`
	Period         int32       `json:"period"`
	Prefix         string      `json:"prefix"`
	Padding        int32       `json:"padding"`
}

func (q *Queries) NextDocumentSequenceValue(ctx context.Context, arg NextDocumentSequenceValueParams) (DocumentSequence, error) {
	row := q.db.QueryRow(ctx, nextDocumentSequenceValue,
		arg.OrganizationID,
		arg.DocumentType,
		arg.Period,
		arg.Prefix,
		arg.Padding,
	)
	var i DocumentSequence
	err := row.Scan(
		&i.OrganizationID,
		&i.DocumentType,
		&i.Period,
		&i.Prefix,
		&i.Padding,
		&i.LastValue,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getDocumentSequence = `
SELECT organization_id, document_type, period, prefix, padding, last_value, created_at, updated_at
FROM document_sequences
WHERE organization_id = $1 AND document_type = $2 AND period = $3
`

type GetDocumentSequenceParams struct {
	OrganizationID pgtype.UUID `json:"organization_id"`
	DocumentType   string      `json:"document_type"`
	Period         int32       `json:"period"`
}

func (q *Queries) GetDocumentSequence(ctx context.Context, arg GetDocumentSequenceParams) (DocumentSequence, error) {
	row := q.db.QueryRow(ctx, getDocumentSequence, arg.OrganizationID, arg.DocumentType, arg.Period)
	var i DocumentSequence
	err := row.Scan(
		&i.OrganizationID,
		&i.DocumentType,
		&i.Period,
		&i.Prefix,
		&i.Padding,
		&i.LastValue,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
