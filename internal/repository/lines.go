package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createDocumentLine = `
INSERT INTO document_lines (
    document_id, organization_id, position, description, quantity, unit_price_cents,
    vat_rate, line_subtotal_cents, line_vat_cents, line_total_cents
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, document_id, organization_id, position, description, quantity, unit_price_cents,
          vat_rate, line_subtotal_cents, line_vat_cents, line_total_cents
`

type CreateDocumentLineParams struct {
	DocumentID        pgtype.UUID    `json:"document_id"`
	OrganizationID    pgtype.UUID    `json:"organization_id"`
	Position          int32          `json:"position"`
	Description       string         `json:"description"`
	Quantity          pgtype.Numeric `json:"quantity"`
	UnitPriceCents    int64          `json:"unit_price_cents"`
	VatRate           pgtype.Numeric `json:"vat_rate"`
	LineSubtotalCents int64          `json:"line_subtotal_cents"`
	LineVatCents      int64          `json:"line_vat_cents"`
	LineTotalCents    int64          `json:"line_total_cents"`
}

func (q *Queries) CreateDocumentLine(ctx context.Context, arg CreateDocumentLineParams) (DocumentLine, error) {
	row := q.db.QueryRow(ctx, createDocumentLine,
		arg.DocumentID,
		arg.OrganizationID,
		arg.Position,
		arg.Description,
		arg.Quantity,
		arg.UnitPriceCents,
		arg.VatRate,
		arg.LineSubtotalCents,
		arg.LineVatCents,
		arg.LineTotalCents,
	)
	var i DocumentLine
	err := row.Scan(
		&i.ID,
		&i.DocumentID,
		&i.OrganizationID,
		&i.Position,
		&i.Description,
		&i.Quantity,
		&i.UnitPriceCents,
		&i.VatRate,
		&i.LineSubtotalCents,
		&i.LineVatCents,
		&i.LineTotalCents,
	)
	return i, err
}

const deleteDocumentLines = `
DELETE FROM document_lines WHERE document_id = $1 AND organization_id = $2
`

type DeleteDocumentLinesParams struct {
	DocumentID     pgtype.UUID `json:"document_id"`
	OrganizationID pgtype.UUID `json:"organization_id"`
}

func (q *Queries) DeleteDocumentLines(ctx context.Context, arg DeleteDocumentLinesParams) error {
	_, err := q.db.Exec(ctx, deleteDocumentLines, arg.DocumentID, arg.OrganizationID)
	return err
}

const listDocumentLines = `
SELECT id, document_id, organization_id, position, description, quantity, unit_price_cents,
       vat_rate, line_subtotal_cents, line_vat_cents, line_total_cents
FROM document_lines
WHERE document_id = $1 AND organization_id = $2
ORDER BY position
`

type ListDocumentLinesParams struct {
	DocumentID     pgtype.UUID `json:"document_id"`
	OrganizationID pgtype.UUID `json:"organization_id"`
}

func (q *Queries) ListDocumentLines(ctx context.Context, arg ListDocumentLinesParams) ([]DocumentLine, error) {
	rows, err := q.db.Query(ctx, listDocumentLines, arg.DocumentID, arg.OrganizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DocumentLine
	for rows.Next() {
		var i DocumentLine
		if err := rows.Scan(
			&i.ID,
			&i.DocumentID,
			&i.OrganizationID,
			&i.Position,
			&i.Description,
			&i.Quantity,
			&i.UnitPriceCents,
			&i.VatRate,
			&i.LineSubtotalCents,
			&i.LineVatCents,
			&i.LineTotalCents,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
