package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, organization_id, invoice_id, amount_cents, currency, method, reference, paid_at, created_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var i Payment
	err := row.Scan(
		&i.ID,
		&i.OrganizationID,
		&i.InvoiceID,
		&i.AmountCents,
		&i.Currency,
		&i.Method,
		&i.Reference,
		&i.PaidAt,
		&i.CreatedAt,
	)
	return i, err
}

// CreatePayment returns pgx.ErrNoRows when the organization already has a
// payment with the same reference.
const createPayment = `
INSERT INTO payments (organization_id, invoice_id, amount_cents, currency, method, reference, paid_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (organization_id, reference) DO NOTHING
RETURNING ` + paymentColumns

type CreatePaymentParams struct {
	OrganizationID pgtype.UUID        `json:"organization_id"`
	InvoiceID      pgtype.UUID        `json:"invoice_id"`
	AmountCents    int64              `json:"amount_cents"`
	Currency       string             `json:"currency"`
	Method         string             `json:"method"`
	Reference      string             `json:"reference"`
	PaidAt         pgtype.Timestamptz `json:"paid_at"`
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, createPayment,
		arg.OrganizationID,
		arg.InvoiceID,
		arg.AmountCents,
		arg.Currency,
		arg.Method,
		arg.Reference,
		arg.PaidAt,
	))
}

const getPaymentByReference = `
SELECT ` + paymentColumns + ` FROM payments WHERE organization_id = $1 AND reference = $2
`

type GetPaymentByReferenceParams struct {
	OrganizationID pgtype.UUID `json:"organization_id"`
	Reference      string      `json:"reference"`
}

func (q *Queries) GetPaymentByReference(ctx context.Context, arg GetPaymentByReferenceParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPaymentByReference, arg.OrganizationID, arg.Reference))
}

const listInvoicePayments = `
SELECT ` + paymentColumns + `
FROM payments
WHERE invoice_id = $1 AND organization_id = $2
ORDER BY paid_at
`

type ListInvoicePaymentsParams struct {
	InvoiceID      pgtype.UUID `json:"invoice_id"`
	OrganizationID pgtype.UUID `json:"organization_id"`
}

func (q *Queries) ListInvoicePayments(ctx context.Context, arg ListInvoicePaymentsParams) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listInvoicePayments, arg.InvoiceID, arg.OrganizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Payment
	for rows.Next() {
		i, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
