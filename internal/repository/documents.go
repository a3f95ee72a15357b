package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const documentColumns = `id, organization_id, document_type, number, status, currency,
    subtotal_cents, vat_cents, total_cents, paid_cents, issue_date, due_date, valid_until,
    contact_id, company_id, created_by, notes, source_quote_id, converted_invoice_id,
    sent_at, paid_at, cancelled_at, signed_at, signer_name, signer_email, signer_ip,
    signature_image_key, reminder_count, last_reminder_at, deleted_at, created_at, updated_at`

func scanDocument(row pgx.Row) (Document, error) {
	var i Document
	err := row.Scan(
		&i.ID,
		&i.OrganizationID,
		&i.DocumentType,
		&i.Number,
		&i.Status,
		&i.Currency,
		&i.SubtotalCents,
		&i.VatCents,
		&i.TotalCents,
		&i.PaidCents,
		&i.IssueDate,
		&i.DueDate,
		&i.ValidUntil,
		&i.ContactID,
		&i.CompanyID,
		&i.CreatedBy,
		&i.Notes,
		&i.SourceQuoteID,
		&i.ConvertedInvoiceID,
		&i.SentAt,
		&i.PaidAt,
		&i.CancelledAt,
		&i.SignedAt,
		&i.SignerName,
		&i.SignerEmail,
		&i.SignerIp,
		&i.SignatureImageKey,
		&i.ReminderCount,
		&i.LastReminderAt,
		&i.DeletedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func scanDocuments(rows pgx.Rows, err error) ([]Document, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Document
	for rows.Next() {
		i, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createDocument = `
INSERT INTO documents (
    organization_id, document_type, status, currency, subtotal_cents, vat_cents, total_cents,
    issue_date, due_date, valid_until, contact_id, company_id, created_by, notes, source_quote_id
) VALUES ($1, $2, 'draft', $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING ` + documentColumns

type CreateDocumentParams struct {
	OrganizationID pgtype.UUID `json:"organization_id"`
	DocumentType   string      `json:"document_type"`
	Currency       string      `json:"currency"`
	SubtotalCents  int64       `json:"subtotal_cents"`
	VatCents       int64       `json:"vat_cents"`
	TotalCents     int64       `json:"total_cents"`
	IssueDate      pgtype.Date `json:"issue_date"`
	DueDate        pgtype.Date `json:"due_date"`
	ValidUntil     pgtype.Date `json:"valid_until"`
	ContactID      pgtype.UUID `json:"contact_id"`
	CompanyID      pgtype.UUID `json:"company_id"`
	CreatedBy      pgtype.UUID `json:"created_by"`
	Notes          pgtype.Text `json:"notes"`
	SourceQuoteID  pgtype.UUID `json:"source_quote_id"`
}

func (q *Queries) CreateDocument(ctx context.Context, arg CreateDocumentParams) (Document, error) {
	return scanDocument(q.db.QueryRow(ctx, createDocument,
		arg.OrganizationID,
		arg.DocumentType,
		arg.Currency,
		arg.SubtotalCents,
		arg.VatCents,
		arg.TotalCents,
		arg.IssueDate,
		arg.DueDate,
		arg.ValidUntil,
		arg.ContactID,
		arg.CompanyID,
		arg.CreatedBy,
		arg.Notes,
		arg.SourceQuoteID,
	))
}

const getDocument = `
SELECT ` + documentColumns + `
FROM documents
WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL
`

type GetDocumentParams struct {
	ID             pgtype.UUID `json:"id"`
	OrganizationID pgtype.UUID `json:"organization_id"`
}

func (q *Queries) GetDocument(ctx context.Context, arg GetDocumentParams) (Document, error) {
	return scanDocument(q.db.QueryRow(ctx, getDocument, arg.ID, arg.OrganizationID))
}

const getDocumentForUpdate = getDocument + `FOR UPDATE`

func (q *Queries) GetDocumentForUpdate(ctx context.Context, arg GetDocumentParams) (Document, error) {
	return scanDocument(q.db.QueryRow(ctx, getDocumentForUpdate, arg.ID, arg.OrganizationID))
}

// Unscoped lookup, used only to route public requests (signature page,
// payment return, webhook) to the owning organization.
const getDocumentByID = `
SELECT ` + documentColumns + `
FROM documents
WHERE id = $1 AND deleted_at IS NULL
`

func (q *Queries) GetDocumentByID(ctx context.Context, id pgtype.UUID) (Document, error) {
	return scanDocument(q.db.QueryRow(ctx, getDocumentByID, id))
}

const listDocuments = `
SELECT ` + documentColumns + `
FROM documents
WHERE organization_id = $1
  AND deleted_at IS NULL
  AND ($2::text IS NULL OR document_type = $2)
  AND ($3::text IS NULL OR status = $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`

type ListDocumentsParams struct {
	OrganizationID pgtype.UUID `json:"organization_id"`
	DocumentType   pgtype.Text `json:"document_type"`
	Status         pgtype.Text `json:"status"`
	Limit          int32       `json:"limit"`
	Offset         int32       `json:"offset"`
}

func (q *Queries) ListDocuments(ctx context.Context, arg ListDocumentsParams) ([]Document, error) {
	return scanDocuments(q.db.Query(ctx, listDocuments,
		arg.OrganizationID,
		arg.DocumentType,
		arg.Status,
		arg.Limit,
		arg.Offset,
	))
}

const updateDocumentDraft = `
UPDATE documents SET
    currency = $3,
    subtotal_cents = $4,
    vat_cents = $5,
    total_cents = $6,
    issue_date = $7,
    due_date = $8,
    valid_until = $9,
    contact_id = $10,
    company_id = $11,
    notes = $12,
    updated_at = now()
WHERE id = $1 AND organization_id = $2 AND status = 'draft' AND deleted_at IS NULL
RETURNING ` + documentColumns

type UpdateDocumentDraftParams struct {
	ID             pgtype.UUID `json:"id"`
	OrganizationID pgtype.UUID `json:"organization_id"`
	Currency       string      `json:"currency"`
	SubtotalCents  int64       `json:"subtotal_cents"`
	VatCents       int64       `json:"vat_cents"`
	TotalCents     int64       `json:"total_cents"`
	IssueDate      pgtype.Date `json:"issue_date"`
	DueDate        pgtype.Date `json:"due_date"`
	ValidUntil     pgtype.Date `json:"valid_until"`
	ContactID      pgtype.UUID `json:"contact_id"`
	CompanyID      pgtype.UUID `json:"company_id"`
	Notes          pgtype.Text `json:"notes"`
}

func (q *Queries) UpdateDocumentDraft(ctx context.Context, arg UpdateDocumentDraftParams) (Document, error) {
	return scanDocument(q.db.QueryRow(ctx, updateDocumentDraft,
		arg.ID,
		arg.OrganizationID,
		arg.Currency,
		arg.SubtotalCents,
		arg.VatCents,
		arg.TotalCents,
		arg.IssueDate,
		arg.DueDate,
		arg.ValidUntil,
		arg.ContactID,
		arg.CompanyID,
		arg.Notes,
	))
}

// COALESCE keeps an already assigned number; the immutability trigger backs
// this up.
const markDocumentSent = `
UPDATE documents SET
    number = COALESCE(number, $3),
    status = 'sent',
    sent_at = $4,
    updated_at = now()
WHERE id = $1 AND organization_id = $2 AND status = 'draft' AND deleted_at IS NULL
RETURNING ` + documentColumns

type MarkDocumentSentParams struct {
	ID             pgtype.UUID        `json:"id"`
	OrganizationID pgtype.UUID        `json:"organization_id"`
	Number         string             `json:"number"`
	SentAt         pgtype.Timestamptz `json:"sent_at"`
}

func (q *Queries) MarkDocumentSent(ctx context.Context, arg MarkDocumentSentParams) (Document, error) {
	return scanDocument(q.db.QueryRow(ctx, markDocumentSent, arg.ID, arg.OrganizationID, arg.Number, arg.SentAt))
}

const transitionDocument = `
UPDATE documents SET
    status = $3,
    cancelled_at = CASE WHEN $3 = 'cancelled' THEN $5 ELSE cancelled_at END,
    updated_at = now()
WHERE id = $1 AND organization_id = $2 AND status = ANY($4::text[]) AND deleted_at IS NULL
RETURNING ` + documentColumns

type TransitionDocumentParams struct {
	ID             pgtype.UUID        `json:"id"`
	OrganizationID pgtype.UUID        `json:"organization_id"`
	ToStatus       string             `json:"to_status"`
	FromStatuses   []string           `json:"from_statuses"`
	At             pgtype.Timestamptz `json:"at"`
}

func (q *Queries) TransitionDocument(ctx context.Context, arg TransitionDocumentParams) (Document, error) {
	return scanDocument(q.db.QueryRow(ctx, transitionDocument,
		arg.ID,
		arg.OrganizationID,
		arg.ToStatus,
		arg.FromStatuses,
		arg.At,
	))
}

// ApplyInvoicePayment adds a payment to paid_cents. The invoice moves to paid
// only once the balance is covered.
const applyInvoicePayment = `
UPDATE documents SET
    status = CASE WHEN paid_cents + $3 >= total_cents THEN 'paid' ELSE status END,
    paid_at = CASE WHEN paid_cents + $3 >= total_cents THEN $4 ELSE paid_at END,
    paid_cents = paid_cents + $3,
    updated_at = now()
WHERE id = $1 AND organization_id = $2
  AND document_type = 'invoice'
  AND status IN ('sent', 'overdue')
  AND deleted_at IS NULL
RETURNING ` + documentColumns

type ApplyInvoicePaymentParams struct {
	ID             pgtype.UUID        `json:"id"`
	OrganizationID pgtype.UUID        `json:"organization_id"`
	PaidCents      int64              `json:"paid_cents"`
	PaidAt         pgtype.Timestamptz `json:"paid_at"`
}

func (q *Queries) ApplyInvoicePayment(ctx context.Context, arg ApplyInvoicePaymentParams) (Document, error) {
	return scanDocument(q.db.QueryRow(ctx, applyInvoicePayment, arg.ID, arg.OrganizationID, arg.PaidCents, arg.PaidAt))
}

// ExcludeIDs skips invoices the current sweep already tried.
const listOverdueCandidates = `
SELECT ` + documentColumns + `
FROM documents
WHERE organization_id = $1
  AND document_type = 'invoice'
  AND status = 'sent'
  AND due_date < $2
  AND deleted_at IS NULL
  AND NOT (id = ANY(coalesce($4::uuid[], '{}')))
ORDER BY due_date, id
LIMIT $3
`

type ListOverdueCandidatesParams struct {
	OrganizationID pgtype.UUID   `json:"organization_id"`
	Today          pgtype.Date   `json:"today"`
	Limit          int32         `json:"limit"`
	ExcludeIDs     []pgtype.UUID `json:"exclude_ids"`
}

func (q *Queries) ListOverdueCandidates(ctx context.Context, arg ListOverdueCandidatesParams) ([]Document, error) {
	return scanDocuments(q.db.Query(ctx, listOverdueCandidates, arg.OrganizationID, arg.Today, arg.Limit, arg.ExcludeIDs))
}

// The status guard re-checks at write time, so an invoice paid between the
// candidate scan and this update is left alone.
const markInvoiceOverdue = `
UPDATE documents SET status = 'overdue', updated_at = now()
WHERE id = $1 AND organization_id = $2
  AND document_type = 'invoice'
  AND status = 'sent'
  AND due_date < $3
  AND deleted_at IS NULL
RETURNING ` + documentColumns

type MarkInvoiceOverdueParams struct {
	ID             pgtype.UUID `json:"id"`
	OrganizationID pgtype.UUID `json:"organization_id"`
	Today          pgtype.Date `json:"today"`
}

func (q *Queries) MarkInvoiceOverdue(ctx context.Context, arg MarkInvoiceOverdueParams) (Document, error) {
	return scanDocument(q.db.QueryRow(ctx, markInvoiceOverdue, arg.ID, arg.OrganizationID, arg.Today))
}

const signQuote = `
UPDATE documents SET
    status = 'accepted',
    signed_at = $3,
    signer_name = $4,
    signer_email = $5,
    signer_ip = $6,
    signature_image_key = $7,
    updated_at = now()
WHERE id = $1 AND organization_id = $2
  AND document_type = 'quote'
  AND status = 'sent'
  AND signed_at IS NULL
  AND deleted_at IS NULL
RETURNING ` + documentColumns

type SignQuoteParams struct {
	ID                pgtype.UUID        `json:"id"`
	OrganizationID    pgtype.UUID        `json:"organization_id"`
	SignedAt          pgtype.Timestamptz `json:"signed_at"`
	SignerName        pgtype.Text        `json:"signer_name"`
	SignerEmail       pgtype.Text        `json:"signer_email"`
	SignerIp          pgtype.Text        `json:"signer_ip"`
	SignatureImageKey pgtype.Text        `json:"signature_image_key"`
}

func (q *Queries) SignQuote(ctx context.Context, arg SignQuoteParams) (Document, error) {
	return scanDocument(q.db.QueryRow(ctx, signQuote,
		arg.ID,
		arg.OrganizationID,
		arg.SignedAt,
		arg.SignerName,
		arg.SignerEmail,
		arg.SignerIp,
		arg.SignatureImageKey,
	))
}

const linkConvertedInvoice = `
UPDATE documents SET converted_invoice_id = $3, updated_at = now()
WHERE id = $1 AND organization_id = $2
  AND document_type = 'quote'
  AND status = 'accepted'
  AND converted_invoice_id IS NULL
RETURNING ` + documentColumns

type LinkConvertedInvoiceParams struct {
	ID                 pgtype.UUID `json:"id"`
	OrganizationID     pgtype.UUID `json:"organization_id"`
	ConvertedInvoiceID pgtype.UUID `json:"converted_invoice_id"`
}

func (q *Queries) LinkConvertedInvoice(ctx context.Context, arg LinkConvertedInvoiceParams) (Document, error) {
	return scanDocument(q.db.QueryRow(ctx, linkConvertedInvoice, arg.ID, arg.OrganizationID, arg.ConvertedInvoiceID))
}

// RecordReminderDelivery counts reminder step $3 once. Later channels of the
// same step and replays match no row.
const recordReminderDelivery = `
UPDATE documents SET
    reminder_count = $3,
    last_reminder_at = $4,
    updated_at = now()
WHERE id = $1 AND organization_id = $2
  AND reminder_count < $3
  AND status IN ('sent', 'overdue')
  AND deleted_at IS NULL
RETURNING ` + documentColumns

type RecordReminderDeliveryParams struct {
	ID             pgtype.UUID        `json:"id"`
	OrganizationID pgtype.UUID        `json:"organization_id"`
	Sequence       int32              `json:"sequence"`
	RemindedAt     pgtype.Timestamptz `json:"reminded_at"`
}

func (q *Queries) RecordReminderDelivery(ctx context.Context, arg RecordReminderDeliveryParams) (Document, error) {
	return scanDocument(q.db.QueryRow(ctx, recordReminderDelivery,
		arg.ID,
		arg.OrganizationID,
		arg.Sequence,
		arg.RemindedAt,
	))
}

const softDeleteDocument = `
UPDATE documents SET deleted_at = $3, updated_at = now()
WHERE id = $1 AND organization_id = $2
  AND status = 'cancelled'
  AND deleted_at IS NULL
RETURNING ` + documentColumns

type SoftDeleteDocumentParams struct {
	ID             pgtype.UUID        `json:"id"`
	OrganizationID pgtype.UUID        `json:"organization_id"`
	DeletedAt      pgtype.Timestamptz `json:"deleted_at"`
}

func (q *Queries) SoftDeleteDocument(ctx context.Context, arg SoftDeleteDocumentParams) (Document, error) {
	return scanDocument(q.db.QueryRow(ctx, softDeleteDocument, arg.ID, arg.OrganizationID, arg.DeletedAt))
}

const deleteDraftDocument = `
DELETE FROM documents
WHERE id = $1 AND organization_id = $2
  AND number IS NULL
  AND status IN ('draft', 'cancelled')
`

type DeleteDraftDocumentParams struct {
	ID             pgtype.UUID `json:"id"`
	OrganizationID pgtype.UUID `json:"organization_id"`
}

func (q *Queries) DeleteDraftDocument(ctx context.Context, arg DeleteDraftDocumentParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteDraftDocument, arg.ID, arg.OrganizationID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
