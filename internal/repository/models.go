package repository

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Organization struct {
	ID        pgtype.UUID        `json:"id"`
	Name      string             `json:"name"`
	Slug      string             `json:"slug"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
}

type OrganizationPaymentConfig struct {
	OrganizationID         pgtype.UUID        `json:"organization_id"`
	Provider               string             `json:"provider"`
	SecretKeyEncrypted     []byte             `json:"-"`
	WebhookSecretEncrypted []byte             `json:"-"`
	IsTestMode             bool               `json:"is_test_mode"`
	CreatedAt              pgtype.Timestamptz `json:"created_at"`
	UpdatedAt              pgtype.Timestamptz `json:"updated_at"`
}

type Contact struct {
	ID             pgtype.UUID        `json:"id"`
	OrganizationID pgtype.UUID        `json:"organization_id"`
	FullName       string             `json:"full_name"`
	Email          pgtype.Text        `json:"email"`
	Phone          pgtype.Text        `json:"phone"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
}

type Company struct {
	ID             pgtype.UUID        `json:"id"`
	OrganizationID pgtype.UUID        `json:"organization_id"`
	Name           string             `json:"name"`
	Email          pgtype.Text        `json:"email"`
	Phone          pgtype.Text        `json:"phone"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
}

type DocumentSequence struct {
	OrganizationID pgtype.UUID        `json:"organization_id"`
	DocumentType   string             `json:"document_type"`
	Period         int32              `json:"period"`
	Prefix         string             `json:"prefix"`
	Padding        int32              `json:"padding"`
	LastValue      int64              `json:"last_value"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
	UpdatedAt      pgtype.Timestamptz `json:"updated_at"`
}

type Document struct {
	ID                 pgtype.UUID        `json:"id"`
	OrganizationID     pgtype.UUID        `json:"organization_id"`
	DocumentType       string             `json:"document_type"`
	Number             pgtype.Text        `json:"number"`
	Status             string             `json:"status"`
	Currency           string             `json:"currency"`
	SubtotalCents      int64              `json:"subtotal_cents"`
	VatCents           int64              `json:"vat_cents"`
	TotalCents         int64              `json:"total_cents"`
	PaidCents          int64              `json:"paid_cents"`
	IssueDate          pgtype.Date        `json:"issue_date"`
	DueDate            pgtype.Date        `json:"due_date"`
	ValidUntil         pgtype.Date        `json:"valid_until"`
	ContactID          pgtype.UUID        `json:"contact_id"`
	CompanyID          pgtype.UUID        `json:"company_id"`
	CreatedBy          pgtype.UUID        `json:"created_by"`
	Notes              pgtype.Text        `json:"notes"`
	SourceQuoteID      pgtype.UUID        `json:"source_quote_id"`
	ConvertedInvoiceID pgtype.UUID        `json:"converted_invoice_id"`
	SentAt             pgtype.Timestamptz `json:"sent_at"`
	PaidAt             pgtype.Timestamptz `json:"paid_at"`
	CancelledAt        pgtype.Timestamptz `json:"cancelled_at"`
	SignedAt           pgtype.Timestamptz `json:"signed_at"`
	SignerName         pgtype.Text        `json:"signer_name"`
	SignerEmail        pgtype.Text        `json:"signer_email"`
	SignerIp           pgtype.Text        `json:"signer_ip"`
	SignatureImageKey  pgtype.Text        `json:"signature_image_key"`
	ReminderCount      int32              `json:"reminder_count"`
	LastReminderAt     pgtype.Timestamptz `json:"last_reminder_at"`
	DeletedAt          pgtype.Timestamptz `json:"deleted_at"`
	CreatedAt          pgtype.Timestamptz `json:"created_at"`
	UpdatedAt          pgtype.Timestamptz `json:"updated_at"`
}

type DocumentLine struct {
	ID                pgtype.UUID    `json:"id"`
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

type Payment struct {
	ID             pgtype.UUID        `json:"id"`
	OrganizationID pgtype.UUID        `json:"organization_id"`
	InvoiceID      pgtype.UUID        `json:"invoice_id"`
	AmountCents    int64              `json:"amount_cents"`
	Currency       string             `json:"currency"`
	Method         string             `json:"method"`
	Reference      string             `json:"reference"`
	PaidAt         pgtype.Timestamptz `json:"paid_at"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
}

type Notification struct {
	ID             pgtype.UUID        `json:"id"`
	OrganizationID pgtype.UUID        `json:"organization_id"`
	UserID         pgtype.UUID        `json:"user_id"`
	Type           string             `json:"type"`
	DocumentID     pgtype.UUID        `json:"document_id"`
	Title          string             `json:"title"`
	Body           string             `json:"body"`
	DedupeKey      string             `json:"dedupe_key"`
	ReadAt         pgtype.Timestamptz `json:"read_at"`
	DismissedAt    pgtype.Timestamptz `json:"dismissed_at"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
}

type Job struct {
	ID             pgtype.UUID        `json:"id"`
	OrganizationID pgtype.UUID        `json:"organization_id"`
	JobType        string             `json:"job_type"`
	Queue          string             `json:"queue"`
	Payload        []byte             `json:"payload"`
	DedupeKey      pgtype.Text        `json:"dedupe_key"`
	Status         string             `json:"status"`
	Priority       int32              `json:"priority"`
	RetryCount     int32              `json:"retry_count"`
	MaxRetries     int32              `json:"max_retries"`
	ScheduledAt    pgtype.Timestamptz `json:"scheduled_at"`
	TimeoutSeconds int32              `json:"timeout_seconds"`
	WorkerID       pgtype.Text        `json:"worker_id"`
	StartedAt      pgtype.Timestamptz `json:"started_at"`
	CompletedAt    pgtype.Timestamptz `json:"completed_at"`
	ErrorMessage   pgtype.Text        `json:"error_message"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
	UpdatedAt      pgtype.Timestamptz `json:"updated_at"`
}

type GetDocumentRecipientRow struct {
	Name  pgtype.Text `json:"name"`
	Email pgtype.Text `json:"email"`
	Phone pgtype.Text `json:"phone"`
}
