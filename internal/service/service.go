// Package service implements the document ledger, payment reconciliation,
// collection and notification use cases on top of repository.Store.
//
// Operations read the organization from the request context
// (domain.RequireOrganizationID). The public quote signature and the payment
// processor callbacks resolve the organization from the document instead.
package service

import (
	"strings"
	"time"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/postgres"
	"github.com/dukerupert/comptoir/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultReminderDelay is how long after sending an invoice the first payment
// reminder fires.
const DefaultReminderDelay = 10 * 24 * time.Hour

// DefaultPaymentTermDays applies when an invoice is created without a due
// date, and as the validity of a quote without one.
const DefaultPaymentTermDays = 30

const (
	defaultCurrency  = "EUR"
	defaultListLimit = 50
	maxListLimit     = 200
)

type options struct {
	now              func() time.Time
	reminderDelay    time.Duration
	overdueBatchSize int32
}

// Option configures a service.
type Option func(*options)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithReminderDelay overrides DefaultReminderDelay.
func WithReminderDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.reminderDelay = d
		}
	}
}

// WithOverdueBatchSize sets how many invoices one page of the overdue sweep
// loads.
func WithOverdueBatchSize(n int32) Option {
	return func(o *options) {
		if n > 0 {
			o.overdueBatchSize = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now, reminderDelay: DefaultReminderDelay, overdueBatchSize: defaultOverdueBatchSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// today is the current UTC calendar date.
func (o options) today() time.Time {
	return dateOf(o.now())
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func normalizeCurrency(c string) (string, error) {
	if c == "" {
		return defaultCurrency, nil
	}
	c = strings.ToUpper(strings.TrimSpace(c))
	if len(c) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return c, nil
}

func clampLimit(limit, offset int32) (int32, int32) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Document is the API view of a quote or invoice.
type Document struct {
	ID                 uuid.UUID             `json:"id"`
	OrganizationID     uuid.UUID             `json:"organization_id"`
	Type               domain.DocumentType   `json:"type"`
	Number             string                `json:"number,omitempty"`
	Status             domain.DocumentStatus `json:"status"`
	Currency           string                `json:"currency"`
	SubtotalCents      int64                 `json:"subtotal_cents"`
	VATCents           int64                 `json:"vat_cents"`
	TotalCents         int64                 `json:"total_cents"`
	PaidCents          int64                 `json:"paid_cents"`
	IssueDate          *time.Time            `json:"issue_date,omitempty"`
	DueDate            *time.Time            `json:"due_date,omitempty"`
	ValidUntil         *time.Time            `json:"valid_until,omitempty"`
	ContactID          *uuid.UUID            `json:"contact_id,omitempty"`
	CompanyID          *uuid.UUID            `json:"company_id,omitempty"`
	Notes              string                `json:"notes,omitempty"`
	SourceQuoteID      *uuid.UUID            `json:"source_quote_id,omitempty"`
	ConvertedInvoiceID *uuid.UUID            `json:"converted_invoice_id,omitempty"`
	SentAt             *time.Time            `json:"sent_at,omitempty"`
	PaidAt             *time.Time            `json:"paid_at,omitempty"`
	CancelledAt        *time.Time            `json:"cancelled_at,omitempty"`
	SignedAt           *time.Time            `json:"signed_at,omitempty"`
	SignerName         string                `json:"signer_name,omitempty"`
	ReminderCount      int32                 `json:"reminder_count"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// DocumentLine is a priced line of a Document.
type DocumentLine struct {
	Position       int32           `json:"position"`
	Description    string          `json:"description"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPriceCents int64           `json:"unit_price_cents"`
	VATRate        decimal.Decimal `json:"vat_rate"`
	SubtotalCents  int64           `json:"subtotal_cents"`
	VATCents       int64           `json:"vat_cents"`
	TotalCents     int64           `json:"total_cents"`
}

// DocumentDetail is a Document with its lines.
type DocumentDetail struct {
	Document
	Lines []DocumentLine `json:"lines"`
}

func toDocument(d repository.Document) Document {
	return Document{
		ID:                 postgres.FromUUID(d.ID),
		OrganizationID:     postgres.FromUUID(d.OrganizationID),
		Type:               domain.DocumentType(d.DocumentType),
		Number:             d.Number.String,
		Status:             domain.DocumentStatus(d.Status),
		Currency:           d.Currency,
		SubtotalCents:      d.SubtotalCents,
		VATCents:           d.VatCents,
		TotalCents:         d.TotalCents,
		PaidCents:          d.PaidCents,
		IssueDate:          datePtr(d.IssueDate.Time, d.IssueDate.Valid),
		DueDate:            datePtr(d.DueDate.Time, d.DueDate.Valid),
		ValidUntil:         datePtr(d.ValidUntil.Time, d.ValidUntil.Valid),
		ContactID:          uuidPtr(d.ContactID.Bytes, d.ContactID.Valid),
		CompanyID:          uuidPtr(d.CompanyID.Bytes, d.CompanyID.Valid),
		Notes:              d.Notes.String,
		SourceQuoteID:      uuidPtr(d.SourceQuoteID.Bytes, d.SourceQuoteID.Valid),
		ConvertedInvoiceID: uuidPtr(d.ConvertedInvoiceID.Bytes, d.ConvertedInvoiceID.Valid),
		SentAt:             datePtr(d.SentAt.Time, d.SentAt.Valid),
		PaidAt:             datePtr(d.PaidAt.Time, d.PaidAt.Valid),
		CancelledAt:        datePtr(d.CancelledAt.Time, d.CancelledAt.Valid),
		SignedAt:           datePtr(d.SignedAt.Time, d.SignedAt.Valid),
		SignerName:         d.SignerName.String,
		ReminderCount:      d.ReminderCount,
		CreatedAt:          d.CreatedAt.Time,
		UpdatedAt:          d.UpdatedAt.Time,
	}
}

func toDocumentDetail(d repository.Document, lines []repository.DocumentLine) *DocumentDetail {
	detail := &DocumentDetail{Document: toDocument(d), Lines: make([]DocumentLine, 0, len(lines))}
	for _, l := range lines {
		detail.Lines = append(detail.Lines, DocumentLine{
			Position:       l.Position,
			Description:    l.Description,
			Quantity:       postgres.FromNumeric(l.Quantity),
			UnitPriceCents: l.UnitPriceCents,
			VATRate:        postgres.FromNumeric(l.VatRate),
			SubtotalCents:  l.LineSubtotalCents,
			VATCents:       l.LineVatCents,
			TotalCents:     l.LineTotalCents,
		})
	}
	return detail
}

func datePtr(t time.Time, valid bool) *time.Time {
	if !valid {
		return nil
	}
	return &t
}

func uuidPtr(b [16]byte, valid bool) *uuid.UUID {
	if !valid {
		return nil
	}
	id := uuid.UUID(b)
	return &id
}
