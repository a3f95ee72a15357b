package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/events"
	"github.com/dukerupert/comptoir/internal/jobs"
	"github.com/dukerupert/comptoir/internal/numbering"
	"github.com/dukerupert/comptoir/internal/postgres"
	"github.com/dukerupert/comptoir/internal/repository"
	"github.com/dukerupert/comptoir/internal/telemetry"
)

// LineParams is a line item as entered by the user.
type LineParams struct {
	Description    string          `json:"description" validate:"required,max=500"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPriceCents int64           `json:"unit_price_cents" validate:"gte=0"`
	VATRate        decimal.Decimal `json:"vat_rate"`
}

// CreateDocumentParams describes a new draft.
type CreateDocumentParams struct {
	Type       domain.DocumentType `json:"type" validate:"required,oneof=invoice quote"`
	Currency   string              `json:"currency" validate:"omitempty,len=3"`
	IssueDate  *time.Time          `json:"issue_date"`
	DueDate    *time.Time          `json:"due_date"`
	ValidUntil *time.Time          `json:"valid_until"`
	ContactID  *uuid.UUID          `json:"contact_id"`
	CompanyID  *uuid.UUID          `json:"company_id"`
	Notes      string              `json:"notes" validate:"max=5000"`
	Lines      []LineParams        `json:"lines" validate:"dive"`
}

// UpdateDocumentParams replaces the editable content of a draft.
type UpdateDocumentParams struct {
	Currency   string       `json:"currency" validate:"omitempty,len=3"`
	IssueDate  *time.Time   `json:"issue_date"`
	DueDate    *time.Time   `json:"due_date"`
	ValidUntil *time.Time   `json:"valid_until"`
	ContactID  *uuid.UUID   `json:"contact_id"`
	CompanyID  *uuid.UUID   `json:"company_id"`
	Notes      string       `json:"notes" validate:"max=5000"`
	Lines      []LineParams `json:"lines" validate:"dive"`
}

// ListDocumentsParams filters a document listing. Zero values match all.
type ListDocumentsParams struct {
	Type   domain.DocumentType
	Status domain.DocumentStatus
	Limit  int32
	Offset int32
}

// SignQuoteParams is what a customer submits on the public signature page.
type SignQuoteParams struct {
	SignerName        string `json:"signer_name" validate:"required,max=200"`
	SignerEmail       string `json:"signer_email" validate:"omitempty,email"`
	ClientIP          string `json:"-"`
	SignatureImageKey string `json:"-"`
}

// ConvertQuoteParams sets the terms of the invoice created from a quote.
type ConvertQuoteParams struct {
	DueDate *time.Time `json:"due_date"`
}

// DocumentService owns the quote and invoice lifecycle.
type DocumentService struct {
	store     repository.Store
	allocator *numbering.Allocator
	publisher events.Publisher
	logger    *slog.Logger
	opts      options
}

func NewDocumentService(store repository.Store, allocator *numbering.Allocator, publisher events.Publisher, logger *slog.Logger, opts ...Option) *DocumentService {
	return &DocumentService{
		store:     store,
		allocator: allocator,
		publisher: publisher,
		logger:    logger,
		opts:      newOptions(opts),
	}
}

// CreateDraft creates an unnumbered draft. Drafts may have no lines yet.
func (s *DocumentService) CreateDraft(ctx context.Context, params CreateDocumentParams) (*DocumentDetail, error) {
	const op = "service.CreateDraft"

	orgID, err := domain.RequireOrganizationID(ctx)
	if err != nil {
		return nil, err
	}
	if !params.Type.Valid() {
		return nil, domain.WithOp(ErrInvalidDocumentType, op)
	}
	currency, err := normalizeCurrency(params.Currency)
	if err != nil {
		return nil, domain.WithOp(err, op)
	}
	totals, lineTotals, err := domain.ComputeTotals(lineInputs(params.Lines))
	if err != nil {
		return nil, err
	}

	issue := s.opts.today()
	if params.IssueDate != nil {
		issue = dateOf(*params.IssueDate)
	}
	due, validUntil := defaultTerms(params.Type, issue, params.DueDate, params.ValidUntil)

	var detail *DocumentDetail
	err = s.store.ExecTx(ctx, func(tx repository.TxQuerier) error {
		if err := checkRecipient(ctx, tx, orgID, params.ContactID, params.CompanyID); err != nil {
			return err
		}
		doc, err := tx.CreateDocument(ctx, repository.CreateDocumentParams{
			OrganizationID: postgres.UUID(orgID),
			DocumentType:   string(params.Type),
			Currency:       currency,
			SubtotalCents:  totals.SubtotalCents,
			VatCents:       totals.VATCents,
			TotalCents:     totals.TotalCents,
			IssueDate:      postgres.Date(issue),
			DueDate:        postgres.DatePtr(due),
			ValidUntil:     postgres.DatePtr(validUntil),
			ContactID:      postgres.UUIDPtr(params.ContactID),
			CompanyID:      postgres.UUIDPtr(params.CompanyID),
			CreatedBy:      postgres.UUID(domain.UserIDFromContext(ctx)),
			Notes:          postgres.Text(strings.TrimSpace(params.Notes)),
		})
		if err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}
		lines, err := insertLines(ctx, tx, doc, params.Lines, lineTotals)
		if err != nil {
			return err
		}
		detail = toDocumentDetail(doc, lines)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "draft created",
		"organization_id", orgID,
		"document_id", detail.ID,
		"document_type", detail.Type,
	)
	return detail, nil
}

// UpdateDraft replaces the content and lines of a draft. Anything past draft
// returns ErrDocumentLocked.
func (s *DocumentService) UpdateDraft(ctx context.Context, id uuid.UUID, params UpdateDocumentParams) (*DocumentDetail, error) {
	const op = "service.UpdateDraft"

	orgID, err := domain.RequireOrganizationID(ctx)
	if err != nil {
		return nil, err
	}
	currency, err := normalizeCurrency(params.Currency)
	if err != nil {
		return nil, domain.WithOp(err, op)
	}
	totals, lineTotals, err := domain.ComputeTotals(lineInputs(params.Lines))
	if err != nil {
		return nil, err
	}

	var detail *DocumentDetail
	err = s.store.ExecTx(ctx, func(tx repository.TxQuerier) error {
		doc, err := lockDocument(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if domain.DocumentStatus(doc.Status) != domain.StatusDraft {
			return domain.WithOp(domain.ErrDocumentLocked, op)
		}
		if err := checkRecipient(ctx, tx, orgID, params.ContactID, params.CompanyID); err != nil {
			return err
		}

		issue := doc.IssueDate.Time
		if params.IssueDate != nil {
			issue = dateOf(*params.IssueDate)
		}
		docType := domain.DocumentType(doc.DocumentType)
		due, validUntil := defaultTerms(docType, issue, params.DueDate, params.ValidUntil)

		doc, err = tx.UpdateDocumentDraft(ctx, repository.UpdateDocumentDraftParams{
			ID:             doc.ID,
			OrganizationID: doc.OrganizationID,
			Currency:       currency,
			SubtotalCents:  totals.SubtotalCents,
			VatCents:       totals.VATCents,
			TotalCents:     totals.TotalCents,
			IssueDate:      postgres.Date(issue),
			DueDate:        postgres.DatePtr(due),
			ValidUntil:     postgres.DatePtr(validUntil),
			ContactID:      postgres.UUIDPtr(params.ContactID),
			CompanyID:      postgres.UUIDPtr(params.CompanyID),
			Notes:          postgres.Text(strings.TrimSpace(params.Notes)),
		})
		if postgres.IsNotFound(err) {
			return domain.WithOp(domain.ErrDocumentLocked, op)
		}
		if err != nil {
			return fmt.Errorf("failed to update draft: %w", err)
		}
		if err := tx.DeleteDocumentLines(ctx, repository.DeleteDocumentLinesParams{
			DocumentID:     doc.ID,
			OrganizationID: doc.OrganizationID,
		}); err != nil {
			return fmt.Errorf("failed to delete lines: %w", err)
		}
		lines, err := insertLines(ctx, tx, doc, params.Lines, lineTotals)
		if err != nil {
			return err
		}
		detail = toDocumentDetail(doc, lines)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// Send moves a draft to sent. It numbers the document if it has no number yet,
// and for invoices arms the first reminder, all in one transaction. Sending
// a document that is already sent returns it unchanged.
func (s *DocumentService) Send(ctx context.Context, id uuid.UUID) (*DocumentDetail, error) {
	const op = "service.Send"

	orgID, err := domain.RequireOrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var (
		detail *DocumentDetail
		sent   bool
	)
	err = s.store.ExecTx(ctx, func(tx repository.TxQuerier) error {
		// Reset per attempt; the transaction may be replayed.
		sent = false

		doc, err := lockDocument(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		lines, err := listLines(ctx, tx, doc)
		if err != nil {
			return err
		}

		docType := domain.DocumentType(doc.DocumentType)
		status := domain.DocumentStatus(doc.Status)
		if status == domain.StatusSent {
			detail = toDocumentDetail(doc, lines)
			return nil
		}
		if !domain.CanTransition(docType, status, domain.StatusSent, domain.ActorUser) {
			return domain.WithOp(domain.ErrInvalidTransition, op)
		}
		if len(lines) == 0 {
			return domain.WithOp(domain.ErrNoLineItems, op)
		}
		if !doc.ContactID.Valid && !doc.CompanyID.Valid {
			return domain.WithOp(domain.ErrNoRecipient, op)
		}

		number := doc.Number.String
		if !doc.Number.Valid {
			issue := doc.IssueDate.Time
			if !doc.IssueDate.Valid {
				issue = s.opts.today()
			}
			number, err = s.allocator.Allocate(ctx, tx, orgID, docType, issue)
			if err != nil {
				return err
			}
		}

		sentAt := s.opts.now().UTC()
		doc, err = tx.MarkDocumentSent(ctx, repository.MarkDocumentSentParams{
			ID:             doc.ID,
			OrganizationID: doc.OrganizationID,
			Number:         number,
			SentAt:         postgres.Timestamptz(sentAt),
		})
		if postgres.IsNotFound(err) {
			return domain.WithOp(domain.ErrInvalidTransition, op)
		}
		if err != nil {
			return fmt.Errorf("failed to mark document sent: %w", err)
		}

		if docType == domain.DocumentTypeInvoice {
			if err := jobs.EnqueueRunReminder(ctx, tx, orgID, jobs.RunReminderPayload{
				InvoiceID: id,
				Sequence:  1,
			}, sentAt.Add(s.opts.reminderDelay)); err != nil {
				return err
			}
		}
		if err := jobs.EnqueueDocumentSent(ctx, tx, orgID, jobs.DocumentSentPayload{DocumentID: id}); err != nil {
			return err
		}

		detail = toDocumentDetail(doc, lines)
		sent = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if sent {
		telemetry.Business.RecordDocumentSent(orgID.String(), string(detail.Type))
		events.PublishBestEffort(ctx, s.publisher, s.logger, events.New(events.SubjectDocumentSent, orgID, id, map[string]string{
			"document_type": string(detail.Type),
			"number":        detail.Number,
		}))
		s.logger.InfoContext(ctx, "document sent",
			"organization_id", orgID,
			"document_id", id,
			"number", detail.Number,
		)
	}
	return detail, nil
}

// Cancel moves a non-terminal document to cancelled. The number is kept.
func (s *DocumentService) Cancel(ctx context.Context, id uuid.UUID) (*Document, error) {
	doc, err := s.transition(ctx, "service.Cancel", id, "", domain.StatusCancelled)
	if err != nil {
		return nil, err
	}
	telemetry.Business.RecordDocumentCancelled(doc.OrganizationID.String(), string(doc.Type))
	s.logger.InfoContext(ctx, "document cancelled", "document_id", id, "number", doc.Number)
	return doc, nil
}

// AcceptQuote records a customer acceptance entered by a user.
func (s *DocumentService) AcceptQuote(ctx context.Context, id uuid.UUID) (*Document, error) {
	doc, err := s.transition(ctx, "service.AcceptQuote", id, domain.DocumentTypeQuote, domain.StatusAccepted)
	if err != nil {
		return nil, err
	}
	events.PublishBestEffort(ctx, s.publisher, s.logger, events.New(events.SubjectQuoteAccepted, doc.OrganizationID, id, map[string]string{
		"number": doc.Number,
		"signed": "false",
	}))
	return doc, nil
}

// RejectQuote records a customer refusal.
func (s *DocumentService) RejectQuote(ctx context.Context, id uuid.UUID) (*Document, error) {
	return s.transition(ctx, "service.RejectQuote", id, domain.DocumentTypeQuote, domain.StatusRejected)
}

// transition applies a user-driven status change. A non-empty onlyType
// restricts the operation to that document type.
func (s *DocumentService) transition(ctx context.Context, op string, id uuid.UUID, onlyType domain.DocumentType, to domain.DocumentStatus) (*Document, error) {
	orgID, err := domain.RequireOrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var out Document
	err = s.store.ExecTx(ctx, func(tx repository.TxQuerier) error {
		doc, err := lockDocument(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		docType := domain.DocumentType(doc.DocumentType)
		if onlyType != "" && docType != onlyType {
			return domain.WithOp(domain.ErrQuoteNotFound, op)
		}
		if !domain.CanTransition(docType, domain.DocumentStatus(doc.Status), to, domain.ActorUser) {
			return domain.WithOp(domain.ErrInvalidTransition, op)
		}
		doc, err = tx.TransitionDocument(ctx, repository.TransitionDocumentParams{
			ID:             doc.ID,
			OrganizationID: doc.OrganizationID,
			ToStatus:       string(to),
			FromStatuses:   domain.SourcesFor(docType, to, domain.ActorUser),
			At:             postgres.Timestamptz(s.opts.now().UTC()),
		})
		if postgres.IsNotFound(err) {
			return domain.WithOp(domain.ErrInvalidTransition, op)
		}
		if err != nil {
			return fmt.Errorf("failed to transition document: %w", err)
		}
		out = toDocument(doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SignQuote records a customer's signature from the public quote page. It
// needs no organization in the context: the quote is resolved by id.
func (s *DocumentService) SignQuote(ctx context.Context, id uuid.UUID, params SignQuoteParams) (*Document, error) {
	const op = "service.SignQuote"

	name := strings.TrimSpace(params.SignerName)
	if name == "" {
		return nil, domain.WithOp(ErrMissingSignerName, op)
	}

	found, err := s.store.GetDocumentByID(ctx, postgres.UUID(id))
	if postgres.IsNotFound(err) || (err == nil && found.DocumentType != string(domain.DocumentTypeQuote)) {
		return nil, domain.WithOp(domain.ErrQuoteNotFound, op)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load quote")
	}
	orgID := postgres.FromUUID(found.OrganizationID)

	var out Document
	err = s.store.ExecTx(ctx, func(tx repository.TxQuerier) error {
		doc, err := tx.GetDocumentForUpdate(ctx, repository.GetDocumentParams{ID: found.ID, OrganizationID: found.OrganizationID})
		if postgres.IsNotFound(err) {
			return domain.WithOp(domain.ErrQuoteNotFound, op)
		}
		if err != nil {
			return fmt.Errorf("failed to lock quote: %w", err)
		}
		if doc.SignedAt.Valid {
			return domain.WithOp(domain.ErrAlreadySigned, op)
		}
		if !domain.CanTransition(domain.DocumentTypeQuote, domain.DocumentStatus(doc.Status), domain.StatusAccepted, domain.ActorSigner) {
			return domain.WithOp(domain.ErrInvalidTransition, op)
		}
		if doc.ValidUntil.Valid && doc.ValidUntil.Time.Before(s.opts.today()) {
			return domain.WithOp(domain.ErrQuoteExpired, op)
		}

		doc, err = tx.SignQuote(ctx, repository.SignQuoteParams{
			ID:                doc.ID,
			OrganizationID:    doc.OrganizationID,
			SignedAt:          postgres.Timestamptz(s.opts.now().UTC()),
			SignerName:        postgres.Text(name),
			SignerEmail:       postgres.Text(strings.TrimSpace(params.SignerEmail)),
			SignerIp:          postgres.Text(params.ClientIP),
			SignatureImageKey: postgres.Text(params.SignatureImageKey),
		})
		if postgres.IsNotFound(err) {
			return domain.WithOp(domain.ErrAlreadySigned, op)
		}
		if err != nil {
			return fmt.Errorf("failed to sign quote: %w", err)
		}
		out = toDocument(doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	telemetry.Business.RecordQuoteSigned(orgID.String())
	events.PublishBestEffort(ctx, s.publisher, s.logger, events.New(events.SubjectQuoteAccepted, orgID, id, map[string]string{
		"number": out.Number,
		"signed": "true",
	}))
	s.logger.InfoContext(ctx, "quote signed", "organization_id", orgID, "document_id", id, "client_ip", params.ClientIP)
	return &out, nil
}

// ConvertQuote creates an invoice draft from an accepted quote. A quote
// converts at most once. The invoice is numbered from the invoice sequence
// when it is sent.
func (s *DocumentService) ConvertQuote(ctx context.Context, quoteID uuid.UUID, params ConvertQuoteParams) (*DocumentDetail, error) {
	const op = "service.ConvertQuote"

	orgID, err := domain.RequireOrganizationID(ctx)
	if err != nil {
		return nil, err
	}

	var detail *DocumentDetail
	err = s.store.ExecTx(ctx, func(tx repository.TxQuerier) error {
		quote, err := lockDocument(ctx, tx, orgID, quoteID)
		if err != nil {
			return err
		}
		if quote.DocumentType != string(domain.DocumentTypeQuote) {
			return domain.WithOp(domain.ErrQuoteNotFound, op)
		}
		if quote.ConvertedInvoiceID.Valid {
			return domain.WithOp(domain.ErrQuoteAlreadyConverted, op)
		}
		if domain.DocumentStatus(quote.Status) != domain.StatusAccepted {
			return domain.WithOp(domain.ErrInvalidTransition, op)
		}
		quoteLines, err := listLines(ctx, tx, quote)
		if err != nil {
			return err
		}

		issue := s.opts.today()
		due, _ := defaultTerms(domain.DocumentTypeInvoice, issue, params.DueDate, nil)
		invoice, err := tx.CreateDocument(ctx, repository.CreateDocumentParams{
			OrganizationID: quote.OrganizationID,
			DocumentType:   string(domain.DocumentTypeInvoice),
			Currency:       quote.Currency,
			SubtotalCents:  quote.SubtotalCents,
			VatCents:       quote.VatCents,
			TotalCents:     quote.TotalCents,
			IssueDate:      postgres.Date(issue),
			DueDate:        postgres.DatePtr(due),
			ContactID:      quote.ContactID,
			CompanyID:      quote.CompanyID,
			CreatedBy:      postgres.UUID(domain.UserIDFromContext(ctx)),
			Notes:          quote.Notes,
			SourceQuoteID:  quote.ID,
		})
		if err != nil {
			return fmt.Errorf("failed to create invoice from quote: %w", err)
		}

		lines := make([]repository.DocumentLine, 0, len(quoteLines))
		for _, l := range quoteLines {
			line, err := tx.CreateDocumentLine(ctx, repository.CreateDocumentLineParams{
				DocumentID:        invoice.ID,
				OrganizationID:    invoice.OrganizationID,
				Position:          l.Position,
				Description:       l.Description,
				Quantity:          l.Quantity,
				UnitPriceCents:    l.UnitPriceCents,
				VatRate:           l.VatRate,
				LineSubtotalCents: l.LineSubtotalCents,
				LineVatCents:      l.LineVatCents,
				LineTotalCents:    l.LineTotalCents,
			})
			if err != nil {
				return fmt.Errorf("failed to copy line: %w", err)
			}
			lines = append(lines, line)
		}

		if _, err := tx.LinkConvertedInvoice(ctx, repository.LinkConvertedInvoiceParams{
			ID:                 quote.ID,
			OrganizationID:     quote.OrganizationID,
			ConvertedInvoiceID: invoice.ID,
		}); postgres.IsNotFound(err) {
			return domain.WithOp(domain.ErrQuoteAlreadyConverted, op)
		} else if err != nil {
			return fmt.Errorf("failed to link converted invoice: %w", err)
		}

		detail = toDocumentDetail(invoice, lines)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "quote converted",
		"organization_id", orgID,
		"quote_id", quoteID,
		"invoice_id", detail.ID,
	)
	return detail, nil
}

// Get returns a document with its lines.
func (s *DocumentService) Get(ctx context.Context, id uuid.UUID) (*DocumentDetail, error) {
	const op = "service.GetDocument"

	orgID, err := domain.RequireOrganizationID(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := s.store.GetDocument(ctx, repository.GetDocumentParams{ID: postgres.UUID(id), OrganizationID: postgres.UUID(orgID)})
	if postgres.IsNotFound(err) {
		return nil, domain.WithOp(domain.ErrDocumentNotFound, op)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load document")
	}
	lines, err := listLines(ctx, s.store, doc)
	if err != nil {
		return nil, err
	}
	return toDocumentDetail(doc, lines), nil
}

// List returns documents newest first, without lines.
func (s *DocumentService) List(ctx context.Context, params ListDocumentsParams) ([]Document, error) {
	orgID, err := domain.RequireOrganizationID(ctx)
	if err != nil {
		return nil, err
	}
	limit, offset := clampLimit(params.Limit, params.Offset)
	rows, err := s.store.ListDocuments(ctx, repository.ListDocumentsParams{
		OrganizationID: postgres.UUID(orgID),
		DocumentType:   postgres.Text(string(params.Type)),
		Status:         postgres.Text(string(params.Status)),
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		return nil, domain.Internal(err, "service.ListDocuments", "failed to list documents")
	}
	out := make([]Document, 0, len(rows))
	for _, r := range rows {
		out = append(out, toDocument(r))
	}
	return out, nil
}

// Delete removes an unnumbered draft outright. A numbered document is only
// soft deleted, and only once cancelled.
func (s *DocumentService) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "service.DeleteDocument"

	orgID, err := domain.RequireOrganizationID(ctx)
	if err != nil {
		return err
	}
	return s.store.ExecTx(ctx, func(tx repository.TxQuerier) error {
		doc, err := lockDocument(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		status := domain.DocumentStatus(doc.Status)

		if !doc.Number.Valid {
			if status != domain.StatusDraft && status != domain.StatusCancelled {
				return domain.WithOp(domain.ErrInvalidTransition, op)
			}
			n, err := tx.DeleteDraftDocument(ctx, repository.DeleteDraftDocumentParams{ID: doc.ID, OrganizationID: doc.OrganizationID})
			if err != nil {
				return fmt.Errorf("failed to delete draft: %w", err)
			}
			if n == 0 {
				return domain.WithOp(domain.ErrDocumentNotFound, op)
			}
			return nil
		}

		if status != domain.StatusCancelled {
			return domain.WithOp(domain.ErrNumberedDocument, op)
		}
		if _, err := tx.SoftDeleteDocument(ctx, repository.SoftDeleteDocumentParams{
			ID:             doc.ID,
			OrganizationID: doc.OrganizationID,
			DeletedAt:      postgres.Timestamptz(s.opts.now().UTC()),
		}); postgres.IsNotFound(err) {
			return domain.WithOp(domain.ErrNumberedDocument, op)
		} else if err != nil {
			return fmt.Errorf("failed to soft delete document: %w", err)
		}
		return nil
	})
}

func lockDocument(ctx context.Context, q repository.Querier, orgID, id uuid.UUID) (repository.Document, error) {
	doc, err := q.GetDocumentForUpdate(ctx, repository.GetDocumentParams{ID: postgres.UUID(id), OrganizationID: postgres.UUID(orgID)})
	if postgres.IsNotFound(err) {
		return repository.Document{}, domain.ErrDocumentNotFound
	}
	if err != nil {
		return repository.Document{}, fmt.Errorf("failed to lock document: %w", err)
	}
	return doc, nil
}

func listLines(ctx context.Context, q repository.Querier, doc repository.Document) ([]repository.DocumentLine, error) {
	lines, err := q.ListDocumentLines(ctx, repository.ListDocumentLinesParams{DocumentID: doc.ID, OrganizationID: doc.OrganizationID})
	if err != nil {
		return nil, fmt.Errorf("failed to list lines: %w", err)
	}
	return lines, nil
}

func insertLines(ctx context.Context, q repository.Querier, doc repository.Document, params []LineParams, totals []domain.LineTotals) ([]repository.DocumentLine, error) {
	lines := make([]repository.DocumentLine, 0, len(params))
	for i, p := range params {
		line, err := q.CreateDocumentLine(ctx, repository.CreateDocumentLineParams{
			DocumentID:        doc.ID,
			OrganizationID:    doc.OrganizationID,
			Position:          int32(i + 1),
			Description:       strings.TrimSpace(p.Description),
			Quantity:          postgres.Numeric(p.Quantity),
			UnitPriceCents:    p.UnitPriceCents,
			VatRate:           postgres.Numeric(p.VATRate),
			LineSubtotalCents: totals[i].SubtotalCents,
			LineVatCents:      totals[i].VATCents,
			LineTotalCents:    totals[i].TotalCents,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create line %d: %w", i+1, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func lineInputs(params []LineParams) []domain.LineInput {
	in := make([]domain.LineInput, len(params))
	for i, p := range params {
		in[i] = domain.LineInput{
			Description:    p.Description,
			Quantity:       p.Quantity,
			UnitPriceCents: p.UnitPriceCents,
			VATRate:        p.VATRate,
		}
	}
	return in
}

// checkRecipient verifies that referenced recipients belong to the
// organization. Drafts may have none.
func checkRecipient(ctx context.Context, q repository.Querier, orgID uuid.UUID, contactID, companyID *uuid.UUID) error {
	if contactID != nil {
		_, err := q.GetContact(ctx, repository.GetContactParams{ID: postgres.UUID(*contactID), OrganizationID: postgres.UUID(orgID)})
		if postgres.IsNotFound(err) {
			return ErrContactNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load contact: %w", err)
		}
	}
	if companyID != nil {
		_, err := q.GetCompany(ctx, repository.GetCompanyParams{ID: postgres.UUID(*companyID), OrganizationID: postgres.UUID(orgID)})
		if postgres.IsNotFound(err) {
			return ErrCompanyNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load company: %w", err)
		}
	}
	return nil
}

// defaultTerms fills the due date of an invoice or the validity of a quote
// when the user left it empty.
func defaultTerms(docType domain.DocumentType, issue time.Time, due, validUntil *time.Time) (*time.Time, *time.Time) {
	def := issue.AddDate(0, 0, DefaultPaymentTermDays)
	switch docType {
	case domain.DocumentTypeInvoice:
		if due == nil {
			due = &def
		}
		return due, nil
	default:
		if validUntil == nil {
			validUntil = &def
		}
		return nil, validUntil
	}
}
