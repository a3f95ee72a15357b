package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/email"
	"github.com/dukerupert/comptoir/internal/jobs"
	"github.com/dukerupert/comptoir/internal/postgres"
	"github.com/dukerupert/comptoir/internal/repository"
)

// Mailer delivers a rendered transactional email.
type Mailer interface {
	Send(ctx context.Context, msg email.Message) (string, error)
}

// MailService sends the customer-facing emails queued by the ledger.
type MailService struct {
	store     repository.Querier
	mailer    Mailer
	logger    *slog.Logger
	publicURL string
}

func NewMailService(store repository.Querier, mailer Mailer, logger *slog.Logger, publicURL string) *MailService {
	return &MailService{
		store:     store,
		mailer:    mailer,
		logger:    logger,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// SendDocument mails a sent quote or invoice to its recipient. A document
// that was deleted or has no recipient email is skipped.
func (s *MailService) SendDocument(ctx context.Context, documentID uuid.UUID) error {
	const op = "service.SendDocument"

	orgID, err := domain.RequireOrganizationID(ctx)
	if err != nil {
		return err
	}
	doc, to, err := s.load(ctx, orgID, documentID)
	if err != nil {
		return domain.Internal(err, op, "failed to load document")
	}
	if to == nil {
		return nil
	}

	msg := email.DocumentSentEmail{
		To:               to.address,
		RecipientName:    to.name,
		OrganizationName: to.organization,
		DocumentID:       documentID,
		IsQuote:          doc.DocumentType == string(domain.DocumentTypeQuote),
		Number:           doc.Number.String,
		TotalCents:       doc.TotalCents,
		Currency:         doc.Currency,
		DueDate:          doc.DueDate.Time,
		ValidUntil:       doc.ValidUntil.Time,
	}
	if s.publicURL != "" {
		if msg.IsQuote {
			msg.ViewURL = s.publicURL + "/quotes/" + documentID.String()
		} else {
			msg.ViewURL = s.publicURL + "/pay/" + documentID.String()
		}
	}

	id, err := s.mailer.Send(ctx, msg)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "document email sent",
		"organization_id", orgID,
		"document_id", documentID,
		"number", doc.Number.String,
		"message_id", id,
	)
	return nil
}

// SendPaymentReceipt mails the receipt for an applied payment.
func (s *MailService) SendPaymentReceipt(ctx context.Context, payload jobs.PaymentReceivedPayload) error {
	const op = "service.SendPaymentReceipt"

	orgID, err := domain.RequireOrganizationID(ctx)
	if err != nil {
		return err
	}
	doc, to, err := s.load(ctx, orgID, payload.InvoiceID)
	if err != nil {
		return domain.Internal(err, op, "failed to load invoice")
	}
	if to == nil {
		return nil
	}

	paidAt := doc.PaidAt.Time
	if p, err := s.store.GetPaymentByReference(ctx, repository.GetPaymentByReferenceParams{
		OrganizationID: postgres.UUID(orgID),
		Reference:      payload.Reference,
	}); err == nil {
		paidAt = p.PaidAt.Time
	}

	id, err := s.mailer.Send(ctx, email.PaymentReceivedEmail{
		To:               to.address,
		RecipientName:    to.name,
		OrganizationName: to.organization,
		InvoiceNumber:    doc.Number.String,
		AmountCents:      payload.AmountCents,
		Currency:         doc.Currency,
		PaidAt:           paidAt,
		Reference:        payload.Reference,
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "payment receipt sent",
		"organization_id", orgID,
		"invoice_id", payload.InvoiceID,
		"reference", payload.Reference,
		"message_id", id,
	)
	return nil
}

type mailRecipient struct {
	address      string
	name         string
	organization string
}

// load returns a nil recipient when there is nothing to send.
func (s *MailService) load(ctx context.Context, orgID, documentID uuid.UUID) (repository.Document, *mailRecipient, error) {
	doc, err := s.store.GetDocument(ctx, repository.GetDocumentParams{
		ID:             postgres.UUID(documentID),
		OrganizationID: postgres.UUID(orgID),
	})
	if postgres.IsNotFound(err) {
		s.logger.InfoContext(ctx, "email skipped, document gone", "document_id", documentID)
		return doc, nil, nil
	}
	if err != nil {
		return doc, nil, err
	}

	recipient, err := s.store.GetDocumentRecipient(ctx, repository.GetDocumentRecipientParams{
		DocumentID:     doc.ID,
		OrganizationID: doc.OrganizationID,
	})
	if err != nil && !postgres.IsNotFound(err) {
		return doc, nil, err
	}
	if !recipient.Email.Valid || recipient.Email.String == "" {
		s.logger.InfoContext(ctx, "email skipped, recipient has no address", "document_id", documentID)
		return doc, nil, nil
	}

	org, err := s.store.GetOrganization(ctx, doc.OrganizationID)
	if err != nil {
		return doc, nil, err
	}
	return doc, &mailRecipient{
		address:      recipient.Email.String,
		name:         recipient.Name.String,
		organization: org.Name,
	}, nil
}
