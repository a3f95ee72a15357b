package repotest

import (
	"context"

	"github.com/dukerupert/comptoir/internal/repository"
	"github.com/jackc/pgx/v5/pgtype"
)

// Statements outside ExecTx run one at a time under the store lock.

func (s *Store) CreateOrganization(ctx context.Context, arg repository.CreateOrganizationParams) (repository.Organization, error) {
	v, done := s.autocommit()
	defer done()
	return v.CreateOrganization(ctx, arg)
}

func (s *Store) GetOrganization(ctx context.Context, id pgtype.UUID) (repository.Organization, error) {
	v, done := s.autocommit()
	defer done()
	return v.GetOrganization(ctx, id)
}

func (s *Store) ListOrganizationIDs(ctx context.Context) ([]pgtype.UUID, error) {
	v, done := s.autocommit()
	defer done()
	return v.ListOrganizationIDs(ctx)
}

func (s *Store) GetOrganizationPaymentConfig(ctx context.Context, organizationID pgtype.UUID) (repository.OrganizationPaymentConfig, error) {
	v, done := s.autocommit()
	defer done()
	return v.GetOrganizationPaymentConfig(ctx, organizationID)
}

func (s *Store) UpsertOrganizationPaymentConfig(ctx context.Context, arg repository.UpsertOrganizationPaymentConfigParams) (repository.OrganizationPaymentConfig, error) {
	v, done := s.autocommit()
	defer done()
	return v.UpsertOrganizationPaymentConfig(ctx, arg)
}

func (s *Store) CreateContact(ctx context.Context, arg repository.CreateContactParams) (repository.Contact, error) {
	v, done := s.autocommit()
	defer done()
	return v.CreateContact(ctx, arg)
}

func (s *Store) GetContact(ctx context.Context, arg repository.GetContactParams) (repository.Contact, error) {
	v, done := s.autocommit()
	defer done()
	return v.GetContact(ctx, arg)
}

func (s *Store) CreateCompany(ctx context.Context, arg repository.CreateCompanyParams) (repository.Company, error) {
	v, done := s.autocommit()
	defer done()
	return v.CreateCompany(ctx, arg)
}

func (s *Store) GetCompany(ctx context.Context, arg repository.GetCompanyParams) (repository.Company, error) {
	v, done := s.autocommit()
	defer done()
	return v.GetCompany(ctx, arg)
}

func (s *Store) GetDocumentRecipient(ctx context.Context, arg repository.GetDocumentRecipientParams) (repository.GetDocumentRecipientRow, error) {
	v, done := s.autocommit()
	defer done()
	return v.GetDocumentRecipient(ctx, arg)
}

func (s *Store) NextDocumentSequenceValue(ctx context.Context, arg repository.NextDocumentSequenceValueParams) (repository.DocumentSequence, error) {
	v, done := s.autocommit()
	defer done()
	return v.NextDocumentSequenceValue(ctx, arg)
}

func (s *Store) GetDocumentSequence(ctx context.Context, arg repository.GetDocumentSequenceParams) (repository.DocumentSequence, error) {
	v, done := s.autocommit()
	defer done()
	return v.GetDocumentSequence(ctx, arg)
}

func (s *Store) CreateDocument(ctx context.Context, arg repository.CreateDocumentParams) (repository.Document, error) {
	v, done := s.autocommit()
	defer done()
	return v.CreateDocument(ctx, arg)
}

func (s *Store) GetDocument(ctx context.Context, arg repository.GetDocumentParams) (repository.Document, error) {
	v, done := s.autocommit()
	defer done()
	return v.GetDocument(ctx, arg)
}

func (s *Store) GetDocumentForUpdate(ctx context.Context, arg repository.GetDocumentParams) (repository.Document, error) {
	v, done := s.autocommit()
	defer done()
	return v.GetDocumentForUpdate(ctx, arg)
}

func (s *Store) GetDocumentByID(ctx context.Context, id pgtype.UUID) (repository.Document, error) {
	v, done := s.autocommit()
	defer done()
	return v.GetDocumentByID(ctx, id)
}

func (s *Store) ListDocuments(ctx context.Context, arg repository.ListDocumentsParams) ([]repository.Document, error) {
	v, done := s.autocommit()
	defer done()
	return v.ListDocuments(ctx, arg)
}

func (s *Store) UpdateDocumentDraft(ctx context.Context, arg repository.UpdateDocumentDraftParams) (repository.Document, error) {
	v, done := s.autocommit()
	defer done()
	return v.UpdateDocumentDraft(ctx, arg)
}

func (s *Store) MarkDocumentSent(ctx context.Context, arg repository.MarkDocumentSentParams) (repository.Document, error) {
	v, done := s.autocommit()
	defer done()
	return v.MarkDocumentSent(ctx, arg)
}

func (s *Store) TransitionDocument(ctx context.Context, arg repository.TransitionDocumentParams) (repository.Document, error) {
	v, done := s.autocommit()
	defer done()
	return v.TransitionDocument(ctx, arg)
}

func (s *Store) ApplyInvoicePayment(ctx context.Context, arg repository.ApplyInvoicePaymentParams) (repository.Document, error) {
	v, done := s.autocommit()
	defer done()
	return v.ApplyInvoicePayment(ctx, arg)
}

func (s *Store) ListOverdueCandidates(ctx context.Context, arg repository.ListOverdueCandidatesParams) ([]repository.Document, error) {
	v, done := s.autocommit()
	defer done()
	return v.ListOverdueCandidates(ctx, arg)
}

func (s *Store) MarkInvoiceOverdue(ctx context.Context, arg repository.MarkInvoiceOverdueParams) (repository.Document, error) {
	v, done := s.autocommit()
	defer done()
	return v.MarkInvoiceOverdue(ctx, arg)
}

func (s *Store) SignQuote(ctx context.Context, arg repository.SignQuoteParams) (repository.Document, error) {
	v, done := s.autocommit()
	defer done()
	return v.SignQuote(ctx, arg)
}

func (s *Store) LinkConvertedInvoice(ctx context.Context, arg repository.LinkConvertedInvoiceParams) (repository.Document, error) {
	v, done := s.autocommit()
	defer done()
	return v.LinkConvertedInvoice(ctx, arg)
}

func (s *Store) RecordReminderDelivery(ctx context.Context, arg repository.RecordReminderDeliveryParams) (repository.Document, error) {
	v, done := s.autocommit()
	defer done()
	return v.RecordReminderDelivery(ctx, arg)
}

func (s *Store) SoftDeleteDocument(ctx context.Context, arg repository.SoftDeleteDocumentParams) (repository.Document, error) {
	v, done := s.autocommit()
	defer done()
	return v.SoftDeleteDocument(ctx, arg)
}

func (s *Store) DeleteDraftDocument(ctx context.Context, arg repository.DeleteDraftDocumentParams) (int64, error) {
	v, done := s.autocommit()
	defer done()
	return v.DeleteDraftDocument(ctx, arg)
}

func (s *Store) CreateDocumentLine(ctx context.Context, arg repository.CreateDocumentLineParams) (repository.DocumentLine, error) {
	v, done := s.autocommit()
	defer done()
	return v.CreateDocumentLine(ctx, arg)
}

func (s *Store) DeleteDocumentLines(ctx context.Context, arg repository.DeleteDocumentLinesParams) error {
	v, done := s.autocommit()
	defer done()
	return v.DeleteDocumentLines(ctx, arg)
}

func (s *Store) ListDocumentLines(ctx context.Context, arg repository.ListDocumentLinesParams) ([]repository.DocumentLine, error) {
	v, done := s.autocommit()
	defer done()
	return v.ListDocumentLines(ctx, arg)
}

func (s *Store) CreatePayment(ctx context.Context, arg repository.CreatePaymentParams) (repository.Payment, error) {
	v, done := s.autocommit()
	defer done()
	return v.CreatePayment(ctx, arg)
}

func (s *Store) GetPaymentByReference(ctx context.Context, arg repository.GetPaymentByReferenceParams) (repository.Payment, error) {
	v, done := s.autocommit()
	defer done()
	return v.GetPaymentByReference(ctx, arg)
}

func (s *Store) ListInvoicePayments(ctx context.Context, arg repository.ListInvoicePaymentsParams) ([]repository.Payment, error) {
	v, done := s.autocommit()
	defer done()
	return v.ListInvoicePayments(ctx, arg)
}

func (s *Store) CreateNotification(ctx context.Context, arg repository.CreateNotificationParams) (repository.Notification, error) {
	v, done := s.autocommit()
	defer done()
	return v.CreateNotification(ctx, arg)
}

func (s *Store) ListNotifications(ctx context.Context, arg repository.ListNotificationsParams) ([]repository.Notification, error) {
	v, done := s.autocommit()
	defer done()
	return v.ListNotifications(ctx, arg)
}

func (s *Store) MarkNotificationRead(ctx context.Context, arg repository.MarkNotificationReadParams) (repository.Notification, error) {
	v, done := s.autocommit()
	defer done()
	return v.MarkNotificationRead(ctx, arg)
}

func (s *Store) DismissNotification(ctx context.Context, arg repository.DismissNotificationParams) (repository.Notification, error) {
	v, done := s.autocommit()
	defer done()
	return v.DismissNotification(ctx, arg)
}

func (s *Store) EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error) {
	v, done := s.autocommit()
	defer done()
	return v.EnqueueJob(ctx, arg)
}

func (s *Store) ClaimNextJob(ctx context.Context, arg repository.ClaimNextJobParams) (repository.Job, error) {
	v, done := s.autocommit()
	defer done()
	return v.ClaimNextJob(ctx, arg)
}

func (s *Store) CompleteJob(ctx context.Context, id pgtype.UUID) error {
	v, done := s.autocommit()
	defer done()
	return v.CompleteJob(ctx, id)
}

func (s *Store) FailJob(ctx context.Context, arg repository.FailJobParams) (repository.Job, error) {
	v, done := s.autocommit()
	defer done()
	return v.FailJob(ctx, arg)
}

func (s *Store) RequeueStaleJobs(ctx context.Context) (int64, error) {
	v, done := s.autocommit()
	defer done()
	return v.RequeueStaleJobs(ctx)
}
