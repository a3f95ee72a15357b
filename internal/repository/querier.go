package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type Querier interface {
	// organizations
	CreateOrganization(ctx context.Context, arg CreateOrganizationParams) (Organization, error)
	GetOrganization(ctx context.Context, id pgtype.UUID) (Organization, error)
	ListOrganizationIDs(ctx context.Context) ([]pgtype.UUID, error)
	GetOrganizationPaymentConfig(ctx context.Context, organizationID pgtype.UUID) (OrganizationPaymentConfig, error)
	UpsertOrganizationPaymentConfig(ctx context.Context, arg UpsertOrganizationPaymentConfigParams) (OrganizationPaymentConfig, error)

	// recipients
	CreateContact(ctx context.Context, arg CreateContactParams) (Contact, error)
	GetContact(ctx context.Context, arg GetContactParams) (Contact, error)
	CreateCompany(ctx context.Context, arg CreateCompanyParams) (Company, error)
	GetCompany(ctx context.Context, arg GetCompanyParams) (Company, error)
	GetDocumentRecipient(ctx context.Context, arg GetDocumentRecipientParams) (GetDocumentRecipientRow, error)

	// sequences
	NextDocumentSequenceValue(ctx context.Context, arg NextDocumentSequenceValueParams) (DocumentSequence, error)
	GetDocumentSequence(ctx context.Context, arg GetDocumentSequenceParams) (DocumentSequence, error)

	// documents
	CreateDocument(ctx context.Context, arg CreateDocumentParams) (Document, error)
	GetDocument(ctx context.Context, arg GetDocumentParams) (Document, error)
	GetDocumentForUpdate(ctx context.Context, arg GetDocumentParams) (Document, error)
	GetDocumentByID(ctx context.Context, id pgtype.UUID) (Document, error)
	ListDocuments(ctx context.Context, arg ListDocumentsParams) ([]Document, error)
	UpdateDocumentDraft(ctx context.Context, arg UpdateDocumentDraftParams) (Document, error)
	MarkDocumentSent(ctx context.Context, arg MarkDocumentSentParams) (Document, error)
	TransitionDocument(ctx context.Context, arg TransitionDocumentParams) (Document, error)
	ApplyInvoicePayment(ctx context.Context, arg ApplyInvoicePaymentParams) (Document, error)
	ListOverdueCandidates(ctx context.Context, arg ListOverdueCandidatesParams) ([]Document, error)
	MarkInvoiceOverdue(ctx context.Context, arg MarkInvoiceOverdueParams) (Document, error)
	SignQuote(ctx context.Context, arg SignQuoteParams) (Document, error)
	LinkConvertedInvoice(ctx context.Context, arg LinkConvertedInvoiceParams) (Document, error)
	RecordReminderDelivery(ctx context.Context, arg RecordReminderDeliveryParams) (Document, error)
	SoftDeleteDocument(ctx context.Context, arg SoftDeleteDocumentParams) (Document, error)
	DeleteDraftDocument(ctx context.Context, arg DeleteDraftDocumentParams) (int64, error)

	// document lines
	CreateDocumentLine(ctx context.Context, arg CreateDocumentLineParams) (DocumentLine, error)
	DeleteDocumentLines(ctx context.Context, arg DeleteDocumentLinesParams) error
	ListDocumentLines(ctx context.Context, arg ListDocumentLinesParams) ([]DocumentLine, error)

	// payments
	CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error)
	GetPaymentByReference(ctx context.Context, arg GetPaymentByReferenceParams) (Payment, error)
	ListInvoicePayments(ctx context.Context, arg ListInvoicePaymentsParams) ([]Payment, error)

	// notifications
	CreateNotification(ctx context.Context, arg CreateNotificationParams) (Notification, error)
	ListNotifications(ctx context.Context, arg ListNotificationsParams) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, arg MarkNotificationReadParams) (Notification, error)
	DismissNotification(ctx context.Context, arg DismissNotificationParams) (Notification, error)

	// jobs
	EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error)
	ClaimNextJob(ctx context.Context, arg ClaimNextJobParams) (Job, error)
	CompleteJob(ctx context.Context, id pgtype.UUID) error
	FailJob(ctx context.Context, arg FailJobParams) (Job, error)
	RequeueStaleJobs(ctx context.Context) (int64, error)
}

var _ Querier = (*Queries)(nil)
