package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/dukerupert/comptoir/internal/billing"
	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/email"
	"github.com/dukerupert/comptoir/internal/events"
	"github.com/dukerupert/comptoir/internal/jobs"
	"github.com/dukerupert/comptoir/internal/postgres"
	"github.com/dukerupert/comptoir/internal/provider"
	"github.com/dukerupert/comptoir/internal/repository"
	"github.com/dukerupert/comptoir/internal/telemetry"
)

// Where a payment confirmation came from.
const (
	SourceWebhook  = "webhook"
	SourceCheckout = "checkout_return"
	SourceManual   = "manual"
)

// Webhook outcomes.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
)

// CredentialSource resolves an organization's payment processor credentials.
type CredentialSource interface {
	Credentials(ctx context.Context, orgID uuid.UUID) (*provider.Credentials, error)
}

// ReconcileParams is one payment confirmation for an invoice.
type ReconcileParams struct {
	OrganizationID uuid.UUID
	InvoiceID      uuid.UUID
	Reference      string
	AmountCents    int64
	Currency       string
	Method         string
	PaidAt         time.Time
	Source         string
}

// RecordPaymentParams is a payment entered by hand, such as a bank transfer.
type RecordPaymentParams struct {
	Reference   string     `json:"reference" validate:"required,max=200"`
	AmountCents int64      `json:"amount_cents" validate:"gt=0"`
	Method      string     `json:"method" validate:"required,oneof=bank_transfer cheque cash card"`
	PaidAt      *time.Time `json:"paid_at"`
}

// WebhookResult describes how a processor event was handled.
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Outcome   string `json:"outcome"`
	InvoiceID string `json:"invoice_id,omitempty"`
}

// Payment is the API view of a recorded payment.
type Payment struct {
	ID          uuid.UUID `json:"id"`
	InvoiceID   uuid.UUID `json:"invoice_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Method      string    `json:"method"`
	Reference   string    `json:"reference"`
	PaidAt      time.Time `json:"paid_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// PaymentService is the single writer of the sent/overdue to paid edge.
// Every confirmation path, push, pull or manual, goes through Reconcile.
type PaymentService struct {
	store       repository.Store
	processor   billing.Provider
	credentials CredentialSource
	publisher   events.Publisher
	logger      *slog.Logger
	opts        options
}

func NewPaymentService(store repository.Store, processor billing.Provider, credentials CredentialSource, publisher events.Publisher, logger *slog.Logger, opts ...Option) *PaymentService {
	return &PaymentService{
		store:       store,
		processor:   processor,
		credentials: credentials,
		publisher:   publisher,
		logger:      logger,
		opts:        newOptions(opts),
	}
}

// Reconcile applies a confirmed payment to an invoice exactly once per
// reference within the organization. Payments accumulate; the invoice moves
// to paid when they cover its total. Replays and confirmations of an already
// paid invoice are not errors: they report Applied=false with a reason.
//
// The currency must match the invoice. A manual payment may not exceed the
// outstanding balance; a processor payment that does is recorded anyway,
// since the money has already moved.
func (s *PaymentService) Reconcile(ctx context.Context, params ReconcileParams) (domain.ReconcileResult, error) {
	const op = "service.Reconcile"

	result := domain.ReconcileResult{InvoiceID: params.InvoiceID.String()}
	if params.AmountCents <= 0 {
		return result, domain.WithOp(ErrInvalidAmount, op)
	}
	if !domain.ValidPaymentMethod(params.Method) {
		return result, domain.WithOp(ErrInvalidPaymentMethod, op)
	}
	reference := strings.TrimSpace(params.Reference)
	if reference == "" {
		return result, domain.WithOp(ErrMissingReference, op)
	}
	paidAt := params.PaidAt
	if paidAt.IsZero() {
		paidAt = s.opts.now()
	}
	paidAt = paidAt.UTC()

	var invoice repository.Document
	err := s.store.ExecTx(ctx, func(tx repository.TxQuerier) error {
		result = domain.ReconcileResult{InvoiceID: params.InvoiceID.String()}

		doc, err := tx.GetDocumentForUpdate(ctx, repository.GetDocumentParams{
			ID:             postgres.UUID(params.InvoiceID),
			OrganizationID: postgres.UUID(params.OrganizationID),
		})
		if postgres.IsNotFound(err) || (err == nil && doc.DocumentType != string(domain.DocumentTypeInvoice)) {
			return domain.WithOp(domain.ErrInvoiceNotFound, op)
		}
		if err != nil {
			return fmt.Errorf("failed to lock invoice: %w", err)
		}

		switch domain.DocumentStatus(doc.Status) {
		case domain.StatusPaid:
			result.Reason = domain.ReasonAlreadyPaid
			return nil
		case domain.StatusSent, domain.StatusOverdue:
		default:
			return domain.WithOp(domain.ErrInvoiceNotPayable, op)
		}

		if _, err := tx.GetPaymentByReference(ctx, repository.GetPaymentByReferenceParams{
			OrganizationID: doc.OrganizationID,
			Reference:      reference,
		}); err == nil {
			result.Reason = domain.ReasonDuplicateReference
			return nil
		} else if !postgres.IsNotFound(err) {
			return fmt.Errorf("failed to look up payment reference: %w", err)
		}

		if params.Currency != "" && !strings.EqualFold(params.Currency, doc.Currency) {
			return domain.WithOp(ErrCurrencyMismatch, op)
		}
		if outstanding := doc.TotalCents - doc.PaidCents; params.AmountCents > outstanding {
			if params.Source == SourceManual {
				return domain.WithOp(ErrAmountExceedsBalance, op)
			}
			s.logger.WarnContext(ctx, "processor payment exceeds outstanding balance",
				"organization_id", params.OrganizationID,
				"invoice_id", params.InvoiceID,
				"reference", reference,
				"amount_cents", params.AmountCents,
				"outstanding_cents", outstanding,
			)
		}

		_, err = tx.CreatePayment(ctx, repository.CreatePaymentParams{
			OrganizationID: doc.OrganizationID,
			InvoiceID:      doc.ID,
			AmountCents:    params.AmountCents,
			Currency:       doc.Currency,
			Method:         params.Method,
			Reference:      reference,
			PaidAt:         postgres.Timestamptz(paidAt),
		})
		if postgres.IsNotFound(err) {
			result.Reason = domain.ReasonDuplicateReference
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}

		doc, err = tx.ApplyInvoicePayment(ctx, repository.ApplyInvoicePaymentParams{
			ID:             doc.ID,
			OrganizationID: doc.OrganizationID,
			PaidCents:      params.AmountCents,
			PaidAt:         postgres.Timestamptz(paidAt),
		})
		if postgres.IsNotFound(err) {
			return domain.WithOp(domain.ErrInvoiceNotPayable, op)
		}
		if err != nil {
			return fmt.Errorf("failed to apply payment: %w", err)
		}

		result.Applied = true
		result.Settled = domain.DocumentStatus(doc.Status) == domain.StatusPaid
		if result.Settled {
			s.notifyPaymentReceived(ctx, tx, doc, doc.PaidCents)
		}
		invoice = doc
		return nil
	})

	orgLabel := params.OrganizationID.String()
	if err != nil {
		telemetry.Business.RecordReconcile(orgLabel, params.Source, "error", "", 0)
		if !domain.IsCode(err, domain.ENOTFOUND) && !domain.IsCode(err, domain.ECONFLICT) && !domain.IsCode(err, domain.EINVALID) {
			telemetry.CaptureError(ctx, err, orgLabel, map[string]any{
				"invoice_id": params.InvoiceID.String(),
				"reference":  reference,
				"source":     params.Source,
			})
		}
		return result, err
	}

	if !result.Applied {
		telemetry.Business.RecordReconcile(orgLabel, params.Source, result.Reason, "", 0)
		s.logger.InfoContext(ctx, "payment confirmation already applied",
			"organization_id", params.OrganizationID,
			"invoice_id", params.InvoiceID,
			"reference", reference,
			"reason", result.Reason,
		)
		return result, nil
	}

	telemetry.Business.RecordReconcile(orgLabel, params.Source, OutcomeApplied, invoice.Currency, params.AmountCents)
	subject := events.SubjectPaymentRecorded
	if result.Settled {
		subject = events.SubjectInvoicePaid
	}
	events.PublishBestEffort(ctx, s.publisher, s.logger, events.New(subject, params.OrganizationID, params.InvoiceID, map[string]string{
		"number":       invoice.Number.String,
		"reference":    reference,
		"amount_cents": fmt.Sprint(params.AmountCents),
		"method":       params.Method,
	}))
	if err := jobs.EnqueuePaymentReceived(ctx, s.store, params.OrganizationID, jobs.PaymentReceivedPayload{
		InvoiceID:   params.InvoiceID,
		Reference:   reference,
		AmountCents: params.AmountCents,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to enqueue payment receipt", "invoice_id", params.InvoiceID, "error", err)
	}
	s.logger.InfoContext(ctx, "payment applied",
		"organization_id", params.OrganizationID,
		"invoice_id", params.InvoiceID,
		"number", invoice.Number.String,
		"reference", reference,
		"amount_cents", params.AmountCents,
		"paid_cents", invoice.PaidCents,
		"settled", result.Settled,
		"source", params.Source,
	)
	return result, nil
}

// notifyPaymentReceived inserts the creator's notification in a savepoint. A
// failed insert is queued for retry instead of failing the payment.
func (s *PaymentService) notifyPaymentReceived(ctx context.Context, tx repository.TxQuerier, doc repository.Document, amountCents int64) {
	if !doc.CreatedBy.Valid {
		return
	}
	orgID := postgres.FromUUID(doc.OrganizationID)
	payload := jobs.CreateNotificationPayload{
		UserID:     postgres.FromUUID(doc.CreatedBy),
		Type:       domain.NotificationPaymentReceived,
		DocumentID: postgres.FromUUID(doc.ID),
		Title:      "Paiement reçu",
		Body:       fmt.Sprintf("La facture %s a été réglée (%s).", doc.Number.String, email.FormatAmount(language.French, amountCents, doc.Currency)),
		DedupeKey:  "payment_received:" + postgres.UUIDString(doc.ID),
	}
	createNotification(ctx, tx, s.logger, orgID, payload)
}

// createNotification is shared by every ledger side effect that notifies a
// user. It never fails the enclosing transaction.
func createNotification(ctx context.Context, tx repository.TxQuerier, logger *slog.Logger, orgID uuid.UUID, payload jobs.CreateNotificationPayload) {
	err := tx.Savepoint(ctx, func(q repository.Querier) error {
		_, err := q.CreateNotification(ctx, notificationParams(orgID, payload))
		if postgres.IsNotFound(err) {
			return nil
		}
		return err
	})
	if err == nil {
		return
	}

	telemetry.Business.RecordNotificationFailure(payload.Type)
	logger.WarnContext(ctx, "failed to create notification, queued for retry",
		"organization_id", orgID,
		"document_id", payload.DocumentID,
		"type", payload.Type,
		"error", err,
	)
	if err := tx.Savepoint(ctx, func(q repository.Querier) error {
		return jobs.EnqueueCreateNotification(ctx, q, orgID, payload)
	}); err != nil {
		logger.ErrorContext(ctx, "failed to queue notification retry",
			"organization_id", orgID,
			"dedupe_key", payload.DedupeKey,
			"error", err,
		)
	}
}

func notificationParams(orgID uuid.UUID, p jobs.CreateNotificationPayload) repository.CreateNotificationParams {
	return repository.CreateNotificationParams{
		OrganizationID: postgres.UUID(orgID),
		UserID:         postgres.UUID(p.UserID),
		Type:           p.Type,
		DocumentID:     postgres.UUID(p.DocumentID),
		Title:          p.Title,
		Body:           p.Body,
		DedupeKey:      p.DedupeKey,
	}
}

// HandleStripeWebhook verifies and applies a processor event. The payload is
// peeked first only to find which organization's secret verifies it.
func (s *PaymentService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	const op = "service.HandleStripeWebhook"

	started := time.Now()
	if signature == "" {
		telemetry.Business.RecordWebhookFailure("missing_signature")
		return nil, domain.WithOp(domain.ErrSignatureInvalid, op)
	}

	routing, err := billing.PeekEventRouting(payload)
	if err != nil {
		telemetry.Business.RecordWebhookFailure("malformed")
		return nil, domain.WrapError(err, domain.EINVALID, op, domain.ErrorMessage(ErrMalformedWebhook))
	}
	result := &WebhookResult{EventID: routing.EventID, EventType: routing.Type, Outcome: OutcomeIgnored, InvoiceID: routing.InvoiceID}

	orgID, orgErr := uuid.Parse(routing.OrganizationID)
	invoiceID, invErr := uuid.Parse(routing.InvoiceID)
	if orgErr != nil || invErr != nil {
		// Not one of our sessions, or an event type without our metadata.
		s.logger.InfoContext(ctx, "webhook ignored, no routing metadata",
			"event_id", routing.EventID,
			"event_type", routing.Type,
		)
		telemetry.Business.RecordWebhook(routing.Type, started)
		return result, nil
	}

	creds, err := s.credentials.Credentials(ctx, orgID)
	if err != nil {
		if domain.IsCode(err, domain.EPAYMENT) {
			telemetry.Business.RecordWebhookFailure("unknown_organization")
			return nil, domain.WithOp(domain.ErrSignatureInvalid, op)
		}
		return nil, err
	}

	event, err := s.processor.ParseWebhookEvent(payload, signature, creds.WebhookSecret)
	if err != nil {
		telemetry.Business.RecordWebhookFailure("invalid_signature")
		if errors.Is(err, billing.ErrInvalidWebhookSignature) {
			s.logger.WarnContext(ctx, "webhook signature rejected", "organization_id", orgID, "event_id", routing.EventID)
			return nil, domain.WithOp(domain.ErrSignatureInvalid, op)
		}
		return nil, domain.WrapError(err, domain.EINVALID, op, domain.ErrorMessage(ErrMalformedWebhook))
	}
	result.EventID, result.EventType = event.ID, event.Type

	if event.Type != billing.EventCheckoutSessionCompleted || event.Session == nil {
		telemetry.Business.RecordWebhook(event.Type, started)
		return result, nil
	}
	session := event.Session
	if session.Metadata[billing.MetadataInvoiceID] != invoiceID.String() ||
		session.Metadata[billing.MetadataOrganizationID] != orgID.String() {
		telemetry.Business.RecordWebhookFailure("metadata_mismatch")
		return nil, domain.WithOp(domain.ErrSessionMismatch, op)
	}
	if !session.Paid() {
		s.logger.InfoContext(ctx, "checkout completed without payment", "session_id", session.ID, "invoice_id", invoiceID)
		telemetry.Business.RecordWebhook(event.Type, started)
		return result, nil
	}

	reconciled, err := s.Reconcile(ctx, ReconcileParams{
		OrganizationID: orgID,
		InvoiceID:      invoiceID,
		Reference:      session.ID,
		AmountCents:    session.AmountTotal,
		Currency:       session.Currency,
		Method:         domain.PaymentMethodCard,
		Source:         SourceWebhook,
	})
	if err != nil {
		telemetry.Business.RecordWebhookFailure("reconcile")
		return nil, err
	}
	result.Outcome = OutcomeDuplicate
	if reconciled.Applied {
		result.Outcome = OutcomeApplied
	}
	telemetry.Business.RecordWebhook(event.Type, started)
	return result, nil
}

// ConfirmCheckoutSession is the pull path run when the customer returns from
// the hosted payment page. It reaches the same result as the webhook for the
// same session.
func (s *PaymentService) ConfirmCheckoutSession(ctx context.Context, invoiceID uuid.UUID, sessionID string) (domain.ReconcileResult, error) {
	const op = "service.ConfirmCheckoutSession"

	result := domain.ReconcileResult{InvoiceID: invoiceID.String()}
	if strings.TrimSpace(sessionID) == "" {
		return result, domain.WithOp(ErrMissingReference, op)
	}

	doc, err := s.store.GetDocumentByID(ctx, postgres.UUID(invoiceID))
	if postgres.IsNotFound(err) || (err == nil && doc.DocumentType != string(domain.DocumentTypeInvoice)) {
		return result, domain.WithOp(domain.ErrInvoiceNotFound, op)
	}
	if err != nil {
		return result, domain.Internal(err, op, "failed to load invoice")
	}
	orgID := postgres.FromUUID(doc.OrganizationID)

	creds, err := s.credentials.Credentials(ctx, orgID)
	if err != nil {
		return result, err
	}

	started := time.Now()
	session, err := s.processor.GetCheckoutSession(ctx, creds.SecretKey, sessionID)
	telemetry.Business.ObserveStripeCall("get_checkout_session", started)
	if errors.Is(err, billing.ErrSessionNotFound) {
		return result, domain.WithOp(domain.ErrSessionMismatch, op)
	}
	if err != nil {
		telemetry.CaptureError(ctx, err, orgID.String(), map[string]any{"invoice_id": invoiceID.String(), "session_id": sessionID})
		return result, domain.Unavailable(err, op, "Payment processor is unavailable, please retry")
	}
	if session.Metadata[billing.MetadataInvoiceID] != invoiceID.String() {
		return result, domain.WithOp(domain.ErrSessionMismatch, op)
	}
	if !session.Paid() {
		result.Reason = domain.ReasonNotPaid
		telemetry.Business.RecordReconcile(orgID.String(), SourceCheckout, domain.ReasonNotPaid, "", 0)
		return result, nil
	}

	return s.Reconcile(ctx, ReconcileParams{
		OrganizationID: orgID,
		InvoiceID:      invoiceID,
		Reference:      session.ID,
		AmountCents:    session.AmountTotal,
		Currency:       session.Currency,
		Method:         domain.PaymentMethodCard,
		Source:         SourceCheckout,
	})
}

// CreateCheckoutSession opens a hosted payment page for the outstanding
// amount of an invoice and returns its URL.
func (s *PaymentService) CreateCheckoutSession(ctx context.Context, invoiceID uuid.UUID, successURL, cancelURL string) (string, error) {
	const op = "service.CreateCheckoutSession"

	orgID, err := domain.RequireOrganizationID(ctx)
	if err != nil {
		return "", err
	}
	doc, err := s.store.GetDocument(ctx, repository.GetDocumentParams{ID: postgres.UUID(invoiceID), OrganizationID: postgres.UUID(orgID)})
	if postgres.IsNotFound(err) || (err == nil && doc.DocumentType != string(domain.DocumentTypeInvoice)) {
		return "", domain.WithOp(domain.ErrInvoiceNotFound, op)
	}
	if err != nil {
		return "", domain.Internal(err, op, "failed to load invoice")
	}
	status := domain.DocumentStatus(doc.Status)
	if status != domain.StatusSent && status != domain.StatusOverdue {
		return "", domain.WithOp(domain.ErrInvoiceNotPayable, op)
	}
	amount := doc.TotalCents - doc.PaidCents
	if amount <= 0 {
		return "", domain.WithOp(ErrNothingToCollect, op)
	}

	creds, err := s.credentials.Credentials(ctx, orgID)
	if err != nil {
		return "", err
	}

	var customerEmail string
	if recipient, err := s.store.GetDocumentRecipient(ctx, repository.GetDocumentRecipientParams{
		DocumentID:     doc.ID,
		OrganizationID: doc.OrganizationID,
	}); err == nil {
		customerEmail = recipient.Email.String
	}

	started := time.Now()
	session, err := s.processor.CreateCheckoutSession(ctx, billing.CreateCheckoutSessionParams{
		SecretKey:      creds.SecretKey,
		OrganizationID: orgID.String(),
		InvoiceID:      invoiceID.String(),
		InvoiceNumber:  doc.Number.String,
		AmountCents:    amount,
		Currency:       doc.Currency,
		CustomerEmail:  customerEmail,
		SuccessURL:     successURL,
		CancelURL:      cancelURL,
		IdempotencyKey: fmt.Sprintf("checkout:%s:%d", invoiceID, amount),
	})
	telemetry.Business.ObserveStripeCall("create_checkout_session", started)
	if err != nil {
		telemetry.CaptureError(ctx, err, orgID.String(), map[string]any{"invoice_id": invoiceID.String()})
		return "", domain.Unavailable(err, op, "Payment processor is unavailable, please retry")
	}

	s.logger.InfoContext(ctx, "checkout session created",
		"organization_id", orgID,
		"invoice_id", invoiceID,
		"session_id", session.ID,
		"amount_cents", amount,
	)
	return session.URL, nil
}

// StartPublicCheckout opens a payment page from a reminder link. The
// organization is taken from the invoice.
func (s *PaymentService) StartPublicCheckout(ctx context.Context, invoiceID uuid.UUID, successURL, cancelURL string) (string, error) {
	doc, err := s.store.GetDocumentByID(ctx, postgres.UUID(invoiceID))
	if postgres.IsNotFound(err) {
		return "", domain.WithOp(domain.ErrInvoiceNotFound, "service.StartPublicCheckout")
	}
	if err != nil {
		return "", domain.Internal(err, "service.StartPublicCheckout", "failed to load invoice")
	}
	ctx = domain.NewContextWithOrganization(ctx, postgres.FromUUID(doc.OrganizationID))
	return s.CreateCheckoutSession(ctx, invoiceID, successURL, cancelURL)
}

// RecordManualPayment records a payment received outside the processor.
func (s *PaymentService) RecordManualPayment(ctx context.Context, invoiceID uuid.UUID, params RecordPaymentParams) (domain.ReconcileResult, error) {
	orgID, err := domain.RequireOrganizationID(ctx)
	if err != nil {
		return domain.ReconcileResult{}, err
	}
	var paidAt time.Time
	if params.PaidAt != nil {
		paidAt = *params.PaidAt
	}
	return s.Reconcile(ctx, ReconcileParams{
		OrganizationID: orgID,
		InvoiceID:      invoiceID,
		Reference:      params.Reference,
		AmountCents:    params.AmountCents,
		Method:         params.Method,
		PaidAt:         paidAt,
		Source:         SourceManual,
	})
}

// ListPayments returns the payments recorded against an invoice.
func (s *PaymentService) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error) {
	const op = "service.ListPayments"

	orgID, err := domain.RequireOrganizationID(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetDocument(ctx, repository.GetDocumentParams{ID: postgres.UUID(invoiceID), OrganizationID: postgres.UUID(orgID)}); postgres.IsNotFound(err) {
		return nil, domain.WithOp(domain.ErrInvoiceNotFound, op)
	} else if err != nil {
		return nil, domain.Internal(err, op, "failed to load invoice")
	}

	rows, err := s.store.ListInvoicePayments(ctx, repository.ListInvoicePaymentsParams{
		InvoiceID:      postgres.UUID(invoiceID),
		OrganizationID: postgres.UUID(orgID),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list payments")
	}
	out := make([]Payment, 0, len(rows))
	for _, p := range rows {
		out = append(out, Payment{
			ID:          postgres.FromUUID(p.ID),
			InvoiceID:   postgres.FromUUID(p.InvoiceID),
			AmountCents: p.AmountCents,
			Currency:    p.Currency,
			Method:      p.Method,
			Reference:   p.Reference,
			PaidAt:      p.PaidAt.Time,
			CreatedAt:   p.CreatedAt.Time,
		})
	}
	return out, nil
}
