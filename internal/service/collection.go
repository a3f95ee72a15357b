package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/events"
	"github.com/dukerupert/comptoir/internal/jobs"
	"github.com/dukerupert/comptoir/internal/notify"
	"github.com/dukerupert/comptoir/internal/postgres"
	"github.com/dukerupert/comptoir/internal/repository"
	"github.com/dukerupert/comptoir/internal/telemetry"
)

// defaultOverdueBatchSize bounds one page of the overdue sweep. The sweep
// keeps paging until the backlog is empty.
const defaultOverdueBatchSize = 500

// Reasons a reminder step did nothing.
const (
	SkipPaid      = "paid"
	SkipCancelled = "cancelled"
	SkipDeleted   = "deleted"
	SkipReplay    = "replay"
	SkipNoAddress = "no_address"
	SkipNotDue    = "not_due"
)

// CollectionService runs the overdue sweep and the payment reminder steps.
// Each step is a durable job, so every method here is safe to replay.
type CollectionService struct {
	store      repository.Store
	dispatcher notify.Dispatcher
	publisher  events.Publisher
	logger     *slog.Logger
	publicURL  string
	opts       options
}

// NewCollectionService builds the service. publicURL is the externally
// reachable base URL used for pay links in reminders.
func NewCollectionService(store repository.Store, dispatcher notify.Dispatcher, publisher events.Publisher, logger *slog.Logger, publicURL string, opts ...Option) *CollectionService {
	return &CollectionService{
		store:      store,
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
		publicURL:  strings.TrimRight(publicURL, "/"),
		opts:       newOptions(opts),
	}
}

// MarkOverdue moves the organization's sent invoices due before today to
// overdue and returns how many moved. Each invoice commits on its own, so a
// failure on one leaves the others applied. Invoices that fail are left for
// the next sweep and are not retried within this one.
func (s *CollectionService) MarkOverdue(ctx context.Context, today time.Time) (int, error) {
	const op = "service.MarkOverdue"

	orgID, err := domain.RequireOrganizationID(ctx)
	if err != nil {
		return 0, err
	}
	if today.IsZero() {
		today = s.opts.today()
	}
	day := postgres.Date(today)

	var (
		seen   int
		moved  int
		failed int
		skip   []pgtype.UUID
	)
	for {
		candidates, err := s.store.ListOverdueCandidates(ctx, repository.ListOverdueCandidatesParams{
			OrganizationID: postgres.UUID(orgID),
			Today:          day,
			Limit:          s.opts.overdueBatchSize,
			ExcludeIDs:     skip,
		})
		if err != nil {
			return moved, domain.Internal(err, op, "failed to list overdue candidates")
		}
		seen += len(candidates)

		for _, c := range candidates {
			ok, err := s.markOne(ctx, orgID, c, day)
			switch {
			case err != nil:
				failed++
				skip = append(skip, c.ID)
				s.logger.ErrorContext(ctx, "failed to mark invoice overdue",
					"organization_id", orgID,
					"invoice_id", postgres.UUIDString(c.ID),
					"error", err,
				)
				telemetry.CaptureError(ctx, err, orgID.String(), map[string]any{"invoice_id": postgres.UUIDString(c.ID)})
			case !ok:
				skip = append(skip, c.ID)
			default:
				moved++
				telemetry.Business.RecordInvoiceOverdue(orgID.String())
				events.PublishBestEffort(ctx, s.publisher, s.logger, events.New(events.SubjectInvoiceOverdue, orgID, postgres.FromUUID(c.ID), map[string]string{
					"number":   c.Number.String,
					"due_date": c.DueDate.Time.Format(time.DateOnly),
				}))
			}
		}
		if int32(len(candidates)) < s.opts.overdueBatchSize {
			break
		}
	}

	s.logger.InfoContext(ctx, "overdue sweep finished",
		"organization_id", orgID,
		"date", today.Format(time.DateOnly),
		"candidates", seen,
		"moved", moved,
		"failed", failed,
	)
	return moved, nil
}

// markOne moves one invoice. It reports false when the invoice changed
// between the scan and the update, for example because it was paid.
func (s *CollectionService) markOne(ctx context.Context, orgID uuid.UUID, candidate repository.Document, day pgtype.Date) (bool, error) {
	var moved bool
	err := s.store.ExecTx(ctx, func(tx repository.TxQuerier) error {
		moved = false
		doc, err := tx.MarkInvoiceOverdue(ctx, repository.MarkInvoiceOverdueParams{
			ID:             candidate.ID,
			OrganizationID: candidate.OrganizationID,
			Today:          day,
		})
		if postgres.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to mark overdue: %w", err)
		}
		moved = true

		if doc.CreatedBy.Valid {
			createNotification(ctx, tx, s.logger, orgID, jobs.CreateNotificationPayload{
				UserID:     postgres.FromUUID(doc.CreatedBy),
				Type:       domain.NotificationInvoiceOverdue,
				DocumentID: postgres.FromUUID(doc.ID),
				Title:      "Facture en retard",
				Body:       fmt.Sprintf("La facture %s est échue depuis le %s.", doc.Number.String, doc.DueDate.Time.Format("02/01/2006")),
				DedupeKey:  "invoice_overdue:" + postgres.UUIDString(doc.ID),
			})
		}
		return nil
	})
	return moved, err
}

// RunReminder fires reminder step sequence for an invoice. It does nothing
// when the invoice no longer awaits payment or when the step was already
// delivered. Otherwise it queues one delivery per channel; the step is counted
// by the first delivery that goes out.
func (s *CollectionService) RunReminder(ctx context.Context, invoiceID uuid.UUID, sequence int32) error {
	orgID, err := domain.RequireOrganizationID(ctx)
	if err != nil {
		return err
	}

	var skipped string
	err = s.store.ExecTx(ctx, func(tx repository.TxQuerier) error {
		skipped = ""

		doc, err := tx.GetDocumentForUpdate(ctx, repository.GetDocumentParams{
			ID:             postgres.UUID(invoiceID),
			OrganizationID: postgres.UUID(orgID),
		})
		if postgres.IsNotFound(err) {
			// Deleted documents are hidden from the scoped lookup.
			skipped = SkipDeleted
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to lock invoice: %w", err)
		}

		switch domain.DocumentStatus(doc.Status) {
		case domain.StatusPaid:
			skipped = SkipPaid
			return nil
		case domain.StatusCancelled:
			skipped = SkipCancelled
			return nil
		case domain.StatusSent, domain.StatusOverdue:
		default:
			skipped = SkipNotDue
			return nil
		}
		if doc.ReminderCount >= sequence {
			skipped = SkipReplay
			return nil
		}

		for _, channel := range []string{notify.ChannelEmail, notify.ChannelSMS} {
			if err := jobs.EnqueueDispatchReminder(ctx, tx, orgID, jobs.DispatchReminderPayload{
				InvoiceID: invoiceID,
				Channel:   channel,
				Sequence:  sequence,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if skipped != "" {
		telemetry.Business.RecordReminderSkipped(skipped)
		s.logger.InfoContext(ctx, "reminder skipped",
			"organization_id", orgID,
			"invoice_id", invoiceID,
			"sequence", sequence,
			"reason", skipped,
		)
		return nil
	}
	s.logger.InfoContext(ctx, "reminder fired",
		"organization_id", orgID,
		"invoice_id", invoiceID,
		"sequence", sequence,
	)
	return nil
}

// DispatchReminder delivers a fired reminder on one channel. The invoice is
// re-read right before sending so a payment that landed in the meantime
// suppresses the message. A successful delivery counts the step on the
// invoice; the other channel of the same step finds it already counted.
func (s *CollectionService) DispatchReminder(ctx context.Context, invoiceID uuid.UUID, channel string, sequence int32) error {
	const op = "service.DispatchReminder"

	orgID, err := domain.RequireOrganizationID(ctx)
	if err != nil {
		return err
	}

	doc, err := s.store.GetDocument(ctx, repository.GetDocumentParams{ID: postgres.UUID(invoiceID), OrganizationID: postgres.UUID(orgID)})
	if postgres.IsNotFound(err) {
		s.skipDispatch(ctx, invoiceID, channel, SkipDeleted)
		return nil
	}
	if err != nil {
		return domain.Internal(err, op, "failed to load invoice")
	}
	switch domain.DocumentStatus(doc.Status) {
	case domain.StatusSent, domain.StatusOverdue:
	case domain.StatusPaid:
		s.skipDispatch(ctx, invoiceID, channel, SkipPaid)
		return nil
	default:
		s.skipDispatch(ctx, invoiceID, channel, SkipCancelled)
		return nil
	}

	recipient, err := s.store.GetDocumentRecipient(ctx, repository.GetDocumentRecipientParams{
		DocumentID:     doc.ID,
		OrganizationID: doc.OrganizationID,
	})
	if err != nil && !postgres.IsNotFound(err) {
		return domain.Internal(err, op, "failed to load recipient")
	}
	org, err := s.store.GetOrganization(ctx, doc.OrganizationID)
	if err != nil {
		return domain.Internal(err, op, "failed to load organization")
	}

	err = s.dispatcher.Dispatch(ctx, notify.Reminder{
		OrganizationID:   orgID,
		InvoiceID:        invoiceID,
		Channel:          channel,
		Sequence:         sequence,
		OrganizationName: org.Name,
		RecipientName:    recipient.Name.String,
		Email:            recipient.Email.String,
		Phone:            recipient.Phone.String,
		InvoiceNumber:    doc.Number.String,
		AmountDueCents:   doc.TotalCents - doc.PaidCents,
		Currency:         doc.Currency,
		DueDate:          doc.DueDate.Time,
		PayURL:           s.payURL(invoiceID),
	})
	if errors.Is(err, notify.ErrNoAddress) {
		s.skipDispatch(ctx, invoiceID, channel, SkipNoAddress)
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.store.RecordReminderDelivery(ctx, repository.RecordReminderDeliveryParams{
		ID:             doc.ID,
		OrganizationID: doc.OrganizationID,
		Sequence:       sequence,
		RemindedAt:     postgres.Timestamptz(s.opts.now().UTC()),
	})
	if err != nil && !postgres.IsNotFound(err) {
		// The message is out; a retry would send it twice.
		s.logger.ErrorContext(ctx, "failed to count delivered reminder",
			"organization_id", orgID,
			"invoice_id", invoiceID,
			"sequence", sequence,
			"error", err,
		)
		telemetry.CaptureError(ctx, err, orgID.String(), map[string]any{"invoice_id": invoiceID.String()})
	}

	telemetry.Business.RecordReminderDispatched(orgID.String(), channel)
	s.logger.InfoContext(ctx, "reminder dispatched",
		"organization_id", orgID,
		"invoice_id", invoiceID,
		"channel", channel,
		"sequence", sequence,
	)
	return nil
}

func (s *CollectionService) skipDispatch(ctx context.Context, invoiceID uuid.UUID, channel, reason string) {
	telemetry.Business.RecordReminderSkipped(reason)
	s.logger.InfoContext(ctx, "reminder delivery skipped",
		"invoice_id", invoiceID,
		"channel", channel,
		"reason", reason,
	)
}

func (s *CollectionService) payURL(invoiceID uuid.UUID) string {
	if s.publicURL == "" {
		return ""
	}
	return s.publicURL + "/pay/" + invoiceID.String()
}
