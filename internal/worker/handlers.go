package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/jobs"
	"github.com/dukerupert/comptoir/internal/repository"
)

// Collection is the part of the collection service the jobs drive.
type Collection interface {
	MarkOverdue(ctx context.Context, today time.Time) (int, error)
	RunReminder(ctx context.Context, invoiceID uuid.UUID, sequence int32) error
	DispatchReminder(ctx context.Context, invoiceID uuid.UUID, channel string, sequence int32) error
}

// Notifications retries notification inserts.
type Notifications interface {
	Retry(ctx context.Context, orgID uuid.UUID, payload jobs.CreateNotificationPayload) error
}

// Mail sends the customer-facing emails.
type Mail interface {
	SendDocument(ctx context.Context, documentID uuid.UUID) error
	SendPaymentReceipt(ctx context.Context, payload jobs.PaymentReceivedPayload) error
}

// Services are the job handlers' collaborators.
type Services struct {
	Collection    Collection
	Notifications Notifications
	Mail          Mail
	Logger        *slog.Logger
}

// RegisterHandlers wires every job type the application enqueues.
func RegisterHandlers(w *Worker, s Services) {
	w.Handle(jobs.JobTypeMarkOverdue, func(ctx context.Context, job repository.Job) error {
		var p jobs.MarkOverduePayload
		if err := jobs.Decode(job, &p); err != nil {
			return err
		}
		day, err := time.Parse(time.DateOnly, p.Date)
		if err != nil {
			return fmt.Errorf("invalid sweep date %q: %w", p.Date, err)
		}
		n, err := s.Collection.MarkOverdue(ctx, day)
		if err != nil {
			return err
		}
		s.Logger.InfoContext(ctx, "marked invoices as overdue", "date", p.Date, "count", n)
		return nil
	})

	w.Handle(jobs.JobTypeRunReminder, func(ctx context.Context, job repository.Job) error {
		var p jobs.RunReminderPayload
		if err := jobs.Decode(job, &p); err != nil {
			return err
		}
		return s.Collection.RunReminder(ctx, p.InvoiceID, p.Sequence)
	})

	w.Handle(jobs.JobTypeDispatchReminder, func(ctx context.Context, job repository.Job) error {
		var p jobs.DispatchReminderPayload
		if err := jobs.Decode(job, &p); err != nil {
			return err
		}
		return s.Collection.DispatchReminder(ctx, p.InvoiceID, p.Channel, p.Sequence)
	})

	w.Handle(jobs.JobTypeCreateNotification, func(ctx context.Context, job repository.Job) error {
		var p jobs.CreateNotificationPayload
		if err := jobs.Decode(job, &p); err != nil {
			return err
		}
		orgID, err := domain.RequireOrganizationID(ctx)
		if err != nil {
			return err
		}
		return s.Notifications.Retry(ctx, orgID, p)
	})

	w.Handle(jobs.JobTypeDocumentSent, func(ctx context.Context, job repository.Job) error {
		var p jobs.DocumentSentPayload
		if err := jobs.Decode(job, &p); err != nil {
			return err
		}
		return s.Mail.SendDocument(ctx, p.DocumentID)
	})

	w.Handle(jobs.JobTypePaymentReceived, func(ctx context.Context, job repository.Job) error {
		var p jobs.PaymentReceivedPayload
		if err := jobs.Decode(job, &p); err != nil {
			return err
		}
		return s.Mail.SendPaymentReceipt(ctx, p)
	})
}
