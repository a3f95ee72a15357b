package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/comptoir/internal/notify"
	"github.com/dukerupert/comptoir/internal/repository"
)

// Job type constants for overdue and reminder jobs
const (
	JobTypeMarkOverdue      = "invoice:mark_overdue"
	JobTypeRunReminder      = "reminder:run"
	JobTypeDispatchReminder = "reminder:dispatch"
)

// Reminder channels
const (
	ChannelEmail = notify.ChannelEmail
	ChannelSMS   = notify.ChannelSMS
)

// MarkOverduePayload asks for one organization's overdue sweep as of Date
// (YYYY-MM-DD, UTC).
type MarkOverduePayload struct {
	Date string `json:"date"`
}

// RunReminderPayload fires reminder step Sequence for an invoice.
type RunReminderPayload struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	Sequence  int32     `json:"sequence"`
}

// DispatchReminderPayload delivers one reminder step on one channel.
type DispatchReminderPayload struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	Channel   string    `json:"channel"`
	Sequence  int32     `json:"sequence"`
}

// MarkOverdueDedupeKey allows one sweep per organization per day.
func MarkOverdueDedupeKey(orgID uuid.UUID, date string) string {
	return fmt.Sprintf("mark_overdue:%s:%s", orgID, date)
}

// ReminderDedupeKey identifies reminder step sequence of an invoice.
func ReminderDedupeKey(invoiceID uuid.UUID, sequence int32) string {
	return fmt.Sprintf("reminder:%s:%d", invoiceID, sequence)
}

// DispatchDedupeKey identifies one channel delivery of a reminder step.
func DispatchDedupeKey(invoiceID uuid.UUID, channel string, sequence int32) string {
	return fmt.Sprintf("reminder_dispatch:%s:%s:%d", invoiceID, channel, sequence)
}

// EnqueueMarkOverdue enqueues the daily overdue sweep for an organization.
func EnqueueMarkOverdue(ctx context.Context, q repository.Querier, orgID uuid.UUID, date string) error {
	return enqueue(ctx, q, orgID, JobTypeMarkOverdue, MarkOverduePayload{Date: date}, options{
		queue:          QueueCollection,
		priority:       50,
		maxRetries:     3,
		timeoutSeconds: 300,
		dedupeKey:      MarkOverdueDedupeKey(orgID, date),
	})
}

// EnqueueRunReminder arms reminder step sequence to fire at runAt.
func EnqueueRunReminder(ctx context.Context, q repository.Querier, orgID uuid.UUID, payload RunReminderPayload, runAt time.Time) error {
	return enqueue(ctx, q, orgID, JobTypeRunReminder, payload, options{
		queue:          QueueCollection,
		priority:       75,
		maxRetries:     5,
		timeoutSeconds: 60,
		scheduledAt:    runAt,
		dedupeKey:      ReminderDedupeKey(payload.InvoiceID, payload.Sequence),
	})
}

// EnqueueDispatchReminder enqueues the delivery of a fired reminder step.
func EnqueueDispatchReminder(ctx context.Context, q repository.Querier, orgID uuid.UUID, payload DispatchReminderPayload) error {
	return enqueue(ctx, q, orgID, JobTypeDispatchReminder, payload, options{
		queue:          QueueEmail,
		priority:       75,
		maxRetries:     5,
		timeoutSeconds: 30,
		dedupeKey:      DispatchDedupeKey(payload.InvoiceID, payload.Channel, payload.Sequence),
	})
}
