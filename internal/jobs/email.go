package jobs

import (
	"context"

	"github.com/google/uuid"

	"github.com/dukerupert/comptoir/internal/repository"
)

// Job type constants for email jobs
const (
	JobTypeDocumentSent    = "email:document_sent"
	JobTypePaymentReceived = "email:payment_received"
)

// DocumentSentPayload mails a freshly sent quote or invoice to its recipient.
type DocumentSentPayload struct {
	DocumentID uuid.UUID `json:"document_id"`
}

// PaymentReceivedPayload mails a payment receipt.
type PaymentReceivedPayload struct {
	InvoiceID   uuid.UUID `json:"invoice_id"`
	Reference   string    `json:"reference"`
	AmountCents int64     `json:"amount_cents"`
}

// EnqueueDocumentSent enqueues the "document sent" email. One per document.
func EnqueueDocumentSent(ctx context.Context, q repository.Querier, orgID uuid.UUID, payload DocumentSentPayload) error {
	return enqueue(ctx, q, orgID, JobTypeDocumentSent, payload, options{
		queue:          QueueEmail,
		priority:       100,
		maxRetries:     5,
		timeoutSeconds: 30,
		dedupeKey:      "document_sent:" + payload.DocumentID.String(),
	})
}

// EnqueuePaymentReceived enqueues the payment receipt email. One per payment
// reference within the organization.
func EnqueuePaymentReceived(ctx context.Context, q repository.Querier, orgID uuid.UUID, payload PaymentReceivedPayload) error {
	return enqueue(ctx, q, orgID, JobTypePaymentReceived, payload, options{
		queue:          QueueEmail,
		priority:       100,
		maxRetries:     5,
		timeoutSeconds: 30,
		dedupeKey:      "payment_received:" + orgID.String() + ":" + payload.Reference,
	})
}
