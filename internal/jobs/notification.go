package jobs

import (
	"context"

	"github.com/google/uuid"

	"github.com/dukerupert/comptoir/internal/repository"
)

// JobTypeCreateNotification retries a notification insert that failed inside
// a ledger transaction.
const JobTypeCreateNotification = "notification:create"

// CreateNotificationPayload carries everything needed to insert the row.
// DedupeKey keeps the retry from doubling a notification that did land.
type CreateNotificationPayload struct {
	UserID     uuid.UUID `json:"user_id"`
	Type       string    `json:"type"`
	DocumentID uuid.UUID `json:"document_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	DedupeKey  string    `json:"dedupe_key"`
}

// EnqueueCreateNotification enqueues a notification insert retry.
func EnqueueCreateNotification(ctx context.Context, q repository.Querier, orgID uuid.UUID, payload CreateNotificationPayload) error {
	return enqueue(ctx, q, orgID, JobTypeCreateNotification, payload, options{
		queue:          QueueNotifications,
		priority:       60,
		maxRetries:     10,
		timeoutSeconds: 30,
		dedupeKey:      "notification_retry:" + payload.DedupeKey,
	})
}
