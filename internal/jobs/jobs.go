// Package jobs defines the durable background job types and enqueue helpers.
//
// Enqueue helpers take a repository.Querier so callers can enqueue inside the
// transaction whose commit makes the job meaningful. A job with a dedupe key
// is enqueued at most once; enqueueing it again is a silent no-op.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/comptoir/internal/repository"
	"github.com/dukerupert/comptoir/internal/telemetry"
)

// Queues
const (
	QueueCollection    = "collection"
	QueueEmail         = "email"
	QueueNotifications = "notifications"
)

type options struct {
	queue          string
	priority       int32
	maxRetries     int32
	timeoutSeconds int32
	scheduledAt    time.Time // zero means now
	dedupeKey      string
}

func enqueue(ctx context.Context, q repository.Querier, orgID uuid.UUID, jobType string, payload any, opts options) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	params := repository.EnqueueJobParams{
		OrganizationID: pgtype.UUID{Bytes: orgID, Valid: orgID != uuid.Nil},
		JobType:        jobType,
		Queue:          opts.queue,
		Payload:        payloadJSON,
		DedupeKey:      pgtype.Text{String: opts.dedupeKey, Valid: opts.dedupeKey != ""},
		Priority:       opts.priority,
		MaxRetries:     opts.maxRetries,
		TimeoutSeconds: opts.timeoutSeconds,
	}
	if !opts.scheduledAt.IsZero() {
		params.ScheduledAt = pgtype.Timestamptz{Time: opts.scheduledAt, Valid: true}
	}

	_, err = q.EnqueueJob(ctx, params)
	if errors.Is(err, pgx.ErrNoRows) {
		// dedupe key already taken
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue %s job: %w", jobType, err)
	}
	telemetry.Business.RecordJobEnqueued(jobType)
	return nil
}

// Decode unmarshals a job payload into v.
func Decode(job repository.Job, v any) error {
	if err := json.Unmarshal(job.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", job.JobType, err)
	}
	return nil
}
