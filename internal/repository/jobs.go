package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const jobColumns = `id, organization_id, job_type, queue, payload, dedupe_key, status, priority,
    retry_count, max_retries, scheduled_at, timeout_seconds, worker_id, started_at,
    completed_at, error_message, created_at, updated_at`

func scanJob(row pgx.Row) (Job, error) {
	var i Job
	err := row.Scan(
		&i.ID,
		&i.OrganizationID,
		&i.JobType,
		&i.Queue,
		&i.Payload,
		&i.DedupeKey,
		&i.Status,
		&i.Priority,
		&i.RetryCount,
		&i.MaxRetries,
		&i.ScheduledAt,
		&i.TimeoutSeconds,
		&i.WorkerID,
		&i.StartedAt,
		&i.CompletedAt,
		&i.ErrorMessage,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

// EnqueueJob returns pgx.ErrNoRows when a job with the same dedupe key was
// already enqueued.
const enqueueJob = `
INSERT INTO jobs (
    organization_id, job_type, queue, payload, dedupe_key, priority, max_retries,
    scheduled_at, timeout_seconds
) VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()), $9)
ON CONFLICT (dedupe_key) WHERE dedupe_key IS NOT NULL DO NOTHING
RETURNING ` + jobColumns

type EnqueueJobParams struct {
	OrganizationID pgtype.UUID        `json:"organization_id"`
	JobType        string             `json:"job_type"`
	Queue          string             `json:"queue"`
	Payload        []byte             `json:"payload"`
	DedupeKey      pgtype.Text        `json:"dedupe_key"`
	Priority       int32              `json:"priority"`
	MaxRetries     int32              `json:"max_retries"`
	ScheduledAt    pgtype.Timestamptz `json:"scheduled_at"`
	TimeoutSeconds int32              `json:"timeout_seconds"`
}

func (q *Queries) EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error) {
	return scanJob(q.db.QueryRow(ctx, enqueueJob,
		arg.OrganizationID,
		arg.JobType,
		arg.Queue,
		arg.Payload,
		arg.DedupeKey,
		arg.Priority,
		arg.MaxRetries,
		arg.ScheduledAt,
		arg.TimeoutSeconds,
	))
}

// SKIP LOCKED lets several workers poll the same queue without claiming the
// same job.
const claimNextJob = `
UPDATE jobs SET
    status = 'processing',
    worker_id = $1,
    started_at = now(),
    updated_at = now()
WHERE id = (
    SELECT id FROM jobs
    WHERE status = 'pending'
      AND scheduled_at <= now()
      AND ($2::text = '' OR queue = $2)
    ORDER BY priority DESC, scheduled_at
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + jobColumns

type ClaimNextJobParams struct {
	WorkerID string `json:"worker_id"`
	Queue    string `json:"queue"`
}

func (q *Queries) ClaimNextJob(ctx context.Context, arg ClaimNextJobParams) (Job, error) {
	return scanJob(q.db.QueryRow(ctx, claimNextJob, arg.WorkerID, arg.Queue))
}

const completeJob = `
UPDATE jobs SET status = 'completed', completed_at = now(), error_message = NULL, updated_at = now()
WHERE id = $1
`

func (q *Queries) CompleteJob(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, completeJob, id)
	return err
}

// A failed job goes back to pending at retry_at until max_retries is spent.
const failJob = `
UPDATE jobs SET
    retry_count = retry_count + 1,
    status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
    scheduled_at = CASE WHEN retry_count + 1 >= max_retries THEN scheduled_at ELSE $3 END,
    error_message = $2,
    worker_id = NULL,
    started_at = NULL,
    updated_at = now()
WHERE id = $1
RETURNING ` + jobColumns

type FailJobParams struct {
	ID           pgtype.UUID        `json:"id"`
	ErrorMessage pgtype.Text        `json:"error_message"`
	RetryAt      pgtype.Timestamptz `json:"retry_at"`
}

func (q *Queries) FailJob(ctx context.Context, arg FailJobParams) (Job, error) {
	return scanJob(q.db.QueryRow(ctx, failJob, arg.ID, arg.ErrorMessage, arg.RetryAt))
}

// Jobs left in processing by a crashed worker are released once twice their
// timeout has passed.
const requeueStaleJobs = `
UPDATE jobs SET
    status = 'pending',
    worker_id = NULL,
    started_at = NULL,
    retry_count = retry_count + 1,
    updated_at = now()
WHERE status = 'processing'
  AND started_at < now() - make_interval(secs => timeout_seconds * 2)
`

func (q *Queries) RequeueStaleJobs(ctx context.Context) (int64, error) {
	result, err := q.db.Exec(ctx, requeueStaleJobs)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
