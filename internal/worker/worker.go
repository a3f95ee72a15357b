// Package worker runs the durable background jobs stored in Postgres.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sourcegraph/conc/pool"

	"github.com/dukerupert/comptoir/internal/postgres"
	"github.com/dukerupert/comptoir/internal/repository"
	"github.com/dukerupert/comptoir/internal/telemetry"
)

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// PollInterval is how often to check for new jobs
	PollInterval time.Duration

	// MaxConcurrency is the maximum number of jobs to process concurrently
	MaxConcurrency int

	// Queue name to process (empty string = all queues)
	Queue string

	// StaleInterval is how often jobs abandoned by a crashed worker are
	// released back to pending.
	StaleInterval time.Duration

	// RetryBaseDelay and RetryMaxDelay bound the exponential retry delay.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// HandlerFunc processes one claimed job. The context carries the job's
// organization and is cancelled at the job's timeout.
type HandlerFunc func(ctx context.Context, job repository.Job) error

// Worker processes background jobs
type Worker struct {
	config   Config
	store    repository.Querier
	logger   *slog.Logger
	now      func() time.Time
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	inflight atomic.Int32
}

// NewWorker creates a new background job worker
func NewWorker(store repository.Querier, config Config, logger *slog.Logger) *Worker {
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 5
	}
	if config.StaleInterval == 0 {
		config.StaleInterval = time.Minute
	}
	if config.RetryBaseDelay == 0 {
		config.RetryBaseDelay = 30 * time.Second
	}
	if config.RetryMaxDelay == 0 {
		config.RetryMaxDelay = time.Hour
	}

	return &Worker{
		config:   config,
		store:    store,
		logger:   logger.With("worker_id", config.WorkerID),
		now:      time.Now,
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers the handler for jobType, replacing any previous one.
func (w *Worker) Handle(jobType string, h HandlerFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = h
}

func (w *Worker) handler(jobType string) (HandlerFunc, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.handlers[jobType]
	return h, ok
}

// Start processes jobs until ctx is cancelled. In-flight jobs are allowed
// to finish before Start returns.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"queue", w.config.Queue,
		"poll_interval", w.config.PollInterval,
		"max_concurrency", w.config.MaxConcurrency,
	)

	p := pool.New().WithMaxGoroutines(w.config.MaxConcurrency)
	// Jobs run detached from ctx so a shutdown lets them finish.
	runCtx := context.WithoutCancel(ctx)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()
	stale := time.NewTicker(w.config.StaleInterval)
	defer stale.Stop()

	w.requeueStale(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down", "in_flight", w.inflight.Load())
			p.Wait()
			return nil

		case <-stale.C:
			w.requeueStale(ctx)

		case <-ticker.C:
			for int(w.inflight.Load()) < w.config.MaxConcurrency {
				job, ok := w.claim(ctx)
				if !ok {
					break
				}
				w.inflight.Add(1)
				p.Go(func() {
					defer w.inflight.Add(-1)
					w.run(runCtx, job)
				})
			}
		}
	}
}

// ProcessNext claims and runs a single job synchronously. It reports false
// when no job was ready.
func (w *Worker) ProcessNext(ctx context.Context) bool {
	job, ok := w.claim(ctx)
	if !ok {
		return false
	}
	w.run(ctx, job)
	return true
}

func (w *Worker) claim(ctx context.Context) (repository.Job, bool) {
	job, err := w.store.ClaimNextJob(ctx, repository.ClaimNextJobParams{
		WorkerID: w.config.WorkerID,
		Queue:    w.config.Queue,
	})
	if postgres.IsNotFound(err) {
		return job, false
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.logger.Error("failed to claim job", "error", err)
		}
		return job, false
	}
	return job, true
}

// run executes a claimed job and records the outcome.
func (w *Worker) run(ctx context.Context, job repository.Job) {
	logger := w.logger.With(
		"job_id", postgres.UUIDString(job.ID),
		"job_type", job.JobType,
		"retry_count", job.RetryCount,
	)
	logger.Info("processing job")

	started := time.Now()
	err := w.execute(ctx, job)
	telemetry.Business.RecordJob(job.JobType, time.Since(started), err)

	if err == nil {
		if err := w.store.CompleteJob(ctx, job.ID); err != nil {
			logger.Error("failed to mark job completed", "error", err)
			return
		}
		logger.Info("job completed", "duration", time.Since(started))
		return
	}

	retryAt := w.now().Add(w.retryDelay(job.RetryCount))
	failed, ferr := w.store.FailJob(ctx, repository.FailJobParams{
		ID:           job.ID,
		ErrorMessage: pgtype.Text{String: err.Error(), Valid: true},
		RetryAt:      postgres.Timestamptz(retryAt),
	})
	if ferr != nil {
		logger.Error("failed to record job failure", "error", ferr, "job_error", err)
		return
	}
	if failed.Status == "failed" {
		logger.Error("job failed permanently", "error", err)
		telemetry.CaptureError(ctx, err, postgres.UUIDString(job.OrganizationID), map[string]any{
			"job_id":   postgres.UUIDString(job.ID),
			"job_type": job.JobType,
		})
		return
	}
	logger.Warn("job failed, will retry", "error", err, "retry_at", retryAt)
}

func (w *Worker) execute(ctx context.Context, job repository.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
			w.logger.Error("job panic", "job_type", job.JobType, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	h, ok := w.handler(job.JobType)
	if !ok {
		return fmt.Errorf("unknown job type: %s", job.JobType)
	}
	jobCtx, err := withOrganization(ctx, job)
	if err != nil {
		return err
	}
	if job.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, time.Duration(job.TimeoutSeconds)*time.Second)
		defer cancel()
	}
	return h(jobCtx, job)
}

// retryDelay grows exponentially with the number of failed attempts.
func (w *Worker) retryDelay(retryCount int32) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.config.RetryBaseDelay
	b.MaxInterval = w.config.RetryMaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	d := b.NextBackOff()
	for i := int32(0); i < retryCount; i++ {
		d = b.NextBackOff()
	}
	return d
}

func (w *Worker) requeueStale(ctx context.Context) {
	n, err := w.store.RequeueStaleJobs(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.logger.Error("failed to requeue stale jobs", "error", err)
		}
		return
	}
	if n > 0 {
		w.logger.Warn("requeued stale jobs", "count", n)
	}
}
