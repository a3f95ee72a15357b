package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/jobs"
	"github.com/dukerupert/comptoir/internal/postgres"
	"github.com/dukerupert/comptoir/internal/repository"
	"github.com/dukerupert/comptoir/internal/repository/repotest"
)

var testNow = time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)

type harness struct {
	store  *repotest.Store
	worker *Worker
	now    time.Time
	orgID  uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: repotest.New(), now: testNow}
	h.store.SetClock(func() time.Time { return h.now })

	org, err := h.store.CreateOrganization(context.Background(), repository.CreateOrganizationParams{Name: "Atelier Dupont", Slug: "atelier-dupont"})
	require.NoError(t, err)
	h.orgID = postgres.FromUUID(org.ID)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.worker = NewWorker(h.store, Config{WorkerID: "test-worker"}, logger)
	h.worker.now = func() time.Time { return h.now }
	return h
}

func (h *harness) enqueueSweep(t *testing.T) {
	t.Helper()
	require.NoError(t, jobs.EnqueueMarkOverdue(context.Background(), h.store, h.orgID, "2026-03-02"))
}

func (h *harness) onlyJob(t *testing.T) repository.Job {
	t.Helper()
	all := h.store.Jobs()
	require.Len(t, all, 1)
	return all[0]
}

// ============================================================================
// Processing
// ============================================================================

func TestProcessNext_RunsHandlerInOrganizationScope(t *testing.T) {
	h := newHarness(t)
	h.enqueueSweep(t)

	var (
		gotOrg      uuid.UUID
		hasDeadline bool
	)
	h.worker.Handle(jobs.JobTypeMarkOverdue, func(ctx context.Context, job repository.Job) error {
		gotOrg, _ = domain.RequireOrganizationID(ctx)
		_, hasDeadline = ctx.Deadline()
		return nil
	})

	assert.True(t, h.worker.ProcessNext(context.Background()))
	assert.Equal(t, h.orgID, gotOrg)
	assert.True(t, hasDeadline, "the job timeout bounds the handler")
	assert.Equal(t, "completed", h.onlyJob(t).Status)

	assert.False(t, h.worker.ProcessNext(context.Background()), "queue is drained")
}

func TestProcessNext_FailureIsRetriedWithBackoff(t *testing.T) {
	h := newHarness(t)
	h.enqueueSweep(t)

	calls := 0
	h.worker.Handle(jobs.JobTypeMarkOverdue, func(ctx context.Context, job repository.Job) error {
		calls++
		if calls == 1 {
			return errors.New("connection reset")
		}
		return nil
	})

	require.True(t, h.worker.ProcessNext(context.Background()))
	job := h.onlyJob(t)
	assert.Equal(t, "pending", job.Status)
	assert.Equal(t, int32(1), job.RetryCount)
	assert.Equal(t, "connection reset", job.ErrorMessage.String)
	assert.Equal(t, testNow.Add(30*time.Second), job.ScheduledAt.Time)

	assert.False(t, h.worker.ProcessNext(context.Background()), "retry is not due yet")

	h.now = h.now.Add(31 * time.Second)
	require.True(t, h.worker.ProcessNext(context.Background()))
	assert.Equal(t, "completed", h.onlyJob(t).Status)
	assert.Equal(t, 2, calls)
}

func TestProcessNext_GivesUpAfterMaxRetries(t *testing.T) {
	h := newHarness(t)
	h.enqueueSweep(t)
	h.worker.Handle(jobs.JobTypeMarkOverdue, func(context.Context, repository.Job) error {
		return errors.New("still broken")
	})

	for range 3 {
		require.True(t, h.worker.ProcessNext(context.Background()))
		h.now = h.now.Add(2 * time.Hour)
	}

	job := h.onlyJob(t)
	assert.Equal(t, "failed", job.Status)
	assert.Equal(t, int32(3), job.RetryCount)
	assert.False(t, h.worker.ProcessNext(context.Background()))
}

func TestProcessNext_RecoversPanics(t *testing.T) {
	h := newHarness(t)
	h.enqueueSweep(t)
	h.worker.Handle(jobs.JobTypeMarkOverdue, func(context.Context, repository.Job) error {
		panic("nil map")
	})

	require.True(t, h.worker.ProcessNext(context.Background()))
	job := h.onlyJob(t)
	assert.Equal(t, "pending", job.Status)
	assert.Contains(t, job.ErrorMessage.String, "job panicked")
}

func TestProcessNext_UnknownJobTypeFails(t *testing.T) {
	h := newHarness(t)
	h.enqueueSweep(t)

	require.True(t, h.worker.ProcessNext(context.Background()))
	job := h.onlyJob(t)
	assert.Equal(t, int32(1), job.RetryCount)
	assert.Contains(t, job.ErrorMessage.String, "unknown job type")
}

func TestProcessNext_JobWithoutOrganizationFails(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, jobs.EnqueueMarkOverdue(context.Background(), h.store, uuid.Nil, "2026-03-02"))
	h.worker.Handle(jobs.JobTypeMarkOverdue, func(context.Context, repository.Job) error {
		t.Fatal("handler must not run without an organization")
		return nil
	})

	require.True(t, h.worker.ProcessNext(context.Background()))
	assert.Equal(t, errNoOrganization.Error(), h.onlyJob(t).ErrorMessage.String)
}

func TestRetryDelay(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 30*time.Second, h.worker.retryDelay(0))
	assert.Equal(t, time.Minute, h.worker.retryDelay(1))
	assert.Equal(t, 2*time.Minute, h.worker.retryDelay(2))
	assert.Equal(t, time.Hour, h.worker.retryDelay(20))
}

func TestRequeueStale(t *testing.T) {
	h := newHarness(t)
	h.enqueueSweep(t)

	// A worker claims the job and dies.
	_, err := h.store.ClaimNextJob(context.Background(), repository.ClaimNextJobParams{WorkerID: "crashed"})
	require.NoError(t, err)

	h.worker.requeueStale(context.Background())
	assert.Equal(t, "processing", h.onlyJob(t).Status, "still within its timeout")

	h.now = h.now.Add(11 * time.Minute)
	h.worker.requeueStale(context.Background())
	job := h.onlyJob(t)
	assert.Equal(t, "pending", job.Status)
	assert.False(t, job.WorkerID.Valid)
}

func TestStart_DrainsQueueAndStops(t *testing.T) {
	h := newHarness(t)
	h.worker.config.PollInterval = time.Millisecond
	for _, date := range []string{"2026-03-01", "2026-03-02", "2026-03-03"} {
		require.NoError(t, jobs.EnqueueMarkOverdue(context.Background(), h.store, h.orgID, date))
	}

	done := make(chan struct{}, 3)
	h.worker.Handle(jobs.JobTypeMarkOverdue, func(context.Context, repository.Job) error {
		done <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.worker.Start(ctx) }()

	for range 3 {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("jobs were not processed")
		}
	}
	cancel()
	require.NoError(t, <-errc)

	for _, j := range h.store.Jobs() {
		assert.Equal(t, "completed", j.Status)
	}
}
