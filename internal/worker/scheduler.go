package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/comptoir/internal/jobs"
	"github.com/dukerupert/comptoir/internal/postgres"
	"github.com/dukerupert/comptoir/internal/repository"
)

// Scheduler enqueues the daily overdue sweep of every organization. Each
// sweep job is deduplicated per organization and UTC date, so any number of
// replicas may tick.
type Scheduler struct {
	store    repository.Querier
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewScheduler(store repository.Querier, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{store: store, interval: interval, logger: logger, now: time.Now}
}

// Start ticks until ctx is cancelled. The first tick runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("overdue scheduling failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick enqueues today's sweep for every organization and returns how many
// organizations it visited.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	date := s.now().UTC().Format(time.DateOnly)
	ids, err := s.store.ListOrganizationIDs(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := jobs.EnqueueMarkOverdue(ctx, s.store, postgres.FromUUID(id), date); err != nil {
			return 0, err
		}
	}
	s.logger.Debug("overdue sweeps scheduled", "date", date, "organizations", len(ids))
	return len(ids), nil
}
