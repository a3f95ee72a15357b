// Package postgres implements repository.Store on a pgx pool and holds the
// pgtype conversion helpers the services share.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/repository"
	"github.com/dukerupert/comptoir/internal/telemetry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
)

// DefaultMaxAttempts bounds how often a transaction is replayed after a
// transient conflict.
const DefaultMaxAttempts = 3

// Store runs queries on the pool and units of work in transactions.
type Store struct {
	*repository.Queries
	pool        *pgxpool.Pool
	logger      *slog.Logger
	maxAttempts int
	baseDelay   time.Duration
}

var _ repository.Store = (*Store)(nil)

// NewStore wraps pool. maxAttempts <= 0 uses DefaultMaxAttempts.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger, maxAttempts int) *Store {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Store{
		Queries:     repository.New(pool),
		pool:        pool,
		logger:      logger,
		maxAttempts: maxAttempts,
		baseDelay:   20 * time.Millisecond,
	}
}

// ExecTx implements repository.Store.
func (s *Store) ExecTx(ctx context.Context, fn func(repository.TxQuerier) error) error {
	b := retry.NewExponential(s.baseDelay)
	b = retry.WithJitter(s.baseDelay, b)
	b = retry.WithMaxRetries(uint64(s.maxAttempts-1), b)

	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := s.execOnce(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		telemetry.Business.RecordTxRetry(retryReason(err))
		s.logger.Warn("retrying transaction after conflict",
			"attempt", attempt,
			"max_attempts", s.maxAttempts,
			"error", err,
		)
		return retry.RetryableError(err)
	})
	if err != nil && IsRetryable(err) {
		return domain.Unavailable(err, "postgres.ExecTx", "The request conflicted with a concurrent update, please retry")
	}
	return err
}

func (s *Store) execOnce(ctx context.Context, fn func(repository.TxQuerier) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Error("failed to rollback transaction", "error", rbErr)
		}
	}()

	if err := fn(&txQueries{Queries: repository.New(tx), tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txQueries struct {
	*repository.Queries
	tx pgx.Tx
}

// Savepoint implements repository.TxQuerier with a pgx nested transaction.
func (t *txQueries) Savepoint(ctx context.Context, fn func(repository.Querier) error) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}
	if err := fn(repository.New(sp)); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to rollback savepoint: %w", rbErr))
		}
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}
