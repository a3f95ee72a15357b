// Package repotest provides an in-memory repository.Store for tests.
//
// Transactions hold a store-wide lock, so they run one at a time the way row
// locks serialize writers on the same rows in Postgres. Each transaction works
// on a snapshot that is swapped in on commit and dropped on error. Query
// semantics (conditional updates, ON CONFLICT DO NOTHING, unique constraints)
// follow the SQL in package repository.
package repotest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/postgres"
	"github.com/dukerupert/comptoir/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

type seqKey struct {
	org     uuid.UUID
	docType string
	period  int32
}

type state struct {
	orgs          []repository.Organization
	configs       []repository.OrganizationPaymentConfig
	contacts      []repository.Contact
	companies     []repository.Company
	sequences     map[seqKey]repository.DocumentSequence
	documents     []repository.Document
	lines         []repository.DocumentLine
	payments      []repository.Payment
	notifications []repository.Notification
	jobs          []repository.Job
}

func newState() *state {
	return &state{sequences: make(map[seqKey]repository.DocumentSequence)}
}

func (s *state) clone() *state {
	c := &state{
		orgs:          slices.Clone(s.orgs),
		configs:       slices.Clone(s.configs),
		contacts:      slices.Clone(s.contacts),
		companies:     slices.Clone(s.companies),
		sequences:     make(map[seqKey]repository.DocumentSequence, len(s.sequences)),
		documents:     slices.Clone(s.documents),
		lines:         slices.Clone(s.lines),
		payments:      slices.Clone(s.payments),
		notifications: slices.Clone(s.notifications),
		jobs:          slices.Clone(s.jobs),
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	return c
}

// Store is an in-memory repository.Store.
type Store struct {
	mu     sync.Mutex
	st     *state
	faults map[string][]error
	clock  func() time.Time

	// MaxAttempts mirrors the Postgres store's bounded replay of transactions
	// that fail with a retryable error.
	MaxAttempts int

	commits   int
	rollbacks int
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store using the wall clock.
func New() *Store {
	return &Store{
		st:          newState(),
		faults:      make(map[string][]error),
		clock:       time.Now,
		MaxAttempts: 3,
	}
}

// SetClock replaces the time source used for now() in queries.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = now
}

// FailNext makes the next call to method return err. Calls queue up.
func (s *Store) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] = append(s.faults[method], err)
}

// Commits and Rollbacks count finished transactions.
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *Store) Rollbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbacks
}

// ExecTx implements repository.Store.
func (s *Store) ExecTx(ctx context.Context, fn func(repository.TxQuerier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempts := max(s.MaxAttempts, 1)
	var err error
	for range attempts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		snapshot := s.st.clone()
		v := &view{store: s, st: snapshot}
		err = fn(&txView{view: v})
		if err == nil {
			s.st = snapshot
			s.commits++
			return nil
		}
		s.rollbacks++
		if !postgres.IsRetryable(err) {
			return err
		}
	}
	return domain.Unavailable(err, "repotest.ExecTx", "The request conflicted with a concurrent update, please retry")
}

// autocommit runs a single statement outside any transaction.
func (s *Store) autocommit() (*view, func()) {
	s.mu.Lock()
	return &view{store: s, st: s.st}, s.mu.Unlock
}

type txView struct {
	*view
}

func (t *txView) Savepoint(ctx context.Context, fn func(repository.Querier) error) error {
	snapshot := t.st.clone()
	if err := fn(t.view); err != nil {
		*t.st = *snapshot
		return err
	}
	return nil
}

// view executes queries against one state. Callers hold the store lock.
type view struct {
	store *Store
	st    *state
}

func (v *view) fault(method string) error {
	q := v.store.faults[method]
	if len(q) == 0 {
		return nil
	}
	v.store.faults[method] = q[1:]
	return q[0]
}

func (v *view) now() pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: v.store.clock(), Valid: true}
}

func newID() pgtype.UUID {
	return pgtype.UUID{Bytes: uuid.New(), Valid: true}
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value violates unique constraint"}
}

func checkViolation(constraint string) error {
	return &pgconn.PgError{Code: "23514", ConstraintName: constraint, Message: "new row violates check constraint"}
}

var errNoRows = pgx.ErrNoRows

// Snapshots for assertions.

func (s *Store) Documents() []repository.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.documents)
}

func (s *Store) Payments() []repository.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.payments)
}

func (s *Store) Notifications() []repository.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.notifications)
}

func (s *Store) Jobs() []repository.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.jobs)
}

// JobsOfType returns the jobs with the given type in enqueue order.
func (s *Store) JobsOfType(jobType string) []repository.Job {
	var out []repository.Job
	for _, j := range s.Jobs() {
		if j.JobType == jobType {
			out = append(out, j)
		}
	}
	return out
}

// UpdateDocument applies fn to a stored document, bypassing the ledger. Tests
// use it to stage states such as a past due date.
func (s *Store) UpdateDocument(id pgtype.UUID, fn func(*repository.Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.st.documents {
		if s.st.documents[i].ID == id {
			fn(&s.st.documents[i])
		}
	}
}
