package numbering

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/repository"
	"github.com/dukerupert/comptoir/internal/repository/repotest"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAllocator() *Allocator {
	return NewAllocator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func allocateInTx(t *testing.T, store *repotest.Store, a *Allocator, org uuid.UUID, docType domain.DocumentType, issued time.Time) (string, error) {
	t.Helper()
	var number string
	err := store.ExecTx(context.Background(), func(tx repository.TxQuerier) error {
		var err error
		number, err = a.Allocate(context.Background(), tx, org, docType, issued)
		return err
	})
	return number, err
}

func TestAllocate_SequentialNumbers(t *testing.T) {
	store := repotest.New()
	a := newAllocator()
	org := uuid.New()
	issued := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	for _, want := range []string{"FAC-2026-0001", "FAC-2026-0002", "FAC-2026-0003"} {
		got, err := allocateInTx(t, store, a, org, domain.DocumentTypeInvoice, issued)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestAllocate_ScopesAreIndependent(t *testing.T) {
	store := repotest.New()
	a := newAllocator()
	orgA, orgB := uuid.New(), uuid.New()
	d2026 := time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC)
	d2027 := time.Date(2027, 1, 1, 0, 30, 0, 0, time.UTC)

	got, err := allocateInTx(t, store, a, orgA, domain.DocumentTypeInvoice, d2026)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-0001", got)

	got, err = allocateInTx(t, store, a, orgA, domain.DocumentTypeQuote, d2026)
	require.NoError(t, err)
	assert.Equal(t, "DEV-2026-0001", got)

	got, err = allocateInTx(t, store, a, orgB, domain.DocumentTypeInvoice, d2026)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-0001", got)

	got, err = allocateInTx(t, store, a, orgA, domain.DocumentTypeInvoice, d2027)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2027-0001", got, "a new year starts a new sequence")
}

func TestAllocate_PeriodUsesUTCYear(t *testing.T) {
	store := repotest.New()
	a := newAllocator()
	paris := time.FixedZone("CET", 3600)
	// 00:30 on Jan 1 in Paris is still Dec 31 in UTC.
	issued := time.Date(2027, 1, 1, 0, 30, 0, 0, paris)

	got, err := allocateInTx(t, store, a, uuid.New(), domain.DocumentTypeInvoice, issued)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-0001", got)
}

func TestAllocate_ConcurrentCallersGetDistinctContiguousNumbers(t *testing.T) {
	store := repotest.New()
	a := newAllocator()
	org := uuid.New()
	issued := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	const n = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []string
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := allocateInTx(t, store, a, org, domain.DocumentTypeInvoice, issued)
			assert.NoError(t, err)
			mu.Lock()
			numbers = append(numbers, number)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, numbers, n)
	sort.Strings(numbers)
	for i, number := range numbers {
		assert.Equal(t, domain.FormatDocumentNumber("FAC", 2026, int64(i+1), 4), number)
	}
}

func TestAllocate_RollbackReleasesOrdinal(t *testing.T) {
	store := repotest.New()
	a := newAllocator()
	org := uuid.New()
	issued := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	boom := errors.New("document insert failed")
	err := store.ExecTx(context.Background(), func(tx repository.TxQuerier) error {
		_, err := a.Allocate(context.Background(), tx, org, domain.DocumentTypeInvoice, issued)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := allocateInTx(t, store, a, org, domain.DocumentTypeInvoice, issued)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-0001", got, "an aborted transaction must not consume an ordinal")
}

func TestAllocate_ConnectionLossIsRetried(t *testing.T) {
	store := repotest.New()
	a := newAllocator()
	org := uuid.New()
	issued := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	store.FailNext("NextDocumentSequenceValue", &pgconn.PgError{Code: "08006", Message: "connection failure"})

	got, err := allocateInTx(t, store, a, org, domain.DocumentTypeInvoice, issued)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-0001", got)
	assert.Equal(t, 1, store.Rollbacks())
}

func TestAllocate_PersistentConflictSurfacesUnavailable(t *testing.T) {
	store := repotest.New()
	a := newAllocator()
	org := uuid.New()
	issued := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	for range store.MaxAttempts {
		store.FailNext("NextDocumentSequenceValue", domain.ErrConcurrencyConflict)
	}

	_, err := allocateInTx(t, store, a, org, domain.DocumentTypeInvoice, issued)
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	got, err := allocateInTx(t, store, a, org, domain.DocumentTypeInvoice, issued)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-0001", got)
}

func TestAllocate_ScopeUnresolvable(t *testing.T) {
	valid := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		org     uuid.UUID
		docType domain.DocumentType
		issued  time.Time
	}{
		{name: "missing organization", org: uuid.Nil, docType: domain.DocumentTypeInvoice, issued: valid},
		{name: "unknown document type", org: uuid.New(), docType: "credit_note", issued: valid},
		{name: "zero issue date", org: uuid.New(), docType: domain.DocumentTypeInvoice},
		{name: "year before range", org: uuid.New(), docType: domain.DocumentTypeQuote, issued: time.Date(1999, 6, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repotest.New()
			_, err := allocateInTx(t, store, newAllocator(), tt.org, tt.docType, tt.issued)
			assert.ErrorIs(t, err, domain.ErrScopeUnresolvable)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		})
	}
}

func TestPeek(t *testing.T) {
	store := repotest.New()
	a := newAllocator()
	org := uuid.New()
	issued := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	last, err := a.Peek(context.Background(), store, org, domain.DocumentTypeInvoice, 2026)
	require.NoError(t, err)
	assert.Zero(t, last)

	for range 2 {
		_, err := allocateInTx(t, store, a, org, domain.DocumentTypeInvoice, issued)
		require.NoError(t, err)
	}

	last, err = a.Peek(context.Background(), store, org, domain.DocumentTypeInvoice, 2026)
	require.NoError(t, err)
	assert.Equal(t, int64(2), last)
}
