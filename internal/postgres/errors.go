package postgres

import (
	"errors"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the store reacts to.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// documentNumberIndex is the unique index backing number uniqueness. A
// violation means two writers raced on the same ordinal and the loser must
// replay its transaction.
const documentNumberIndex = "idx_documents_number"

// IsNotFound reports whether err is pgx's no-rows error.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsUniqueViolation reports whether err violated a unique constraint, and
// which one.
func IsUniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// IsRetryable reports whether replaying the whole transaction may succeed.
func IsRetryable(err error) bool {
	if errors.Is(err, domain.ErrConcurrencyConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	case codeUniqueViolation:
		return pgErr.ConstraintName == documentNumberIndex
	}
	return false
}

func retryReason(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return "conflict"
}
