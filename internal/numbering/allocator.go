// Package numbering issues legal document numbers.
//
// Ordinals are strictly gapless per (organization, document type, period).
// Allocate runs on the caller's transaction so the ordinal and the document
// that carries it commit or roll back together; the upsert's row lock orders
// concurrent senders of the same scope.
package numbering

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/postgres"
	"github.com/dukerupert/comptoir/internal/repository"
	"github.com/dukerupert/comptoir/internal/telemetry"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Years outside this range are treated as a malformed issue date.
const (
	minPeriod = 2000
	maxPeriod = 9999
)

// Allocator hands out the next number for a scope.
type Allocator struct {
	logger *slog.Logger
}

func NewAllocator(logger *slog.Logger) *Allocator {
	return &Allocator{logger: logger}
}

// Allocate increments the sequence for the scope derived from docType and the
// UTC year of issueDate and returns the formatted number. q must be the
// querier of the transaction that assigns the number.
func (a *Allocator) Allocate(ctx context.Context, q repository.Querier, orgID uuid.UUID, docType domain.DocumentType, issueDate time.Time) (string, error) {
	const op = "numbering.Allocate"

	period, err := resolvePeriod(orgID, docType, issueDate)
	if err != nil {
		return "", domain.WithOp(err, op)
	}

	seq, err := q.NextDocumentSequenceValue(ctx, repository.NextDocumentSequenceValueParams{
		OrganizationID: postgres.UUID(orgID),
		DocumentType:   string(docType),
		Period:         period,
		Prefix:         domain.NumberPrefix(docType),
		Padding:        domain.DefaultNumberPadding,
	})
	if err != nil {
		if isConnectionLoss(err) {
			return "", domain.WrapError(err, domain.ErrorCode(domain.ErrConcurrencyConflict), op, domain.ErrorMessage(domain.ErrConcurrencyConflict))
		}
		return "", err
	}

	number := domain.FormatDocumentNumber(seq.Prefix, seq.Period, seq.LastValue, seq.Padding)
	telemetry.Business.RecordNumberAllocated(orgID.String(), string(docType))
	a.logger.DebugContext(ctx, "document number allocated",
		"organization_id", orgID,
		"document_type", docType,
		"number", number,
	)
	return number, nil
}

// Peek returns the last ordinal issued in a scope, 0 when none has been.
func (a *Allocator) Peek(ctx context.Context, q repository.Querier, orgID uuid.UUID, docType domain.DocumentType, year int32) (int64, error) {
	const op = "numbering.Peek"

	if _, err := resolvePeriod(orgID, docType, time.Date(int(year), 1, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		return 0, domain.WithOp(err, op)
	}
	seq, err := q.GetDocumentSequence(ctx, repository.GetDocumentSequenceParams{
		OrganizationID: postgres.UUID(orgID),
		DocumentType:   string(docType),
		Period:         year,
	})
	if postgres.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, domain.Internal(err, op, "failed to read document sequence")
	}
	return seq.LastValue, nil
}

func resolvePeriod(orgID uuid.UUID, docType domain.DocumentType, issueDate time.Time) (int32, error) {
	if orgID == uuid.Nil || !docType.Valid() || issueDate.IsZero() {
		return 0, domain.ErrScopeUnresolvable
	}
	year := issueDate.UTC().Year()
	if year < minPeriod || year > maxPeriod {
		return 0, domain.ErrScopeUnresolvable
	}
	return int32(year), nil
}

// isConnectionLoss reports failures where the increment may not have run at
// all: the connection dropped, timed out, or the server refused the session.
func isConnectionLoss(err error) bool {
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && len(pgErr.Code) == 5 && pgErr.Code[:2] == "08"
}
