package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/events"
	"github.com/dukerupert/comptoir/internal/jobs"
	"github.com/dukerupert/comptoir/internal/postgres"
	"github.com/dukerupert/comptoir/internal/repository"
)

// ============================================================================
// Drafts
// ============================================================================

func TestCreateDraft_DefaultsAndTotals(t *testing.T) {
	f := newFixture(t)

	inv := f.draft(domain.DocumentTypeInvoice)

	assert.Equal(t, domain.StatusDraft, inv.Status)
	assert.Empty(t, inv.Number, "drafts are never numbered")
	assert.Equal(t, "EUR", inv.Currency)
	assert.Equal(t, int64(120000), inv.SubtotalCents)
	assert.Equal(t, int64(24000), inv.VATCents)
	assert.Equal(t, int64(144000), inv.TotalCents)
	require.Len(t, inv.Lines, 2)
	assert.Equal(t, int32(1), inv.Lines[0].Position)
	assert.Equal(t, int64(120000), inv.Lines[0].TotalCents)

	require.NotNil(t, inv.IssueDate)
	require.NotNil(t, inv.DueDate)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), *inv.IssueDate)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), *inv.DueDate)
	assert.Nil(t, inv.ValidUntil)

	quote := f.draft(domain.DocumentTypeQuote)
	require.NotNil(t, quote.ValidUntil)
	assert.Nil(t, quote.DueDate)
}

func TestCreateDraft_Rejections(t *testing.T) {
	f := newFixture(t)
	unknown := uuid.New()

	tests := []struct {
		name    string
		params  CreateDocumentParams
		wantErr error
	}{
		{name: "unknown type", params: CreateDocumentParams{Type: "credit_note"}, wantErr: ErrInvalidDocumentType},
		{name: "bad currency", params: CreateDocumentParams{Type: domain.DocumentTypeInvoice, Currency: "EURO"}, wantErr: ErrInvalidCurrency},
		{name: "foreign contact", params: CreateDocumentParams{Type: domain.DocumentTypeInvoice, ContactID: &unknown}, wantErr: ErrContactNotFound},
		{name: "foreign company", params: CreateDocumentParams{Type: domain.DocumentTypeQuote, CompanyID: &unknown}, wantErr: ErrCompanyNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.docs.CreateDraft(f.ctx, tt.params)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Empty(t, f.store.Documents())
}

func TestCreateDraft_RequiresOrganization(t *testing.T) {
	f := newFixture(t)
	_, err := f.docs.CreateDraft(t.Context(), CreateDocumentParams{Type: domain.DocumentTypeInvoice})
	assert.ErrorIs(t, err, domain.ErrOrganizationRequired)
}

func TestUpdateDraft_ReplacesLines(t *testing.T) {
	f := newFixture(t)
	inv := f.draft(domain.DocumentTypeInvoice)

	lines := sampleLines()[:1]
	updated, err := f.docs.UpdateDraft(f.ctx, inv.ID, UpdateDocumentParams{ContactID: &f.contactID, Lines: lines, Notes: " Merci "})
	require.NoError(t, err)

	require.Len(t, updated.Lines, 1)
	assert.Equal(t, int64(120000), updated.TotalCents)
	assert.Equal(t, "Merci", updated.Notes)
}

func TestUpdateDraft_LockedAfterSend(t *testing.T) {
	f := newFixture(t)
	inv := f.sent(domain.DocumentTypeInvoice)

	_, err := f.docs.UpdateDraft(f.ctx, inv.ID, UpdateDocumentParams{Lines: sampleLines()})
	assert.ErrorIs(t, err, domain.ErrDocumentLocked)
}

// ============================================================================
// Send
// ============================================================================

func TestSend_NumbersAndArmsReminder(t *testing.T) {
	f := newFixture(t)

	inv := f.sent(domain.DocumentTypeInvoice)

	assert.Equal(t, domain.StatusSent, inv.Status)
	assert.Equal(t, "FAC-2026-0001", inv.Number)
	require.NotNil(t, inv.SentAt)

	reminders := f.store.JobsOfType(jobs.JobTypeRunReminder)
	require.Len(t, reminders, 1)
	assert.Equal(t, f.now.Add(DefaultReminderDelay), reminders[0].ScheduledAt.Time)
	var payload jobs.RunReminderPayload
	require.NoError(t, jobs.Decode(reminders[0], &payload))
	assert.Equal(t, jobs.RunReminderPayload{InvoiceID: inv.ID, Sequence: 1}, payload)

	assert.Len(t, f.store.JobsOfType(jobs.JobTypeDocumentSent), 1)
	assert.Equal(t, []string{events.SubjectDocumentSent}, f.publisher.subjects())

	second := f.sent(domain.DocumentTypeInvoice)
	assert.Equal(t, "FAC-2026-0002", second.Number)
}

func TestSend_QuoteUsesOwnSequenceWithoutReminder(t *testing.T) {
	f := newFixture(t)
	f.sent(domain.DocumentTypeInvoice)

	quote := f.sent(domain.DocumentTypeQuote)

	assert.Equal(t, "DEV-2026-0001", quote.Number)
	assert.Len(t, f.store.JobsOfType(jobs.JobTypeRunReminder), 1, "only the invoice arms a reminder")
}

func TestSend_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	inv := f.sent(domain.DocumentTypeInvoice)

	again, err := f.docs.Send(f.ctx, inv.ID)
	require.NoError(t, err)

	assert.Equal(t, inv.Number, again.Number)
	assert.Len(t, f.store.JobsOfType(jobs.JobTypeRunReminder), 1)
	assert.Len(t, f.store.JobsOfType(jobs.JobTypeDocumentSent), 1)
	assert.Len(t, f.publisher.subjects(), 1)
}

func TestSend_ValidationDoesNotConsumeNumber(t *testing.T) {
	f := newFixture(t)

	empty, err := f.docs.CreateDraft(f.ctx, CreateDocumentParams{Type: domain.DocumentTypeInvoice, ContactID: &f.contactID})
	require.NoError(t, err)
	_, err = f.docs.Send(f.ctx, empty.ID)
	assert.ErrorIs(t, err, domain.ErrNoLineItems)

	orphan, err := f.docs.CreateDraft(f.ctx, CreateDocumentParams{Type: domain.DocumentTypeInvoice, Lines: sampleLines()})
	require.NoError(t, err)
	_, err = f.docs.Send(f.ctx, orphan.ID)
	assert.ErrorIs(t, err, domain.ErrNoRecipient)

	inv := f.sent(domain.DocumentTypeInvoice)
	assert.Equal(t, "FAC-2026-0001", inv.Number)
	assert.Len(t, f.store.Jobs(), 2, "failed sends enqueue nothing")
}

func TestSend_RetriesNumberCollision(t *testing.T) {
	f := newFixture(t)
	inv := f.draft(domain.DocumentTypeInvoice)

	f.store.FailNext("MarkDocumentSent", &pgconn.PgError{Code: "23505", ConstraintName: "idx_documents_number"})

	sent, err := f.docs.Send(f.ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-0001", sent.Number, "the rolled back attempt releases its ordinal")
	assert.Equal(t, 1, f.store.Rollbacks())
}

func TestSend_UnknownDocument(t *testing.T) {
	f := newFixture(t)
	_, err := f.docs.Send(f.ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

// ============================================================================
// Transitions and deletion
// ============================================================================

func TestCancel_KeepsNumber(t *testing.T) {
	f := newFixture(t)
	inv := f.sent(domain.DocumentTypeInvoice)

	cancelled, err := f.docs.Cancel(f.ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, "FAC-2026-0001", cancelled.Number)
	assert.NotNil(t, cancelled.CancelledAt)

	_, err = f.docs.Cancel(f.ctx, inv.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancel_PaidInvoiceIsTerminal(t *testing.T) {
	f := newFixture(t)
	inv := f.sent(domain.DocumentTypeInvoice)
	f.store.UpdateDocument(postgres.UUID(inv.ID), func(d *repository.Document) { d.Status = string(domain.StatusPaid) })

	_, err := f.docs.Cancel(f.ctx, inv.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestAcceptAndRejectQuote(t *testing.T) {
	f := newFixture(t)

	accepted, err := f.docs.AcceptQuote(f.ctx, f.sent(domain.DocumentTypeQuote).ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, accepted.Status)

	rejected, err := f.docs.RejectQuote(f.ctx, f.sent(domain.DocumentTypeQuote).ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)

	_, err = f.docs.AcceptQuote(f.ctx, rejected.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.docs.AcceptQuote(f.ctx, f.sent(domain.DocumentTypeInvoice).ID)
	assert.ErrorIs(t, err, domain.ErrQuoteNotFound)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)

	t.Run("unnumbered draft is removed", func(t *testing.T) {
		d := f.draft(domain.DocumentTypeInvoice)
		require.NoError(t, f.docs.Delete(f.ctx, d.ID))
		_, err := f.docs.Get(f.ctx, d.ID)
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})

	t.Run("numbered document must be cancelled first", func(t *testing.T) {
		inv := f.sent(domain.DocumentTypeInvoice)
		assert.ErrorIs(t, f.docs.Delete(f.ctx, inv.ID), domain.ErrNumberedDocument)

		_, err := f.docs.Cancel(f.ctx, inv.ID)
		require.NoError(t, err)
		require.NoError(t, f.docs.Delete(f.ctx, inv.ID))

		_, err = f.docs.Get(f.ctx, inv.ID)
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
		assert.True(t, f.document(inv.ID).DeletedAt.Valid, "numbered rows are kept for the audit trail")
	})
}

func TestList_FiltersByTypeAndStatus(t *testing.T) {
	f := newFixture(t)
	f.draft(domain.DocumentTypeInvoice)
	f.sent(domain.DocumentTypeInvoice)
	f.sent(domain.DocumentTypeQuote)

	all, err := f.docs.List(f.ctx, ListDocumentsParams{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	sentInvoices, err := f.docs.List(f.ctx, ListDocumentsParams{Type: domain.DocumentTypeInvoice, Status: domain.StatusSent})
	require.NoError(t, err)
	require.Len(t, sentInvoices, 1)
	assert.Equal(t, "FAC-2026-0001", sentInvoices[0].Number)
}

// ============================================================================
// Quote signature and conversion
// ============================================================================

func TestSignQuote(t *testing.T) {
	f := newFixture(t)
	quote := f.sent(domain.DocumentTypeQuote)

	// The public page carries no identity.
	signed, err := f.docs.SignQuote(t.Context(), quote.ID, SignQuoteParams{SignerName: " Marie Curie ", ClientIP: "203.0.113.7"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, signed.Status)
	assert.Equal(t, "Marie Curie", signed.SignerName)
	assert.Equal(t, "203.0.113.7", f.document(quote.ID).SignerIp.String)
	assert.Contains(t, f.publisher.subjects(), events.SubjectQuoteAccepted)

	_, err = f.docs.SignQuote(t.Context(), quote.ID, SignQuoteParams{SignerName: "Pierre Curie"})
	assert.ErrorIs(t, err, domain.ErrAlreadySigned)
}

func TestSignQuote_Rejections(t *testing.T) {
	f := newFixture(t)

	_, err := f.docs.SignQuote(t.Context(), f.sent(domain.DocumentTypeQuote).ID, SignQuoteParams{})
	assert.ErrorIs(t, err, ErrMissingSignerName)

	_, err = f.docs.SignQuote(t.Context(), f.draft(domain.DocumentTypeQuote).ID, SignQuoteParams{SignerName: "A"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.docs.SignQuote(t.Context(), f.sent(domain.DocumentTypeInvoice).ID, SignQuoteParams{SignerName: "A"})
	assert.ErrorIs(t, err, domain.ErrQuoteNotFound)

	expired := f.sent(domain.DocumentTypeQuote)
	f.advance(31 * 24 * time.Hour)
	_, err = f.docs.SignQuote(t.Context(), expired.ID, SignQuoteParams{SignerName: "A"})
	assert.ErrorIs(t, err, domain.ErrQuoteExpired)
	assert.Equal(t, domain.EGONE, domain.ErrorCode(err))
}

func TestConvertQuote(t *testing.T) {
	f := newFixture(t)
	quote := f.sent(domain.DocumentTypeQuote)

	_, err := f.docs.ConvertQuote(f.ctx, quote.ID, ConvertQuoteParams{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "only accepted quotes convert")

	_, err = f.docs.AcceptQuote(f.ctx, quote.ID)
	require.NoError(t, err)

	inv, err := f.docs.ConvertQuote(f.ctx, quote.ID, ConvertQuoteParams{})
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentTypeInvoice, inv.Type)
	assert.Equal(t, domain.StatusDraft, inv.Status)
	assert.Empty(t, inv.Number)
	assert.Equal(t, quote.TotalCents, inv.TotalCents)
	assert.Len(t, inv.Lines, len(quote.Lines))
	require.NotNil(t, inv.SourceQuoteID)
	assert.Equal(t, quote.ID, *inv.SourceQuoteID)

	linked, err := f.docs.Get(f.ctx, quote.ID)
	require.NoError(t, err)
	require.NotNil(t, linked.ConvertedInvoiceID)
	assert.Equal(t, inv.ID, *linked.ConvertedInvoiceID)

	_, err = f.docs.ConvertQuote(f.ctx, quote.ID, ConvertQuoteParams{})
	assert.ErrorIs(t, err, domain.ErrQuoteAlreadyConverted)

	sent, err := f.docs.Send(f.ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "FAC-2026-0001", sent.Number, "converted invoices use the invoice sequence")
}
