package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/comptoir/internal/domain"
	"github.com/dukerupert/comptoir/internal/events"
	"github.com/dukerupert/comptoir/internal/numbering"
	"github.com/dukerupert/comptoir/internal/postgres"
	"github.com/dukerupert/comptoir/internal/provider"
	"github.com/dukerupert/comptoir/internal/repository"
	"github.com/dukerupert/comptoir/internal/repository/repotest"
)

// ============================================================================
// Test doubles
// ============================================================================

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Subject)
	}
	return out
}

// staticCredentials serves one organization's credentials.
type staticCredentials struct {
	orgID uuid.UUID
	creds *provider.Credentials
}

func (s *staticCredentials) Credentials(_ context.Context, orgID uuid.UUID) (*provider.Credentials, error) {
	if orgID != s.orgID || s.creds == nil {
		return nil, domain.ErrPaymentNotConfig
	}
	return s.creds, nil
}

// ============================================================================
// Fixture
// ============================================================================

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type fixture struct {
	t         *testing.T
	store     *repotest.Store
	publisher *recordingPublisher
	logger    *slog.Logger
	now       time.Time

	orgID     uuid.UUID
	userID    uuid.UUID
	contactID uuid.UUID
	ctx       context.Context

	docs *DocumentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := repotest.New()
	f := &fixture{
		t:         t,
		store:     store,
		publisher: &recordingPublisher{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       testNow,
		userID:    uuid.New(),
	}
	store.SetClock(f.clock)

	ctx := context.Background()
	org, err := store.CreateOrganization(ctx, repository.CreateOrganizationParams{Name: "Atelier Dupont", Slug: "atelier-dupont"})
	require.NoError(t, err)
	f.orgID = postgres.FromUUID(org.ID)

	contact, err := store.CreateContact(ctx, repository.CreateContactParams{
		OrganizationID: org.ID,
		FullName:       "Marie Curie",
		Email:          postgres.Text("marie@example.fr"),
		Phone:          postgres.Text("+33612345678"),
	})
	require.NoError(t, err)
	f.contactID = postgres.FromUUID(contact.ID)

	f.ctx = domain.NewContextWithIdentity(ctx, domain.Identity{OrganizationID: f.orgID, UserID: f.userID})
	f.docs = NewDocumentService(store, numbering.NewAllocator(f.logger), f.publisher, f.logger, WithClock(f.clock))
	return f
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func sampleLines() []LineParams {
	return []LineParams{
		{Description: "Audit", Quantity: decimal.NewFromInt(2), UnitPriceCents: 50000, VATRate: decimal.NewFromInt(20)},
		{Description: "Rapport", Quantity: decimal.NewFromInt(1), UnitPriceCents: 20000, VATRate: decimal.NewFromInt(20)},
	}
}

// draft creates a draft of docType addressed to the fixture contact.
func (f *fixture) draft(docType domain.DocumentType) *DocumentDetail {
	f.t.Helper()
	contact := f.contactID
	d, err := f.docs.CreateDraft(f.ctx, CreateDocumentParams{
		Type:      docType,
		ContactID: &contact,
		Lines:     sampleLines(),
	})
	require.NoError(f.t, err)
	return d
}

// sent creates and sends a document.
func (f *fixture) sent(docType domain.DocumentType) *DocumentDetail {
	f.t.Helper()
	d, err := f.docs.Send(f.ctx, f.draft(docType).ID)
	require.NoError(f.t, err)
	return d
}

func (f *fixture) document(id uuid.UUID) repository.Document {
	f.t.Helper()
	for _, d := range f.store.Documents() {
		if d.ID == postgres.UUID(id) {
			return d
		}
	}
	f.t.Fatalf("document %s not in store", id)
	return repository.Document{}
}
