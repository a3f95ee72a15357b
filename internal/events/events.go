// Package events publishes ledger domain events for downstream consumers.
//
// Publishing happens after commit and is best-effort: a lost event never
// affects the ledger, and consumers must tolerate duplicates.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Subjects
const (
	SubjectDocumentSent    = "ledger.document.sent"
	SubjectInvoicePaid     = "ledger.invoice.paid"
	SubjectPaymentRecorded = "ledger.payment.recorded" // partial payment, invoice still open
	SubjectInvoiceOverdue  = "ledger.invoice.overdue"
	SubjectQuoteAccepted   = "ledger.quote.accepted"
)

// Event is the wire envelope of every ledger event.
type Event struct {
	ID             uuid.UUID         `json:"id"`
	Subject        string            `json:"subject"`
	OrganizationID uuid.UUID         `json:"organization_id"`
	DocumentID     uuid.UUID         `json:"document_id"`
	OccurredAt     time.Time         `json:"occurred_at"`
	Attributes     map[string]string `json:"attributes,omitempty"`
}

// New builds an event with a fresh id.
func New(subject string, orgID, documentID uuid.UUID, attrs map[string]string) Event {
	return Event{
		ID:             uuid.New(),
		Subject:        subject,
		OrganizationID: orgID,
		DocumentID:     documentID,
		OccurredAt:     time.Now().UTC(),
		Attributes:     attrs,
	}
}

// Publisher emits events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publishes events as JSON on core NATS subjects.
type NATSPublisher struct {
	conn   conn
	logger *slog.Logger
}

// NewNATSPublisher connects to url. The connection reconnects forever in the
// background; publishes during an outage are buffered by the client.
func NewNATSPublisher(url string, logger *slog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("comptoir"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NATSPublisher{conn: nc, logger: logger}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(event.Subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// NopPublisher drops every event. Used when NATS_URL is unset.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// PublishBestEffort publishes event and logs a failure instead of returning it.
func PublishBestEffort(ctx context.Context, p Publisher, logger *slog.Logger, event Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish event",
			"subject", event.Subject,
			"document_id", event.DocumentID,
			"error", err,
		)
	}
}
