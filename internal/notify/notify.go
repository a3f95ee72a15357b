// Package notify delivers payment reminders to an invoice's recipient over
// email or SMS.
package notify

//go:generate mockgen -source=notify.go -destination=mock_dispatcher.go -package=notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/comptoir/internal/domain"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// ErrNoAddress means the recipient has no address for the channel. Callers
// skip the delivery rather than retry it.
var ErrNoAddress = domain.Errorf(domain.EINVALID, "", "Recipient has no address for this channel")

// ErrUnknownChannel is returned for a channel other than email or sms.
var ErrUnknownChannel = domain.Errorf(domain.EINVALID, "", "Unknown reminder channel")

// Reminder is one reminder step for one channel.
type Reminder struct {
	OrganizationID   uuid.UUID
	InvoiceID        uuid.UUID
	Channel          string
	Sequence         int32
	OrganizationName string
	RecipientName    string
	Email            string
	Phone            string
	InvoiceNumber    string
	AmountDueCents   int64
	Currency         string
	DueDate          time.Time
	PayURL           string
}

// Dispatcher hands a reminder to its channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, r Reminder) error
}

// SMSSender sends a text message to an E.164 phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}
