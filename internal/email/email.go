// Package email renders and delivers transactional messages for documents
// and payment reminders.
package email

import "context"

// Email is a message ready for delivery.
type Email struct {
	To          []string
	From        string
	ReplyTo     string
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
	Headers     map[string]string
}

// Attachment is a file attached to an Email.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Sender delivers an Email and returns the provider's message id when one is
// available.
type Sender interface {
	Send(ctx context.Context, email *Email) (string, error)
}
