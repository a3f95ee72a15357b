package email

import (
	"time"

	"github.com/google/uuid"
)

// Message is one kind of transactional email.
type Message interface {
	Recipients() []string
	Subject() string
	TemplateName() string
}

// DocumentSentEmail announces a quote or invoice to its recipient.
type DocumentSentEmail struct {
	To               string
	RecipientName    string
	OrganizationName string
	DocumentID       uuid.UUID
	IsQuote          bool
	Number           string
	TotalCents       int64
	Currency         string
	DueDate          time.Time // invoices
	ValidUntil       time.Time // quotes
	ViewURL          string
}

func (e DocumentSentEmail) Recipients() []string { return []string{e.To} }

func (e DocumentSentEmail) Subject() string {
	if e.IsQuote {
		return "Devis " + e.Number + " - " + e.OrganizationName
	}
	return "Facture " + e.Number + " - " + e.OrganizationName
}

func (e DocumentSentEmail) TemplateName() string { return "document_sent.html" }

// PaymentReceivedEmail confirms a settled invoice to the payer.
type PaymentReceivedEmail struct {
	To               string
	RecipientName    string
	OrganizationName string
	InvoiceNumber    string
	AmountCents      int64
	Currency         string
	PaidAt           time.Time
	Reference        string
}

func (e PaymentReceivedEmail) Recipients() []string { return []string{e.To} }

func (e PaymentReceivedEmail) Subject() string {
	return "Paiement reçu - Facture " + e.InvoiceNumber
}

func (e PaymentReceivedEmail) TemplateName() string { return "payment_received.html" }

// ReminderEmail asks for payment of an outstanding invoice.
type ReminderEmail struct {
	To               string
	RecipientName    string
	OrganizationName string
	InvoiceNumber    string
	AmountDueCents   int64
	Currency         string
	DueDate          time.Time
	PayURL           string
	Sequence         int32
}

func (e ReminderEmail) Recipients() []string { return []string{e.To} }

func (e ReminderEmail) Subject() string {
	return "Rappel - Facture " + e.InvoiceNumber + " en attente de paiement"
}

func (e ReminderEmail) TemplateName() string { return "reminder.html" }
