package domain

import "slices"

// DocumentType distinguishes the two commercial documents. Each type has its
// own numbering sequence.
type DocumentType string

const (
	DocumentTypeInvoice DocumentType = "invoice"
	DocumentTypeQuote   DocumentType = "quote"
)

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	return t == DocumentTypeInvoice || t == DocumentTypeQuote
}

// DocumentStatus is the lifecycle state of a document.
type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "draft"
	StatusSent      DocumentStatus = "sent"
	StatusPaid      DocumentStatus = "paid"
	StatusOverdue   DocumentStatus = "overdue"
	StatusCancelled DocumentStatus = "cancelled"
	StatusAccepted  DocumentStatus = "accepted"
	StatusRejected  DocumentStatus = "rejected"
)

// Actor is who drives a transition. Some edges are reserved to one actor:
// only the reconciler writes paid, only the scheduler writes overdue.
type Actor int

const (
	ActorUser Actor = iota
	ActorReconciler
	ActorScheduler
	ActorSigner
)

type transition struct {
	from, to DocumentStatus
	actor    Actor
}

var invoiceTransitions = []transition{
	{StatusDraft, StatusSent, ActorUser},
	{StatusSent, StatusPaid, ActorReconciler},
	{StatusOverdue, StatusPaid, ActorReconciler},
	{StatusSent, StatusOverdue, ActorScheduler},
	{StatusDraft, StatusCancelled, ActorUser},
	{StatusSent, StatusCancelled, ActorUser},
	{StatusOverdue, StatusCancelled, ActorUser},
}

var quoteTransitions = []transition{
	{StatusDraft, StatusSent, ActorUser},
	{StatusSent, StatusAccepted, ActorUser},
	{StatusSent, StatusAccepted, ActorSigner},
	{StatusSent, StatusRejected, ActorUser},
	{StatusDraft, StatusCancelled, ActorUser},
	{StatusSent, StatusCancelled, ActorUser},
}

// CanTransition reports whether actor may move a document of type t from one
// status to another.
func CanTransition(t DocumentType, from, to DocumentStatus, actor Actor) bool {
	table := invoiceTransitions
	if t == DocumentTypeQuote {
		table = quoteTransitions
	}
	return slices.Contains(table, transition{from, to, actor})
}

// SourcesFor lists the statuses from which actor may reach to.
func SourcesFor(t DocumentType, to DocumentStatus, actor Actor) []string {
	table := invoiceTransitions
	if t == DocumentTypeQuote {
		table = quoteTransitions
	}
	var from []string
	for _, tr := range table {
		if tr.to == to && tr.actor == actor {
			from = append(from, string(tr.from))
		}
	}
	return from
}

// IsTerminal reports whether no user transition leaves status.
func IsTerminal(t DocumentType, status DocumentStatus) bool {
	return !CanTransition(t, status, StatusCancelled, ActorUser) &&
		!CanTransition(t, status, StatusSent, ActorUser)
}

// Ledger errors.
var (
	ErrDocumentNotFound      = Errorf(ENOTFOUND, "", "Document not found")
	ErrInvoiceNotFound       = Errorf(ENOTFOUND, "", "Invoice not found")
	ErrQuoteNotFound         = Errorf(ENOTFOUND, "", "Quote not found")
	ErrInvalidTransition     = Errorf(ECONFLICT, "", "Document cannot move to the requested status")
	ErrDocumentLocked        = Errorf(ECONFLICT, "", "Only draft documents can be edited")
	ErrNoLineItems           = Errorf(EINVALID, "", "Document requires at least one line item")
	ErrNoRecipient           = Errorf(EINVALID, "", "Document requires a contact or company recipient")
	ErrQuoteExpired          = Errorf(EGONE, "", "Quote validity has expired")
	ErrAlreadySigned         = Errorf(ECONFLICT, "", "Quote is already signed")
	ErrQuoteAlreadyConverted = Errorf(ECONFLICT, "", "Quote has already been converted to an invoice")
	ErrNumberedDocument      = Errorf(ECONFLICT, "", "Numbered documents can only be deleted once cancelled")
)
