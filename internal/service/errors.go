package service

import (
	"github.com/dukerupert/comptoir/internal/domain"
)

// Request errors - use domain.EINVALID
var (
	ErrInvalidDocumentType  = domain.Errorf(domain.EINVALID, "", "Document type must be invoice or quote")
	ErrInvalidCurrency      = domain.Errorf(domain.EINVALID, "", "Currency must be a three letter ISO 4217 code")
	ErrInvalidPaymentMethod = domain.Errorf(domain.EINVALID, "", "Unsupported payment method")
	ErrInvalidAmount        = domain.Errorf(domain.EINVALID, "", "Payment amount must be positive")
	ErrMissingReference     = domain.Errorf(domain.EINVALID, "", "Payment reference is required")
	ErrMissingSignerName    = domain.Errorf(domain.EINVALID, "", "Signer name is required")
	ErrMalformedWebhook     = domain.Errorf(domain.EINVALID, "", "Webhook payload is not a valid event")
	ErrCurrencyMismatch     = domain.Errorf(domain.EINVALID, "", "Payment currency does not match the invoice")
	ErrAmountExceedsBalance = domain.Errorf(domain.EINVALID, "", "Payment amount exceeds the outstanding balance")
)

// Recipient errors - use domain.ENOTFOUND
var (
	ErrContactNotFound = domain.Errorf(domain.ENOTFOUND, "", "Contact not found")
	ErrCompanyNotFound = domain.Errorf(domain.ENOTFOUND, "", "Company not found")
)

// Payment errors
var (
	ErrNothingToCollect = domain.Errorf(domain.ECONFLICT, "", "Invoice has no outstanding balance")
)
