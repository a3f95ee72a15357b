package domain

// Payment methods recorded on a Payment row.
const (
	PaymentMethodCard         = "card"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodCheque       = "cheque"
	PaymentMethodCash         = "cash"
)

// ValidPaymentMethod reports whether m is a recognized payment method.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCard, PaymentMethodBankTransfer, PaymentMethodCheque, PaymentMethodCash:
		return true
	}
	return false
}

// Reasons a reconcile call applied nothing. None of them are errors.
const (
	ReasonAlreadyPaid        = "already_paid"
	ReasonDuplicateReference = "duplicate_reference"
	ReasonNotPaid            = "not_paid"
)

// ReconcileResult reports whether a payment confirmation changed the ledger.
// Settled is set when the payment covered the balance and the invoice is now
// paid; an applied partial payment leaves it false.
type ReconcileResult struct {
	Applied   bool   `json:"applied"`
	Settled   bool   `json:"settled"`
	Reason    string `json:"reason,omitempty"`
	InvoiceID string `json:"invoice_id"`
}

// Payment errors.
var (
	ErrSignatureInvalid  = Errorf(EUNAUTHORIZED, "", "Webhook signature verification failed")
	ErrInvoiceNotPayable = Errorf(ECONFLICT, "", "Invoice is not awaiting payment")
	ErrPaymentNotConfig  = Errorf(EPAYMENT, "", "Online payment is not configured for this organization")
	ErrSessionMismatch   = Errorf(EINVALID, "", "Checkout session does not belong to this invoice")
)

// Notification types.
const (
	NotificationPaymentReceived = "payment_received"
	NotificationInvoiceOverdue  = "invoice_overdue"
)

// ErrNotificationNotFound is returned when a notification does not exist for
// the current user.
var ErrNotificationNotFound = Errorf(ENOTFOUND, "", "Notification not found")
