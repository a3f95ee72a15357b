package email

import "github.com/dukerupert/comptoir/internal/domain"

var (
	ErrNoRecipientAddress = domain.Errorf(domain.EINVALID, "", "Recipient has no email address")
	ErrInvalidFromAddress = domain.Errorf(domain.EINVALID, "", "Invalid from email address")
	ErrInvalidToAddress   = domain.Errorf(domain.EINVALID, "", "Invalid to email address")
)

// ErrTemplateNotFound reports a message name with no embedded template.
func ErrTemplateNotFound(name string) error {
	return domain.Errorf(domain.EINTERNAL, "", "Email template %s not found", name)
}
