package notify

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/text/language"

	"github.com/dukerupert/comptoir/internal/email"
)

// MailService is the part of email.Service reminders use.
type MailService interface {
	Send(ctx context.Context, msg email.Message) (string, error)
}

// ChannelDispatcher routes reminders to email or SMS.
type ChannelDispatcher struct {
	mail   MailService
	sms    SMSSender
	lang   language.Tag
	logger *slog.Logger
}

// NewChannelDispatcher creates a dispatcher. A nil sms disables the SMS
// channel: those reminders report ErrNoAddress.
func NewChannelDispatcher(mail MailService, sms SMSSender, logger *slog.Logger) *ChannelDispatcher {
	return &ChannelDispatcher{mail: mail, sms: sms, lang: language.French, logger: logger}
}

// Dispatch implements Dispatcher.
func (d *ChannelDispatcher) Dispatch(ctx context.Context, r Reminder) error {
	switch r.Channel {
	case ChannelEmail:
		if r.Email == "" {
			return ErrNoAddress
		}
		_, err := d.mail.Send(ctx, email.ReminderEmail{
			To:               r.Email,
			RecipientName:    r.RecipientName,
			OrganizationName: r.OrganizationName,
			InvoiceNumber:    r.InvoiceNumber,
			AmountDueCents:   r.AmountDueCents,
			Currency:         r.Currency,
			DueDate:          r.DueDate,
			PayURL:           r.PayURL,
			Sequence:         r.Sequence,
		})
		return err

	case ChannelSMS:
		if r.Phone == "" || d.sms == nil {
			return ErrNoAddress
		}
		if err := d.sms.SendSMS(ctx, r.Phone, d.smsBody(r)); err != nil {
			return fmt.Errorf("failed to send reminder sms: %w", err)
		}
		d.logger.InfoContext(ctx, "reminder sms sent", "invoice_id", r.InvoiceID, "sequence", r.Sequence)
		return nil
	}
	return ErrUnknownChannel
}

func (d *ChannelDispatcher) smsBody(r Reminder) string {
	body := fmt.Sprintf("%s : la facture %s (%s) est en attente de paiement.",
		r.OrganizationName, r.InvoiceNumber, email.FormatAmount(d.lang, r.AmountDueCents, r.Currency))
	if r.PayURL != "" {
		body += " Régler : " + r.PayURL
	}
	return body
}
