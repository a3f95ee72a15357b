package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestGeneratePlainText(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		contains []string
		excludes []string
	}{
		{
			name:     "simple paragraph",
			html:     "<p>Bonjour Camille,</p>",
			contains: []string{"Bonjour Camille,"},
			excludes: []string{"<p>", "</p>"},
		},
		{
			name:     "line breaks",
			html:     "Line 1<br>Line 2<br/>Line 3<br />Line 4",
			contains: []string{"Line 1", "Line 2", "Line 3", "Line 4"},
			excludes: []string{"<br>", "<br/>", "<br />"},
		},
		{
			name:     "headings",
			html:     "<h1>Title</h1><h2>Subtitle</h2><h3>Section</h3>",
			contains: []string{"Title", "Subtitle", "Section"},
			excludes: []string{"<h1>", "</h1>", "<h2>", "</h2>", "<h3>", "</h3>"},
		},
		{
			name:     "nested tags",
			html:     "<div><p><strong>Bold text</strong> and <em>italic</em></p></div>",
			contains: []string{"Bold text", "and", "italic"},
			excludes: []string{"<div>", "<p>", "<strong>", "<em>"},
		},
		{
			name:     "HTML entities",
			html:     "Total : 10 € &amp; frais &nbsp; inclus &lt;5 €&gt; &quot;offert&quot; L&#39;Atelier",
			contains: []string{"Total : 10 € & frais", "inclus <5 €>", "\"offert\"", "L'Atelier"},
			excludes: []string{"&amp;", "&nbsp;", "&lt;", "&gt;", "&quot;", "&#39;"},
		},
		{
			name:     "links stripped",
			html:     `<a href="https://example.com">Click here</a>`,
			contains: []string{"Click here"},
			excludes: []string{"<a", "href", "</a>"},
		},
		{
			name:     "empty content",
			html:     "",
			contains: []string{},
			excludes: []string{},
		},
		{
			name: "email template structure",
			html: `
				<div class="email-content">
					<h2>Rappel de paiement</h2>
					<p>La facture FAC-2026-0007 reste en attente.</p>
					<p><a href="https://example.com/pay">Régler en ligne</a> dès maintenant.</p>
				</div>
			`,
			contains: []string{"Rappel de paiement", "FAC-2026-0007 reste en attente", "Régler en ligne", "dès maintenant"},
			excludes: []string{"<div", "<h2>", "<p>", "<a href"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := generatePlainText(tt.html)

			for _, want := range tt.contains {
				if !strings.Contains(result, want) {
					t.Errorf("generatePlainText() result should contain %q, got: %q", want, result)
				}
			}

			for _, exclude := range tt.excludes {
				if strings.Contains(result, exclude) {
					t.Errorf("generatePlainText() result should not contain %q, got: %q", exclude, result)
				}
			}
		})
	}
}

func TestGeneratePlainText_WhitespaceHandling(t *testing.T) {
	html := `
		<p>   Line with spaces   </p>
		<p></p>
		<p>Autre ligne</p>
	`

	result := generatePlainText(html)

	// Should not have empty lines (they get filtered)
	lines := strings.Split(result, "\n")
	for _, line := range lines {
		if strings.TrimSpace(line) == "" && line != "" {
			t.Error("generatePlainText() should not have blank lines with only whitespace")
		}
	}

	// Should contain the actual content
	if !strings.Contains(result, "Line with spaces") {
		t.Error("generatePlainText() should contain trimmed content")
	}
	if !strings.Contains(result, "Autre ligne") {
		t.Error("generatePlainText() should contain 'Autre ligne'")
	}
}

type recordingSender struct {
	sent []*Email
	err  error
}

func (r *recordingSender) Send(ctx context.Context, email *Email) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.sent = append(r.sent, email)
	return "msg-1", nil
}

func newTestService(t *testing.T, sender Sender) *Service {
	t.Helper()
	svc, err := NewService(sender, ServiceConfig{FromAddress: "factures@atelier.test", FromName: "L'Atelier"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return svc
}

func TestService_SendReminder(t *testing.T) {
	sender := &recordingSender{}
	svc := newTestService(t, sender)

	id, err := svc.Send(context.Background(), ReminderEmail{
		To:               "client@example.com",
		RecipientName:    "Camille",
		OrganizationName: "L'Atelier",
		InvoiceNumber:    "FAC-2026-0042",
		AmountDueCents:   123456,
		Currency:         "EUR",
		DueDate:          time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
		PayURL:           "https://pay.example.com/i/42",
		Sequence:         1,
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	require.Len(t, sender.sent, 1)

	sent := sender.sent[0]
	assert.Equal(t, []string{"client@example.com"}, sent.To)
	assert.Equal(t, "L'Atelier <factures@atelier.test>", sent.From)
	assert.Contains(t, sent.Subject, "FAC-2026-0042")
	assert.Contains(t, sent.HTMLBody, `href="https://pay.example.com/i/42"`)
	assert.Contains(t, sent.TextBody, "234,56 €")
	assert.Contains(t, sent.TextBody, "30/04/2026")
	assert.NotContains(t, sent.TextBody, "<p>")
}

func TestService_DocumentSentQuoteWording(t *testing.T) {
	svc := newTestService(t, &recordingSender{})

	html, text, err := svc.Render(DocumentSentEmail{
		To:               "client@example.com",
		OrganizationName: "L'Atelier",
		IsQuote:          true,
		Number:           "DEV-2026-0003",
		TotalCents:       5000,
		Currency:         "EUR",
		ValidUntil:       time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Contains(t, html, "Devis DEV-2026-0003")
	assert.Contains(t, text, "valable jusqu'au 01/06/2026")
	assert.NotContains(t, text, "échéance")
}

func TestService_PaymentReceivedEscapesData(t *testing.T) {
	svc := newTestService(t, &recordingSender{})

	html, _, err := svc.Render(PaymentReceivedEmail{
		To:               "client@example.com",
		RecipientName:    "<script>alert(1)</script>",
		OrganizationName: "L'Atelier",
		InvoiceNumber:    "FAC-2026-0001",
		AmountCents:      1000,
		Currency:         "EUR",
		PaidAt:           time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC),
		Reference:        "cs_test_123",
	})
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "cs_test_123")
}

func TestService_SendRequiresRecipient(t *testing.T) {
	sender := &recordingSender{}
	svc := newTestService(t, sender)

	_, err := svc.Send(context.Background(), ReminderEmail{InvoiceNumber: "FAC-2026-0001"})
	assert.ErrorIs(t, err, ErrNoRecipientAddress)
	assert.Empty(t, sender.sent)
}

func TestService_SendWrapsSenderError(t *testing.T) {
	boom := errors.New("relay refused")
	svc := newTestService(t, &recordingSender{err: boom})

	_, err := svc.Send(context.Background(), PaymentReceivedEmail{To: "client@example.com", InvoiceNumber: "FAC-2026-0001"})
	assert.ErrorIs(t, err, boom)
}

func TestFormatAmount(t *testing.T) {
	assert.Contains(t, FormatAmount(language.French, 123456, "eur"), "234,56")
	assert.True(t, strings.HasSuffix(FormatAmount(language.French, 123456, "EUR"), " €"))
	assert.Contains(t, FormatAmount(language.English, 99, "USD"), "0.99")
	assert.True(t, strings.HasSuffix(FormatAmount(language.French, 500, "CHF"), " CHF"))
	assert.Empty(t, FormatDate(time.Time{}))
}
