package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/language"
)

//go:embed templates/*.html
var templateFS embed.FS

var messageTemplates = []string{
	DocumentSentEmail{}.TemplateName(),
	PaymentReceivedEmail{}.TemplateName(),
	ReminderEmail{}.TemplateName(),
}

// ServiceConfig sets the sender identity and the locale used for amounts.
type ServiceConfig struct {
	FromAddress string
	FromName    string
	ReplyTo     string
	Language    language.Tag
}

// Service renders messages from the embedded templates and hands them to a
// Sender.
type Service struct {
	sender    Sender
	config    ServiceConfig
	templates map[string]*template.Template
	logger    *slog.Logger
}

// NewService parses every message template once. A zero Language renders
// amounts in French.
func NewService(sender Sender, config ServiceConfig, logger *slog.Logger) (*Service, error) {
	if config.Language == language.Und {
		config.Language = language.French
	}
	lang := config.Language
	funcs := template.FuncMap{
		"money": func(cents int64, currency string) string { return FormatAmount(lang, cents, currency) },
		"date":  func(t time.Time) string { return FormatDate(t) },
	}

	layout, err := template.New("email").Funcs(funcs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email layout: %w", err)
	}
	templates := make(map[string]*template.Template, len(messageTemplates))
	for _, name := range messageTemplates {
		clone, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone email layout: %w", err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("failed to parse email template %s: %w", name, err)
		}
		templates[name] = clone
	}

	return &Service{
		sender:    sender,
		config:    config,
		templates: templates,
		logger:    logger,
	}, nil
}

// Send renders msg and delivers it, returning the message id.
func (s *Service) Send(ctx context.Context, msg Message) (string, error) {
	to := msg.Recipients()
	if len(to) == 0 || to[0] == "" {
		return "", ErrNoRecipientAddress
	}

	htmlBody, textBody, err := s.Render(msg)
	if err != nil {
		return "", err
	}

	from := s.config.FromAddress
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromAddress)
	}
	id, err := s.sender.Send(ctx, &Email{
		To:       to,
		From:     from,
		ReplyTo:  s.config.ReplyTo,
		Subject:  msg.Subject(),
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
	if err != nil {
		return "", fmt.Errorf("failed to send %s: %w", msg.TemplateName(), err)
	}
	s.logger.DebugContext(ctx, "transactional email handed to sender", "template", msg.TemplateName(), "message_id", id)
	return id, nil
}

// Render returns the HTML body of msg and its plain text version.
func (s *Service) Render(msg Message) (string, string, error) {
	tmpl, ok := s.templates[msg.TemplateName()]
	if !ok {
		return "", "", ErrTemplateNotFound(msg.TemplateName())
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email_layout", msg); err != nil {
		return "", "", fmt.Errorf("failed to execute template %s: %w", msg.TemplateName(), err)
	}
	htmlBody := buf.String()
	return htmlBody, generatePlainText(htmlBody), nil
}

// generatePlainText creates a simple plain text version from HTML
func generatePlainText(html string) string {
	text := html

	text = strings.ReplaceAll(text, "<br>", "\n")
	text = strings.ReplaceAll(text, "<br/>", "\n")
	text = strings.ReplaceAll(text, "<br />", "\n")
	text = strings.ReplaceAll(text, "</p>", "\n\n")
	text = strings.ReplaceAll(text, "</div>", "\n")
	text = strings.ReplaceAll(text, "</h1>", "\n\n")
	text = strings.ReplaceAll(text, "</h2>", "\n\n")
	text = strings.ReplaceAll(text, "</h3>", "\n\n")

	for strings.Contains(text, "<") && strings.Contains(text, ">") {
		start := strings.Index(text, "<")
		end := strings.Index(text, ">")
		if start >= 0 && end > start {
			text = text[:start] + text[end+1:]
		} else {
			break
		}
	}

	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", "\"")
	text = strings.ReplaceAll(text, "&#34;", "\"")
	text = strings.ReplaceAll(text, "&#39;", "'")

	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}

	return strings.Join(cleaned, "\n")
}
