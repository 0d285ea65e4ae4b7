// Package mail sends transactional email (magic links, one-time codes, welcome mail).
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"passwordless-auth/internal/config"
)

// ErrNotConfigured is returned when a provider lacks required settings.
var ErrNotConfigured = errors.New("mail: provider not configured")

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	// Text is the plain-text alternative; derived from HTML when empty.
	Text string
}

// Dispatcher delivers a Message.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// Sender is the "From" identity.
type Sender struct {
	Email string
	Name  string
}

// Address formats the sender as `"Name" <email>`.
func (s Sender) Address() string {
	if s.Name == "" {
		return s.Email
	}
	return fmt.Sprintf("%q <%s>", s.Name, s.Email)
}

// New returns the dispatcher selected by cfg.EmailProvider.
func New(cfg *config.Config) (Dispatcher, error) {
	from := Sender{Email: cfg.MailFromEmail, Name: cfg.MailFromName}
	switch strings.ToLower(cfg.EmailProvider) {
	case config.EmailProviderSendGrid:
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("%w: SENDGRID_API_KEY is empty", ErrNotConfigured)
		}
		return NewSendGridClient(cfg.SendGridAPIKey, cfg.SendGridBaseURL, from), nil
	case "", config.EmailProviderMailDev:
		return NewSMTPSender(cfg.MailDevHost, cfg.MailDevPort, from), nil
	default:
		return nil, fmt.Errorf("mail: unknown provider %q", cfg.EmailProvider)
	}
}

// plainText strips tags from an HTML body for the text/plain part.
func plainText(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func textOf(msg Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return plainText(msg.HTML)
}
