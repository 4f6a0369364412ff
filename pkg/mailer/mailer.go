package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/muhamadhazim/fishit-marketplace/pkg/config"
	"github.com/muhamadhazim/fishit-marketplace/pkg/logger"
)

// Message is a rendered transactional email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ErrPermanent marks a delivery failure that retrying will not fix.
var ErrPermanent = errors.New("permanent mail failure")

// New returns a SendGrid mailer when an API key is configured and a log mailer otherwise.
func New(cfg config.SendgridConfig, logg *logger.Logger) Mailer {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &LogMailer{logg: logg}
	}
	return &SendgridMailer{
		sender: sendgrid.NewSendClient(cfg.APIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.DefaultFrom),
	}
}

type sendgridSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendgridMailer posts mail through the SendGrid v3 API.
type SendgridMailer struct {
	sender sendgridSender
	from   *mail.Email
}

func (m *SendgridMailer) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("%w: recipient is required", ErrPermanent)
	}
	payload := mail.NewSingleEmail(m.from, msg.Subject, mail.NewEmail("", msg.To), msg.Text, msg.HTML)
	resp, err := m.sender.SendWithContext(ctx, payload)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == 429:
		return fmt.Errorf("sendgrid status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: sendgrid status %d: %s", ErrPermanent, resp.StatusCode, resp.Body)
	}
	return nil
}

// LogMailer writes messages to the logger instead of delivering them.
type LogMailer struct {
	logg *logger.Logger
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if m.logg == nil {
		return nil
	}
	ctx = m.logg.WithFields(ctx, map[string]any{
		"event":   "email.logged",
		"to":      msg.To,
		"subject": msg.Subject,
	})
	m.logg.Info(ctx, "email delivery disabled; message logged")
	return nil
}
