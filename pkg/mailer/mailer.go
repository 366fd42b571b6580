package mailer

import (
	"context"
	"errors"
	"fmt"
	"html"

	"smallbiznis-referral/pkg/config"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("mailer", fx.Provide(New))

var ErrNotConfigured = errors.New("mailer: sendgrid api key is empty")

type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
}

type Mailer interface {
	// Send returns the provider message id when one is reported.
	Send(ctx context.Context, msg Message) (string, error)
}

type sendGridMailer struct {
	apiKey   string
	fromMail string
	fromName string
}

func New(cfg *config.Config) Mailer {
	if cfg.SendGrid.APIKey == "" {
		zap.L().Warn("SendGrid api key not set, email sending disabled")
	}
	return &sendGridMailer{
		apiKey:   cfg.SendGrid.APIKey,
		fromMail: cfg.SendGrid.FromEmail,
		fromName: cfg.SendGrid.FromName,
	}
}

func (m *sendGridMailer) Send(ctx context.Context, msg Message) (string, error) {
	if m.apiKey == "" {
		return "", ErrNotConfigured
	}
	if msg.To == "" {
		return "", errors.New("mailer: recipient is empty")
	}

	client := sendgrid.NewSendClient(m.apiKey)
	resp, err := client.SendWithContext(ctx, m.build(msg))
	if err != nil {
		return "", fmt.Errorf("sendgrid send error: %w", err)
	}

	if resp.StatusCode >= 400 {
		zap.L().Warn("[sendgrid] send rejected", zap.Int("status", resp.StatusCode), zap.String("body", resp.Body))
		return "", fmt.Errorf("sendgrid send failed: status=%d", resp.StatusCode)
	}

	var id string
	if v := resp.Headers["X-Message-Id"]; len(v) > 0 {
		id = v[0]
	}
	return id, nil
}

func (m *sendGridMailer) build(msg Message) *mail.SGMailV3 {
	from := mail.NewEmail(m.fromName, m.fromMail)
	to := mail.NewEmail(msg.ToName, msg.To)
	htmlContent := fmt.Sprintf("<pre>%s</pre>", html.EscapeString(msg.Text))
	return mail.NewSingleEmail(from, msg.Subject, to, msg.Text, htmlContent)
}
