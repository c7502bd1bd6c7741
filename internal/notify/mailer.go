package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"event-management-api/internal/config"
)

type Message struct {
	To      string
	Subject string
	Text    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NewMailer returns a Resend-backed mailer when an API key is configured and
// a logging mailer otherwise.
func NewMailer(cfg config.MailConfig, logger zerolog.Logger) Mailer {
	logger = logger.With().Str("component", "mail").Logger()
	if cfg.ResendAPIKey == "" {
		logger.Warn().Msg("RESEND_API_KEY not set, notification emails will only be logged")
		return &LogMailer{logger: logger}
	}
	return &ResendMailer{
		client: resend.NewClient(cfg.ResendAPIKey),
		from:   cfg.From,
		logger: logger,
	}
}

type ResendMailer struct {
	client *resend.Client
	from   string
	logger zerolog.Logger
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	sent, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
	})
	if err != nil {
		var rateLimitErr *resend.RateLimitError
		if errors.As(err, &rateLimitErr) {
			m.logger.Warn().
				Str("limit", rateLimitErr.Limit).
				Str("remaining", rateLimitErr.Remaining).
				Str("reset", rateLimitErr.Reset).
				Msg("resend rate limit exceeded")
			return fmt.Errorf("email rate limit exceeded (resets in %s seconds): %w", rateLimitErr.Reset, err)
		}
		return fmt.Errorf("resend API error: %w", err)
	}

	m.logger.Info().Str("email_id", sent.Id).Str("to", msg.To).Msg("email sent")
	return nil
}

type LogMailer struct {
	logger zerolog.Logger
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("mail disabled, skipping email")
	return nil
}
