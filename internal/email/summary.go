// Package email sends the end-of-run summary notification.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

// Config controls summary delivery. When Enabled is false SendRunSummary
// logs the summary and returns.
type Config struct {
	Enabled bool
	APIKey  string
	From    string
	To      []string
}

// Service sends run summaries through the Resend API.
type Service struct {
	config       Config
	resendClient *resend.Client
	logger       zerolog.Logger
}

// NewService constructs a Service. The Resend client is only created when
// delivery is enabled.
func NewService(cfg Config, logger zerolog.Logger) (*Service, error) {
	s := &Service{
		config: cfg,
		logger: logger.With().Str("component", "email").Logger(),
	}
	if cfg.Enabled {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("email: API key required when email is enabled")
		}
		if cfg.From == "" || len(cfg.To) == 0 {
			return nil, fmt.Errorf("email: from and to addresses required when email is enabled")
		}
		s.resendClient = resend.NewClient(cfg.APIKey)
	}
	return s, nil
}

// SendRunSummary delivers the tracker summary for one pipeline run. Rate
// limit errors are not retried; a summary email is best-effort.
func (s *Service) SendRunSummary(ctx context.Context, subject, summary string) error {
	if !s.config.Enabled {
		s.logger.Info().Str("subject", subject).Msg("email disabled, summary not sent")
		return nil
	}

	html := "<pre>" + strings.ReplaceAll(summary, "<", "&lt;") + "</pre>"
	params := &resend.SendEmailRequest{
		From:    s.config.From,
		To:      s.config.To,
		Subject: subject,
		Html:    html,
	}

	sent, err := s.resendClient.Emails.SendWithContext(ctx, params)
	if err != nil {
		var rateLimitErr *resend.RateLimitError
		if errors.As(err, &rateLimitErr) {
			s.logger.Warn().
				Str("limit", rateLimitErr.Limit).
				Str("reset", rateLimitErr.Reset).
				Msg("resend rate limit exceeded")
			return fmt.Errorf("email rate limit exceeded (resets in %s seconds): %w", rateLimitErr.Reset, err)
		}
		return fmt.Errorf("resend API error: %w", err)
	}

	s.logger.Info().Str("email_id", sent.Id).Msg("run summary sent")
	return nil
}
