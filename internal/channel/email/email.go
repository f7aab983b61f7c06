// Package email implements the email channel adapter on top of a provider
// registry (SMTP, SES, Resend) with fallback between providers.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/channel"
	"github.com/MatthewSnow2/kind-connect-alerts/internal/channel/email/provider"
	"github.com/MatthewSnow2/kind-connect-alerts/internal/channel/payload"
)

// Config holds email channel configuration.
type Config struct {
	From         string
	SMTP         provider.SMTPConfig
	AWSRegion    string
	ResendAPIKey string
	Primary      string // primary provider name; "smtp" if empty
}

// Sender implements the email channel adapter.
type Sender struct {
	from     string
	registry *provider.Registry
}

// NewSender creates the email adapter with all providers registered and the
// configured primary selected.
func NewSender(cfg Config) *Sender {
	registry := provider.NewRegistry()
	registry.Register(provider.NewSMTPProvider(cfg.SMTP))
	registry.Register(provider.NewSESProvider(cfg.AWSRegion))
	registry.Register(provider.NewResendProvider(cfg.ResendAPIKey))

	primary := cfg.Primary
	if primary == "" {
		primary = "smtp"
	}
	if err := registry.SetPrimary(primary); err != nil {
		slog.Warn("Unknown primary email provider, using smtp", "requested", primary)
		_ = registry.SetPrimary("smtp")
	}
	_ = registry.SetFallback("ses", "resend")

	return &Sender{
		from:     cfg.From,
		registry: registry,
	}
}

// NewSenderWithRegistry creates an email adapter with a custom provider
// registry. Useful for tests.
func NewSenderWithRegistry(from string, registry *provider.Registry) *Sender {
	return &Sender{from: from, registry: registry}
}

// Name returns the channel name this adapter handles.
func (s *Sender) Name() string {
	return channel.Email
}

// Send sends an alert notification email to the contact's address.
func (s *Sender) Send(ctx context.Context, contact channel.Contact, msg *channel.Message) error {
	if contact.Email == "" {
		return fmt.Errorf("%w: contact has no email address", channel.ErrPermanent)
	}
	if !strings.Contains(contact.Email, "@") {
		return fmt.Errorf("%w: invalid email address format: %q", channel.ErrPermanent, contact.Email)
	}

	emailPayload := payload.BuildEmailPayload(msg)

	req := &provider.EmailRequest{
		From:    s.from,
		To:      []string{contact.Email},
		Subject: emailPayload.Subject,
		Body:    emailPayload.Body,
	}

	if err := s.registry.Send(ctx, req); err != nil {
		// SES sandbox rejections and malformed addresses will not succeed
		// on a later round either.
		if strings.Contains(strings.ToLower(err.Error()), "not verified") {
			return fmt.Errorf("%w: %v", channel.ErrPermanent, err)
		}
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("Sent email notification",
		"to", contact.Email,
		"subject", emailPayload.Subject,
		"alert_id", msg.AlertID,
	)
	return nil
}
