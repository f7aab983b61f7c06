// Package gateway implements the self-hosted messaging-gateway channel
// adapter. The gateway exposes one messaging session per tenant, identified
// by a stable instance id, and addresses recipients by phone number.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/channel"
	"github.com/MatthewSnow2/kind-connect-alerts/internal/channel/payload"
)

// Config holds messaging-gateway configuration.
type Config struct {
	BaseURL    string // gateway root, e.g. "http://gateway:3000"
	InstanceID string // stable per-tenant session identifier
	APIToken   string // gateway API token
}

// Sender implements the messaging-gateway channel adapter.
type Sender struct {
	cfg    Config
	client *resty.Client
}

// phoneShaped matches E.164-ish phone numbers the gateway accepts.
var phoneShaped = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// NewSender creates a new messaging-gateway sender.
func NewSender(cfg Config) *Sender {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(channel.SendTimeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIToken != "" {
		client.SetAuthToken(cfg.APIToken)
	}
	return &Sender{
		cfg:    cfg,
		client: client,
	}
}

// Name returns the channel name this adapter handles.
func (s *Sender) Name() string {
	return channel.Gateway
}

// sendRequest is the gateway message request body.
type sendRequest struct {
	InstanceID string `json:"instance_id"`
	Phone      string `json:"phone"`
	Message    string `json:"message"`
}

// sendResponse is the gateway response body.
type sendResponse struct {
	Sent  bool   `json:"sent"`
	Error string `json:"error,omitempty"`
}

// Send delivers the alert message through the tenant's gateway instance.
func (s *Sender) Send(ctx context.Context, contact channel.Contact, msg *channel.Message) error {
	if s.cfg.BaseURL == "" || s.cfg.InstanceID == "" {
		return fmt.Errorf("messaging gateway is not configured")
	}
	if contact.Phone == "" {
		return fmt.Errorf("%w: contact has no phone number", channel.ErrPermanent)
	}

	phone := strings.ReplaceAll(strings.TrimSpace(contact.Phone), " ", "")
	if !phoneShaped.MatchString(phone) {
		return fmt.Errorf("%w: recipient address is not phone-shaped: %q", channel.ErrPermanent, contact.Phone)
	}

	var result sendResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(sendRequest{
			InstanceID: s.cfg.InstanceID,
			Phone:      phone,
			Message:    payload.BuildText(msg),
		}).
		SetResult(&result).
		SetError(&result).
		Post("/api/messages/send")
	if err != nil {
		return fmt.Errorf("failed to reach messaging gateway: %w", err)
	}

	if resp.IsError() {
		if resp.StatusCode() >= 400 && resp.StatusCode() < 500 && resp.StatusCode() != 429 {
			return fmt.Errorf("%w: gateway rejected message (status %d): %s",
				channel.ErrPermanent, resp.StatusCode(), result.Error)
		}
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode(), result.Error)
	}

	if !result.Sent {
		return fmt.Errorf("gateway did not accept message: %s", result.Error)
	}

	slog.Info("Sent gateway message notification",
		"instance_id", s.cfg.InstanceID,
		"alert_id", msg.AlertID,
	)
	return nil
}
