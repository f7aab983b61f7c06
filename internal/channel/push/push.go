// Package push implements the mobile push channel adapter via the push
// provider's HTTP API.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/channel"
	"github.com/MatthewSnow2/kind-connect-alerts/internal/channel/payload"
)

// Config holds push channel configuration.
type Config struct {
	ProviderURL string // push provider endpoint
	APIKey      string
}

// Sender implements the push channel adapter.
type Sender struct {
	cfg        Config
	httpClient *http.Client
}

// NewSender creates a new push sender.
func NewSender(cfg Config) *Sender {
	return &Sender{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: channel.SendTimeout,
		},
	}
}

// Name returns the channel name this adapter handles.
func (s *Sender) Name() string {
	return channel.Push
}

// pushRequest is the provider request body. Devices are registered against
// the recipient's phone number by the mobile app.
type pushRequest struct {
	To           string              `json:"to"`
	Notification payload.PushPayload `json:"notification"`
}

// Send delivers a push notification to the contact's registered devices.
func (s *Sender) Send(ctx context.Context, contact channel.Contact, msg *channel.Message) error {
	if s.cfg.ProviderURL == "" {
		return fmt.Errorf("push provider is not configured")
	}
	if contact.Phone == "" {
		return fmt.Errorf("%w: contact has no device registration", channel.ErrPermanent)
	}

	jsonData, err := json.Marshal(pushRequest{
		To:           contact.Phone,
		Notification: payload.BuildPushPayload(msg),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.ProviderURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "key="+s.cfg.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		slog.Info("Sent push notification",
			"alert_id", msg.AlertID,
			"recipient_id", contact.RecipientID,
		)
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// No registered devices for this recipient
		return fmt.Errorf("%w: no registered devices", channel.ErrPermanent)
	default:
		return fmt.Errorf("push provider returned status %d", resp.StatusCode)
	}
}
