// Package botmsg implements the chat-bot channel adapter. It delivers alert
// messages through a Telegram-style bot HTTP API. The bot can only message
// recipients who previously initiated contact with it; that precondition is
// not checked by the permission resolver, so this adapter detects the
// provider's rejection and reports it as a distinct failure reason.
package botmsg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/channel"
	"github.com/MatthewSnow2/kind-connect-alerts/internal/channel/payload"
)

// Config holds bot channel configuration.
type Config struct {
	// APIBase is the bot API root including the bot token, e.g.
	// "https://api.telegram.org/bot<token>".
	APIBase string
}

// Sender implements the bot-message channel adapter.
type Sender struct {
	apiBase    string
	httpClient *http.Client
}

// NewSender creates a new bot-message sender.
func NewSender(cfg Config) *Sender {
	return &Sender{
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		httpClient: &http.Client{
			Timeout: channel.SendTimeout,
		},
	}
}

// Name returns the channel name this adapter handles.
func (s *Sender) Name() string {
	return channel.BotMsg
}

// sendMessageRequest is the bot API request body.
type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// apiResponse is the subset of the bot API response we inspect on failure.
type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Send delivers the alert message to the contact's bot chat.
func (s *Sender) Send(ctx context.Context, contact channel.Contact, msg *channel.Message) error {
	if s.apiBase == "" {
		return fmt.Errorf("bot API base URL is not configured")
	}
	if contact.BotChatID == "" {
		return fmt.Errorf("%w: contact has no bot chat id", channel.ErrPermanent)
	}

	body := sendMessageRequest{
		ChatID: contact.BotChatID,
		Text:   payload.BuildText(msg),
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal bot message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBase+"/sendMessage", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send bot message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		slog.Info("Sent bot message notification",
			"chat_id", contact.BotChatID,
			"alert_id", msg.AlertID,
		)
		return nil
	}

	// The bot API reports "recipient never started a chat" as 403 (blocked)
	// or 400 "chat not found". Both mean unreachable by design on this
	// channel, not a provider outage.
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiResp apiResponse
	_ = json.Unmarshal(respBody, &apiResp)

	desc := strings.ToLower(apiResp.Description)
	if resp.StatusCode == http.StatusForbidden ||
		strings.Contains(desc, "chat not found") ||
		strings.Contains(desc, "blocked by the user") {
		return fmt.Errorf("%w: %s", channel.ErrNotOptedIn, apiResp.Description)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		// Leave as transient, the retry layer handles it
		return fmt.Errorf("bot API rate limit: status %d", resp.StatusCode)
	}

	return fmt.Errorf("bot API returned status %d: %s", resp.StatusCode, apiResp.Description)
}
