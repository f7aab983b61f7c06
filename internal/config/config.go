// Package config provides configuration parsing and validation for the
// alert core.
package config

import (
	"fmt"
	"time"
)

// Config holds all configuration parameters for the alert core.
type Config struct {
	HTTPPort       string
	AuthToken      string
	PostgresDSN    string
	RedisAddr      string
	KafkaBrokers   string
	TriggerTopic   string
	LifecycleTopic string
	ConsumerGroup  string
	Workers        int
	PolicyPoll     time.Duration

	Email   EmailConfig
	BotMsg  BotMsgConfig
	Gateway GatewayConfig
	Push    PushConfig
}

// EmailConfig configures the email channel and its providers.
type EmailConfig struct {
	From         string
	Primary      string
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	AWSRegion    string
	ResendAPIKey string
}

// BotMsgConfig configures the bot-message channel. APIBase carries the bot
// token as its last path segment, matching the bot platform's URL scheme.
type BotMsgConfig struct {
	APIBase string
}

// GatewayConfig configures the messaging-gateway channel.
type GatewayConfig struct {
	BaseURL    string
	InstanceID string
	APIToken   string
}

// PushConfig configures the push channel.
type PushConfig struct {
	URL    string
	APIKey string
}

// Validate checks that all required configuration fields are set and have
// valid values. Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("http-port cannot be empty")
	}
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("redis-addr cannot be empty")
	}
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.TriggerTopic == "" {
		return fmt.Errorf("trigger-topic cannot be empty")
	}
	if c.LifecycleTopic == "" {
		return fmt.Errorf("lifecycle-topic cannot be empty")
	}
	if c.ConsumerGroup == "" {
		return fmt.Errorf("consumer-group-id cannot be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.PolicyPoll < time.Second {
		return fmt.Errorf("policy-poll-interval must be at least 1s, got %s", c.PolicyPoll)
	}
	return nil
}
