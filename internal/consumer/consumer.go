// Package consumer reads alert trigger events from the alerts.trigger topic.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/events"
	kafkautil "github.com/MatthewSnow2/kind-connect-alerts/pkg/kafka"
)

// Consumer wraps a Kafka reader and provides a simple interface for
// consuming trigger events.
type Consumer struct {
	reader *kafka.Reader
	topic  string
}

// NewConsumer creates a new trigger consumer with the specified brokers,
// topic, and group ID. The consumer is configured for at-least-once
// delivery semantics.
func NewConsumer(brokers string, topic string, groupID string) (*Consumer, error) {
	if err := kafkautil.ValidateConsumerParams(brokers, topic, groupID); err != nil {
		return nil, err
	}

	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing trigger consumer",
		"brokers", brokerList,
		"topic", topic,
		"group_id", groupID,
	)

	reader := kafka.NewReader(kafkautil.NewReaderConfig(brokerList, topic, groupID))

	return &Consumer{
		reader: reader,
		topic:  topic,
	}, nil
}

// ReadTrigger reads the next message from Kafka and deserializes it as an
// AlertTrigger. On a deserialization failure the raw message is still
// returned so the caller can skip past the poison pill.
func (c *Consumer) ReadTrigger(ctx context.Context) (*events.AlertTrigger, *kafka.Message, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read message from Kafka: %w", err)
	}

	var trigger events.AlertTrigger
	if err := json.Unmarshal(msg.Value, &trigger); err != nil {
		return nil, &msg, fmt.Errorf("failed to unmarshal trigger: %w", err)
	}

	return &trigger, &msg, nil
}

// Close gracefully closes the Kafka reader and releases resources.
func (c *Consumer) Close() error {
	slog.Info("Closing trigger consumer", "topic", c.topic)
	if err := c.reader.Close(); err != nil {
		slog.Error("Error closing trigger consumer", "error", err)
		return err
	}
	return nil
}
