// Package producer publishes alert lifecycle events to the alerts.lifecycle
// topic.
package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/events"
	kafkautil "github.com/MatthewSnow2/kind-connect-alerts/pkg/kafka"
)

// Producer wraps a Kafka writer and publishes lifecycle events.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new lifecycle event producer with the specified
// brokers and topic. The producer is configured for at-least-once delivery
// semantics with synchronous writes; messages are keyed by patient_id so
// one patient's events stay ordered within a partition.
func NewProducer(brokers string, topic string) (*Producer, error) {
	if err := kafkautil.ValidateProducerParams(brokers, topic); err != nil {
		return nil, err
	}

	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing lifecycle event producer",
		"brokers", brokerList,
		"topic", topic,
	)

	return &Producer{
		writer: kafkautil.NewWriter(brokerList, topic),
		topic:  topic,
	}, nil
}

// PublishLifecycle serializes a lifecycle event to JSON and publishes it.
func (p *Producer) PublishLifecycle(ctx context.Context, event *events.AlertLifecycle) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal lifecycle event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.PatientID),
		Value: payload,
		Headers: []kafka.Header{
			{
				Key:   "schema_version",
				Value: []byte(fmt.Sprintf("%d", event.SchemaVersion)),
			},
			{
				Key:   "event_type",
				Value: []byte(event.EventType),
			},
		},
		Time: event.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("Failed to write lifecycle event to Kafka",
			"event_type", event.EventType,
			"alert_id", event.AlertID,
			"topic", p.topic,
			"error", err,
		)
		return fmt.Errorf("failed to write lifecycle event to Kafka: %w", err)
	}

	slog.Debug("Published lifecycle event",
		"event_type", event.EventType,
		"alert_id", event.AlertID,
		"patient_id", event.PatientID,
	)

	return nil
}

// Close gracefully closes the Kafka writer and releases resources.
func (p *Producer) Close() error {
	slog.Info("Closing lifecycle event producer", "topic", p.topic)
	return p.writer.Close()
}

// publishTimeout guards against unbounded blocking when Kafka is down.
const publishTimeout = 10 * time.Second

// PublishLifecycleAsync publishes without blocking the caller's request
// path. Errors are logged; lifecycle events are informational and must not
// fail state transitions.
func (p *Producer) PublishLifecycleAsync(event *events.AlertLifecycle) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := p.PublishLifecycle(ctx, event); err != nil {
			slog.Error("Async lifecycle publish failed",
				"event_type", event.EventType,
				"alert_id", event.AlertID,
				"error", err,
			)
		}
	}()
}
