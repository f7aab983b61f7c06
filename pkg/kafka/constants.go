// Package kafka provides shared Kafka utilities for the alert core.
package kafka

import "time"

const (
	// MaxPollWait is the maximum time a reader blocks waiting for new data.
	MaxPollWait = 500 * time.Millisecond
	// CommitInterval is how often to commit offsets (after processing).
	CommitInterval = 1 * time.Second
	// WriteTimeout is the maximum time to wait for a Kafka write operation.
	WriteTimeout = 10 * time.Second
)
