// Package metrics defines the narrow recording interface the alert core
// components use, decoupled from the Redis-backed collector.
package metrics

import "time"

// Recorder records service metrics. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// RecordReceived counts an inbound trigger (HTTP or Kafka).
	RecordReceived()
	// RecordProcessed counts a fully handled trigger with its latency.
	RecordProcessed(latency time.Duration)
	// RecordPublished counts a lifecycle event published to Kafka.
	RecordPublished()
	// RecordError counts an internal processing error.
	RecordError()

	// RecordAlertCreated counts a newly created alert.
	RecordAlertCreated()
	// RecordEscalation counts one escalation step applied to an alert.
	RecordEscalation()
	// RecordAttempt counts one notification attempt by outcome
	// ("sent", "failed", "skipped").
	RecordAttempt(outcome string)
}

// Nop is a Recorder that discards everything. Used in tests and when no
// Redis connection is configured.
type Nop struct{}

func (Nop) RecordReceived()               {}
func (Nop) RecordProcessed(time.Duration) {}
func (Nop) RecordPublished()              {}
func (Nop) RecordError()                  {}
func (Nop) RecordAlertCreated()           {}
func (Nop) RecordEscalation()             {}
func (Nop) RecordAttempt(string)          {}

var _ Recorder = Nop{}
