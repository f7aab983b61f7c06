package metrics

import (
	"time"

	"github.com/MatthewSnow2/kind-connect-alerts/pkg/metrics"
)

// CollectorAdapter adapts pkg/metrics.Collector to the Recorder interface.
type CollectorAdapter struct {
	collector *metrics.Collector
}

// NewCollectorAdapter wraps a metrics.Collector to implement Recorder.
func NewCollectorAdapter(collector *metrics.Collector) *CollectorAdapter {
	return &CollectorAdapter{collector: collector}
}

func (a *CollectorAdapter) RecordReceived() {
	a.collector.RecordReceived()
}

func (a *CollectorAdapter) RecordProcessed(latency time.Duration) {
	a.collector.RecordProcessed(latency)
}

func (a *CollectorAdapter) RecordPublished() {
	a.collector.RecordPublished()
}

func (a *CollectorAdapter) RecordError() {
	a.collector.RecordError()
}

func (a *CollectorAdapter) RecordAlertCreated() {
	a.collector.IncrementCustom("alerts_created")
}

func (a *CollectorAdapter) RecordEscalation() {
	a.collector.IncrementCustom("alerts_escalated")
}

func (a *CollectorAdapter) RecordAttempt(outcome string) {
	a.collector.IncrementCustom("attempts_" + outcome)
}

// Ensure CollectorAdapter implements Recorder
var _ Recorder = (*CollectorAdapter)(nil)
