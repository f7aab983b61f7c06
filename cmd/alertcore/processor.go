package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/alert"
	"github.com/MatthewSnow2/kind-connect-alerts/internal/consumer"
	"github.com/MatthewSnow2/kind-connect-alerts/internal/events"
	"github.com/MatthewSnow2/kind-connect-alerts/internal/ingress"
	"github.com/MatthewSnow2/kind-connect-alerts/internal/metrics"
)

// work represents a unit of work for the worker pool.
type work struct {
	trigger *events.AlertTrigger
	msg     *kafka.Message
}

// processorDeps holds all dependencies needed for trigger processing.
type processorDeps struct {
	consumer *consumer.Consumer
	patients ingress.PatientResolver
	service  ingress.AlertService
	metrics  metrics.Recorder
}

// processTriggers reads alert triggers from Kafka and processes them
// concurrently. Severity defaulting, recipient resolution and the initial
// notification round all happen inside the alert service.
func processTriggers(ctx context.Context, triggerConsumer *consumer.Consumer, patients ingress.PatientResolver, service ingress.AlertService, m metrics.Recorder, workerCount int) error {
	slog.Info("Starting trigger processing loop", "workers", workerCount)

	deps := &processorDeps{
		consumer: triggerConsumer,
		patients: patients,
		service:  service,
		metrics:  m,
	}

	jobs := make(chan work, workerCount*2)
	var wg sync.WaitGroup

	// Start worker goroutines
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go runWorker(ctx, deps, jobs, &wg)
	}

	// Read messages and dispatch to workers
	dispatchMessages(ctx, deps, jobs)

	close(jobs)
	wg.Wait()
	slog.Info("Trigger processing loop stopped")
	return nil
}

// runWorker processes jobs from the channel until it's closed.
func runWorker(ctx context.Context, deps *processorDeps, jobs <-chan work, wg *sync.WaitGroup) {
	defer wg.Done()
	for job := range jobs {
		processOne(ctx, deps, job.trigger, job.msg)
	}
}

// dispatchMessages reads triggers from Kafka and dispatches them to workers.
func dispatchMessages(ctx context.Context, deps *processorDeps, jobs chan<- work) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			trigger, msg, err := deps.consumer.ReadTrigger(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if msg != nil {
					// Poison pill: the payload can never deserialize, so
					// skip past it instead of spinning.
					slog.Error("Skipping malformed trigger message",
						"offset", msg.Offset,
						"error", err,
					)
					deps.metrics.RecordError()
					continue
				}
				slog.Error("Failed to read trigger event", "error", err)
				continue
			}
			deps.metrics.RecordReceived()
			jobs <- work{trigger: trigger, msg: msg}
		}
	}
}

// processOne handles a single trigger: validate, resolve the patient, create
// the alert. A trigger for an unknown patient or with an unknown kind is
// rejected and logged, never retried.
func processOne(ctx context.Context, deps *processorDeps, trigger *events.AlertTrigger, msg *kafka.Message) {
	startTime := time.Now()

	kind, err := alert.ParseKind(trigger.Kind)
	if err != nil {
		slog.Warn("Rejecting trigger with unknown kind",
			"event_id", trigger.EventID,
			"kind", trigger.Kind,
		)
		deps.metrics.RecordError()
		return
	}

	patientID, err := deps.patients.FindPatientByIdentifier(ctx, trigger.PatientIdentifier)
	if err != nil {
		if errors.Is(err, alert.ErrSubjectNotFound) {
			slog.Warn("Rejecting trigger for unknown patient",
				"event_id", trigger.EventID,
				"patient_identifier", trigger.PatientIdentifier,
			)
		} else {
			slog.Error("Failed to resolve trigger patient",
				"event_id", trigger.EventID,
				"error", err,
			)
		}
		deps.metrics.RecordError()
		return
	}

	a, err := deps.service.Create(ctx, alert.CreateParams{
		PatientID:    patientID,
		Kind:         kind,
		Context:      trigger.Context,
		SeverityHint: trigger.SeverityHint,
	})
	if err != nil {
		slog.Error("Failed to create alert from trigger",
			"event_id", trigger.EventID,
			"patient_id", patientID,
			"error", err,
		)
		deps.metrics.RecordError()
		return
	}

	deps.metrics.RecordProcessed(time.Since(startTime))
	slog.Info("Created alert from trigger",
		"event_id", trigger.EventID,
		"alert_id", a.AlertID,
		"patient_id", patientID,
		"kind", string(kind),
	)
}
