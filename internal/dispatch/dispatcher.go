// Package dispatch fans an alert out to its resolved recipients over every
// eligible channel. Deliveries are independent: each (recipient, channel)
// pair is attempted concurrently and a failure on one never blocks or
// cancels another. Every attempt, including skips, lands in the audit log.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/alert"
	"github.com/MatthewSnow2/kind-connect-alerts/internal/channel"
	"github.com/MatthewSnow2/kind-connect-alerts/internal/channel/retry"
	"github.com/MatthewSnow2/kind-connect-alerts/internal/metrics"
	"github.com/MatthewSnow2/kind-connect-alerts/internal/permissions"
)

// Resolver resolves the recipient set for an alert.
type Resolver interface {
	Resolve(ctx context.Context, patientID string, kind alert.Kind) ([]permissions.Recipient, error)
	PatientName(ctx context.Context, patientID string) string
}

// AttemptLog records notification attempts in the audit log.
type AttemptLog interface {
	AppendAttempt(ctx context.Context, att *alert.NotificationAttempt) error
}

// Result is the outcome of one delivery attempt within a round.
type Result struct {
	RecipientID string
	Channel     string
	Outcome     alert.AttemptOutcome
	Reason      string
}

// Round tracks one in-flight notification round for an alert.
type Round struct {
	AlertID string
	Number  int

	wg      sync.WaitGroup
	mu      sync.Mutex
	results []Result
}

// Summary is the consolidated report of a completed round.
type Summary struct {
	AlertID string
	Round   int
	Sent    int
	Failed  int
	Skipped int
	Results []Result
}

// Wait blocks until every delivery in the round has finished, then returns
// the consolidated report.
func (r *Round) Wait() Summary {
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	summary := Summary{AlertID: r.AlertID, Round: r.Number, Results: r.results}
	for _, res := range r.results {
		switch res.Outcome {
		case alert.OutcomeSent:
			summary.Sent++
		case alert.OutcomeFailed:
			summary.Failed++
		case alert.OutcomeSkipped:
			summary.Skipped++
		}
	}
	return summary
}

func (r *Round) record(res Result) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}

// Dispatcher resolves recipients and dispatches notification rounds.
type Dispatcher struct {
	resolver   Resolver
	log        AttemptLog
	registry   *channel.Registry
	metrics    metrics.Recorder
	retryCfg   retry.Config
	resolveCfg retry.Config
}

// NewDispatcher creates a dispatcher over the given resolver, audit log and
// channel registry.
func NewDispatcher(resolver Resolver, log AttemptLog, registry *channel.Registry, rec metrics.Recorder) *Dispatcher {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Dispatcher{
		resolver:   resolver,
		log:        log,
		registry:   registry,
		metrics:    rec,
		retryCfg:   retry.AdapterConfig(),
		resolveCfg: retry.ResolverConfig(),
	}
}

// Start resolves the alert's recipients and begins one notification round.
// It returns once every delivery goroutine has been launched; the returned
// Round can be waited on for the consolidated report. maxTier limits the
// round to recipients of that tier or closer; zero means every recipient.
func (d *Dispatcher) Start(ctx context.Context, a *alert.Alert, maxTier int) (*Round, error) {
	// A directory blip is retried with backoff rather than failing the
	// round; resolution never proceeds on a partial recipient list.
	var recipients []permissions.Recipient
	err := retry.WithRetry(ctx, d.resolveCfg, "resolve:"+a.AlertID, func() error {
		var rerr error
		recipients, rerr = d.resolver.Resolve(ctx, a.PatientID, a.Kind)
		return rerr
	})
	if err != nil {
		return nil, err
	}

	round := &Round{AlertID: a.AlertID, Number: a.EscalationLevel}

	if len(recipients) == 0 {
		slog.Warn("Alert has no reachable recipients",
			"alert_id", a.AlertID,
			"patient_id", a.PatientID,
		)
		return round, nil
	}

	msg := &channel.Message{
		AlertID:     a.AlertID,
		Kind:        string(a.Kind),
		Severity:    string(a.Severity),
		PatientName: d.resolver.PatientName(ctx, a.PatientID),
		Context:     a.Context,
		Round:       round.Number,
		CreatedAt:   a.CreatedAt,
	}

	// Dedupe (recipient, channel) pairs within the round; a caregiver
	// listed twice in the directory is still notified once per channel.
	seen := make(map[string]bool)
	// Deliveries outlive the caller's request context.
	sendCtx := context.WithoutCancel(ctx)

	for _, rec := range recipients {
		if maxTier > 0 && rec.Tier > maxTier {
			continue
		}
		for _, ch := range rec.Channels {
			key := rec.CaregiverID + "/" + ch
			if seen[key] {
				continue
			}
			seen[key] = true

			sender, ok := d.registry.Get(ch)
			if !ok {
				d.finish(sendCtx, round, rec, ch, alert.OutcomeSkipped, "channel not configured")
				continue
			}

			round.wg.Add(1)
			go func(rec permissions.Recipient, sender channel.Sender) {
				defer round.wg.Done()
				d.deliver(sendCtx, round, rec, sender, msg)
			}(rec, sender)
		}
	}

	return round, nil
}

// Dispatch runs a full notification round, logging the consolidated report
// once every delivery has finished. It returns as soon as the round is
// initiated.
func (d *Dispatcher) Dispatch(ctx context.Context, a *alert.Alert, maxTier int) error {
	round, err := d.Start(ctx, a, maxTier)
	if err != nil {
		return err
	}

	go func() {
		summary := round.Wait()
		slog.Info("Notification round complete",
			"alert_id", summary.AlertID,
			"round", summary.Round,
			"sent", summary.Sent,
			"failed", summary.Failed,
			"skipped", summary.Skipped,
		)
	}()

	return nil
}

// deliver runs one delivery attempt with per-channel retry and records the
// outcome.
func (d *Dispatcher) deliver(ctx context.Context, round *Round, rec permissions.Recipient, sender channel.Sender, msg *channel.Message) {
	err := retry.WithRetry(ctx, d.retryCfg, "send:"+sender.Name(), func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, channel.SendTimeout)
		defer cancel()
		return sender.Send(attemptCtx, rec.Contact, msg)
	})

	switch {
	case err == nil:
		d.finish(ctx, round, rec, sender.Name(), alert.OutcomeSent, "")
	case errors.Is(err, channel.ErrNotOptedIn):
		d.finish(ctx, round, rec, sender.Name(), alert.OutcomeSkipped, err.Error())
	default:
		slog.Error("Delivery failed",
			"alert_id", round.AlertID,
			"recipient_id", rec.CaregiverID,
			"channel", sender.Name(),
			"reason", channel.FailureReason(err),
			"error", err,
		)
		d.finish(ctx, round, rec, sender.Name(), alert.OutcomeFailed, err.Error())
	}
}

// finish records one attempt outcome in the round, the audit log and metrics.
func (d *Dispatcher) finish(ctx context.Context, round *Round, rec permissions.Recipient, ch string, outcome alert.AttemptOutcome, reason string) {
	round.record(Result{
		RecipientID: rec.CaregiverID,
		Channel:     ch,
		Outcome:     outcome,
		Reason:      reason,
	})
	d.metrics.RecordAttempt(string(outcome))

	att := &alert.NotificationAttempt{
		AttemptID:   uuid.New().String(),
		AlertID:     round.AlertID,
		RecipientID: rec.CaregiverID,
		Channel:     ch,
		Round:       round.Number,
		Outcome:     outcome,
		Reason:      reason,
		AttemptedAt: time.Now().UTC(),
	}
	if err := d.log.AppendAttempt(ctx, att); err != nil {
		slog.Error("Failed to record notification attempt",
			"alert_id", round.AlertID,
			"recipient_id", rec.CaregiverID,
			"channel", ch,
			"error", err,
		)
	}
}
