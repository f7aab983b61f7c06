// Package escalation schedules and applies escalation steps for unattended
// alerts. The step policy lives as a JSON snapshot in Redis and is
// hot-reloaded on version changes; each active alert carries exactly one
// pending timer for its next step.
package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/alert"
)

const (
	// PolicyKey is the Redis key where the escalation policy snapshot is stored.
	PolicyKey = "escalation:policy"
	// VersionKey is the Redis key where the policy version is stored.
	VersionKey = "escalation:policy:version"
)

// Step is one escalation step. After Delay without acknowledgement the
// alert's severity is raised to at least SeverityFloor and a new
// notification round goes out to recipients of RecipientTier or closer;
// a zero RecipientTier widens the round to every recipient.
type Step struct {
	Delay         Duration       `json:"delay"`
	SeverityFloor alert.Severity `json:"severity_floor"`
	RecipientTier int            `json:"recipient_tier"`
}

// Policy is the ordered escalation step list. An alert at escalation level N
// waits on Steps[N]; past the last step the alert stays active with no
// further timers.
type Policy struct {
	SchemaVersion int    `json:"schema_version"`
	Steps         []Step `json:"steps"`
}

// StepAt returns the step an alert at the given escalation level waits on.
func (p *Policy) StepAt(level int) (Step, bool) {
	if level < 0 || level >= len(p.Steps) {
		return Step{}, false
	}
	return p.Steps[level], true
}

// DefaultPolicy is used until a snapshot is published to Redis.
func DefaultPolicy() *Policy {
	return &Policy{
		SchemaVersion: 1,
		Steps: []Step{
			{Delay: Duration(2 * time.Minute), SeverityFloor: alert.SeverityMedium, RecipientTier: 2},
			{Delay: Duration(5 * time.Minute), SeverityFloor: alert.SeverityHigh, RecipientTier: 0},
			{Delay: Duration(10 * time.Minute), SeverityFloor: alert.SeverityCritical, RecipientTier: 0},
		},
	}
}

// Duration marshals as seconds in the policy snapshot.
type Duration time.Duration

// Value returns the duration as time.Duration.
func (d Duration) Value() time.Duration { return time.Duration(d) }

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(time.Duration(d) / time.Second))
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var seconds int64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return err
	}
	*d = Duration(time.Duration(seconds) * time.Second)
	return nil
}

// Holder holds the current policy for lock-free reads.
type Holder struct {
	current atomic.Pointer[Policy]
}

// NewHolder creates a holder seeded with the given policy.
func NewHolder(p *Policy) *Holder {
	h := &Holder{}
	h.current.Store(p)
	return h
}

// Current returns the active policy.
func (h *Holder) Current() *Policy { return h.current.Load() }

// Update atomically swaps in a new policy.
func (h *Holder) Update(p *Policy) { h.current.Store(p) }

// Loader handles loading policy snapshots from Redis.
type Loader struct {
	client *redis.Client
}

// NewLoader creates a new policy loader with the given Redis client.
func NewLoader(client *redis.Client) *Loader {
	return &Loader{client: client}
}

// LoadPolicy loads the escalation policy snapshot from Redis and
// deserializes it. Returns an error if the snapshot doesn't exist or
// deserialization fails.
func (l *Loader) LoadPolicy(ctx context.Context) (*Policy, error) {
	data, err := l.client.Get(ctx, PolicyKey).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("escalation policy not found in Redis (key: %s)", PolicyKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get escalation policy from Redis: %w", err)
	}

	var policy Policy
	if err := json.Unmarshal([]byte(data), &policy); err != nil {
		return nil, fmt.Errorf("failed to unmarshal escalation policy: %w", err)
	}
	if len(policy.Steps) == 0 {
		return nil, fmt.Errorf("escalation policy has no steps")
	}

	slog.Info("Loaded escalation policy from Redis",
		"schema_version", policy.SchemaVersion,
		"steps", len(policy.Steps),
	)

	return &policy, nil
}

// GetVersion returns the current policy version from Redis.
// Returns 0 if the version doesn't exist (no published policy yet).
func (l *Loader) GetVersion(ctx context.Context) (int64, error) {
	version, err := l.client.Get(ctx, VersionKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get policy version from Redis: %w", err)
	}
	return version, nil
}
