// Package channel defines the uniform contract every notification channel
// adapter satisfies, and a registry for routing by channel name.
// Redundancy across channels is the reliability mechanism: no single channel
// is trusted to be consistently available, so adapters are independently
// failable and never depend on one another.
package channel

import (
	"context"
	"errors"
	"time"
)

// Channel names. Each name identifies one independent delivery medium.
const (
	Email   = "email"
	BotMsg  = "botmsg"
	Gateway = "gateway"
	Push    = "push"
)

// SendTimeout bounds a single adapter call so a hung provider cannot stall
// the dispatcher indefinitely.
const SendTimeout = 10 * time.Second

// Contact holds a recipient's stored contact methods. Which fields are set
// determines channel eligibility; an adapter only sees contacts the
// permission resolver already deemed eligible for it.
type Contact struct {
	RecipientID string
	Name        string
	Email       string
	Phone       string
	BotChatID   string
}

// Message is the channel-independent notification content for one alert.
// Adapters shape it into their provider's payload format.
type Message struct {
	AlertID     string
	Kind        string
	Severity    string
	PatientName string
	Context     map[string]string
	Round       int
	CreatedAt   time.Time
}

// Sender is the interface all channel adapters implement.
type Sender interface {
	// Send delivers the message to the contact. A nil return means the
	// provider accepted the message. Failures are classified through the
	// shared taxonomy: wrap ErrNotOptedIn or ErrPermanent for permanent
	// failures; anything else is treated as transient and retried.
	Send(ctx context.Context, contact Contact, msg *Message) error

	// Name returns the channel name this adapter handles.
	Name() string
}

// Shared failure taxonomy. Adapters translate provider-specific failure
// codes into these rather than leaking raw provider errors upward.
var (
	// ErrNotOptedIn means the recipient is unreachable by design on this
	// channel (e.g. never initiated contact with the bot). No retry.
	ErrNotOptedIn = errors.New("recipient has not opted in to this channel")

	// ErrPermanent means the provider rejected the message for a reason
	// that will not change on retry (bad address, unverified sender).
	ErrPermanent = errors.New("permanent channel failure")
)

// IsPermanent reports whether the error is a permanent failure that must not
// be retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrNotOptedIn) || errors.Is(err, ErrPermanent)
}

// FailureReason returns the audit-log reason string for a send error.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotOptedIn):
		return "not_opted_in"
	case errors.Is(err, ErrPermanent):
		return "permanent"
	default:
		return "transient"
	}
}

// Registry manages channel adapters by name.
type Registry struct {
	senders map[string]Sender
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		senders: make(map[string]Sender),
	}
}

// Register registers a channel adapter.
func (r *Registry) Register(sender Sender) {
	r.senders[sender.Name()] = sender
}

// Get retrieves a channel adapter by name.
func (r *Registry) Get(name string) (Sender, bool) {
	sender, ok := r.senders[name]
	return sender, ok
}

// List returns all registered channel names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.senders))
	for name := range r.senders {
		names = append(names, name)
	}
	return names
}
