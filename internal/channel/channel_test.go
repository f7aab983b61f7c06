package channel

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type stubSender struct {
	name string
}

func (s *stubSender) Name() string { return s.name }
func (s *stubSender) Send(ctx context.Context, contact Contact, msg *Message) error {
	return nil
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubSender{name: Email})
	registry.Register(&stubSender{name: Push})

	if _, ok := registry.Get(Email); !ok {
		t.Error("email sender should be registered")
	}
	if _, ok := registry.Get(Gateway); ok {
		t.Error("gateway sender should not be registered")
	}
	if got := len(registry.List()); got != 2 {
		t.Errorf("List() returned %d names, want 2", got)
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "not opted in", err: fmt.Errorf("chat not found: %w", ErrNotOptedIn), want: true},
		{name: "permanent", err: fmt.Errorf("bad address: %w", ErrPermanent), want: true},
		{name: "transient", err: errors.New("connection refused"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "opt in", err: fmt.Errorf("x: %w", ErrNotOptedIn), want: "not_opted_in"},
		{name: "permanent", err: fmt.Errorf("x: %w", ErrPermanent), want: "permanent"},
		{name: "other", err: errors.New("timeout"), want: "transient"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FailureReason(tt.err); got != tt.want {
				t.Errorf("FailureReason(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
