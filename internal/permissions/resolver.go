// Package permissions resolves who must be told about a patient's alert and
// over which channels, from the care-relationship directory. The resolver is
// query-only: it never mutates state, and a directory failure fails the whole
// resolution rather than returning a partial recipient list.
package permissions

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/MatthewSnow2/kind-connect-alerts/internal/alert"
	"github.com/MatthewSnow2/kind-connect-alerts/internal/channel"
)

// CareEdge is one active care relationship as returned by the directory,
// joined with the caregiver's stored contact methods. Only edges with
// status=active and can_receive_alerts=true are ever returned.
type CareEdge struct {
	CaregiverID string
	Name        string
	Priority    int // 1 = primary caregiver
	CreatedAt   time.Time
	Email       string
	Phone       string
	BotChatID   string
}

// Directory is the read-only care-relationship directory this core consumes.
type Directory interface {
	// AlertEligibleCaregivers returns the active, alert-eligible care edges
	// for a patient. A reachability failure is reported as
	// alert.ErrDirectoryUnavailable.
	AlertEligibleCaregivers(ctx context.Context, patientID string) ([]CareEdge, error)

	// PatientName returns the display name for a patient id, or an empty
	// string if unknown.
	PatientName(ctx context.Context, patientID string) (string, error)
}

// Recipient is one resolved notification target with its eligible channels.
type Recipient struct {
	CaregiverID string
	Name        string
	Tier        int // escalation tier; 1 = primary
	Channels    []string
	Contact     channel.Contact
}

// Resolver resolves alert recipients from the directory.
type Resolver struct {
	directory Directory
}

// NewResolver creates a new permission resolver.
func NewResolver(directory Directory) *Resolver {
	return &Resolver{directory: directory}
}

// Resolve returns the ordered recipient set for a patient's alert. Recipients
// are ordered primary-tier first, then by relationship creation order; the
// ordering feeds escalation-tier selection, not fan-out order. A recipient
// with zero eligible channels is dropped with a warning, not an error.
func (r *Resolver) Resolve(ctx context.Context, patientID string, kind alert.Kind) ([]Recipient, error) {
	edges, err := r.directory.AlertEligibleCaregivers(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("resolving recipients for patient %s: %w", patientID, err)
	}

	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Priority != edges[j].Priority {
			return edges[i].Priority < edges[j].Priority
		}
		return edges[i].CreatedAt.Before(edges[j].CreatedAt)
	})

	recipients := make([]Recipient, 0, len(edges))
	for _, edge := range edges {
		channels := eligibleChannels(edge)
		if len(channels) == 0 {
			slog.Warn("Recipient has no eligible channels, dropping",
				"caregiver_id", edge.CaregiverID,
				"patient_id", patientID,
				"alert_kind", string(kind),
			)
			continue
		}

		recipients = append(recipients, Recipient{
			CaregiverID: edge.CaregiverID,
			Name:        edge.Name,
			Tier:        edge.Priority,
			Channels:    channels,
			Contact: channel.Contact{
				RecipientID: edge.CaregiverID,
				Name:        edge.Name,
				Email:       edge.Email,
				Phone:       edge.Phone,
				BotChatID:   edge.BotChatID,
			},
		})
	}

	return recipients, nil
}

// IsEligible reports whether the recipient holds an active, alert-eligible
// care relationship with the patient. Used to authorize acknowledge and
// resolve actions.
func (r *Resolver) IsEligible(ctx context.Context, patientID, recipientID string) (bool, error) {
	edges, err := r.directory.AlertEligibleCaregivers(ctx, patientID)
	if err != nil {
		return false, fmt.Errorf("checking eligibility of %s for patient %s: %w", recipientID, patientID, err)
	}
	for _, edge := range edges {
		if edge.CaregiverID == recipientID {
			return true, nil
		}
	}
	return false, nil
}

// PatientName returns the patient's display name for message payloads.
func (r *Resolver) PatientName(ctx context.Context, patientID string) string {
	name, err := r.directory.PatientName(ctx, patientID)
	if err != nil {
		slog.Debug("Failed to look up patient name", "patient_id", patientID, "error", err)
		return ""
	}
	return name
}

// eligibleChannels derives a caregiver's channels from stored contact
// methods: email address enables email; phone enables the messaging gateway
// and push; a bot chat id enables the bot channel. The bot opt-in
// precondition is detected by the adapter itself, not here.
func eligibleChannels(edge CareEdge) []string {
	var channels []string
	if edge.Email != "" {
		channels = append(channels, channel.Email)
	}
	if edge.Phone != "" {
		channels = append(channels, channel.Gateway, channel.Push)
	}
	if edge.BotChatID != "" {
		channels = append(channels, channel.BotMsg)
	}
	return channels
}
