// Package notify fans sync outcomes out to crew channels: Slack,
// Telegram, email, or a generic webhook. Channels without credentials
// configured stay silent.
package notify

import "context"

// Event types dispatched by the sync loop.
const (
	EventSyncFailed    = "sync_failed"    // a sync run left events unuploaded
	EventSyncCompleted = "sync_completed" // a sync run uploaded at least one event
	EventHighPriority  = "high_priority"  // a P1/P2 event reached the backend
)

// Event is one notification from the agent.
type Event struct {
	Type        string // sync_failed | sync_completed | high_priority
	Title       string
	Body        string
	URL         string         // optional deep link, e.g. the backend event page
	Priority    string         // "P1".."P4" or "" for run-level events
	ProjectCode string         // project the events belong to
	Metadata    map[string]any // extra structured data
}

// Channel is implemented by each notification provider.
type Channel interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, evt Event) error
}
