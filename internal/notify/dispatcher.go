package notify

import (
	"context"
	"log/slog"

	"github.com/structiq/fieldscan-agent/internal/config"
	"github.com/structiq/fieldscan-agent/models"
)

// Dispatcher fans out events to all configured channels.
type Dispatcher struct {
	channels []Channel
	minPri   string          // least urgent priority to notify on (empty = all)
	events   map[string]bool // event types to send (empty map = use defaults)
}

// defaultEvents is the set of event types that trigger notifications
// when cfg.Events is empty.
var defaultEvents = map[string]bool{
	EventSyncFailed:   true,
	EventHighPriority: true,
}

// NewDispatcher creates a Dispatcher from the given config.
// Only channels with IsConfigured() == true are active.
func NewDispatcher(cfg config.NotifyConfig) *Dispatcher {
	d := &Dispatcher{
		minPri: cfg.MinPriority,
	}
	if len(cfg.Events) > 0 {
		d.events = make(map[string]bool, len(cfg.Events))
		for _, e := range cfg.Events {
			d.events[e] = true
		}
	} else {
		d.events = defaultEvents
	}

	channels := []Channel{
		NewSlack(cfg.Slack),
		NewTelegram(cfg.Telegram),
		NewEmail(cfg.Email),
		NewWebhook(cfg.Webhook),
	}
	for _, ch := range channels {
		if ch.IsConfigured() {
			d.channels = append(d.channels, ch)
		}
	}
	return d
}

// IsAnyConfigured returns true if at least one channel is ready to send.
func (d *Dispatcher) IsAnyConfigured() bool {
	return len(d.channels) > 0
}

// Notify sends evt to all configured channels. Errors are logged but
// never returned: a dead crew channel must not fail a sync run.
func (d *Dispatcher) Notify(ctx context.Context, evt Event) {
	if !d.shouldSend(evt) {
		return
	}
	for _, ch := range d.channels {
		if err := ch.Send(ctx, evt); err != nil {
			slog.Warn("notify: channel send failed", "channel", ch.Name(), "event", evt.Type, "error", err)
		}
	}
}

func (d *Dispatcher) shouldSend(evt Event) bool {
	if len(d.events) > 0 && !d.events[evt.Type] {
		return false
	}
	// The priority filter only applies to events that carry one.
	if d.minPri != "" && evt.Priority != "" {
		return priorityAtLeast(evt.Priority, d.minPri)
	}
	return true
}

// priorityAtLeast returns true if got is at least as urgent as min.
func priorityAtLeast(got, min string) bool {
	return models.MapPriority(got).Weight() >= models.MapPriority(min).Weight()
}
