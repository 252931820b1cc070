package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/structiq/fieldscan-agent/internal/config"
)

func TestNewDispatcherRegistersOnlyConfiguredChannels(t *testing.T) {
	d := NewDispatcher(config.NotifyConfig{})
	if d.IsAnyConfigured() {
		t.Fatal("dispatcher with empty config should have no channels")
	}

	d = NewDispatcher(config.NotifyConfig{
		Slack:   config.SlackNotifyConfig{WebhookURL: "https://hooks.slack.com/services/T/B/x"},
		Webhook: config.WebhookNotifyConfig{URL: "https://ops.example.com/hook"},
	})
	if !d.IsAnyConfigured() {
		t.Fatal("expected configured channels")
	}
	if got := len(d.channels); got != 2 {
		t.Fatalf("channels = %d, want 2", got)
	}
}

func TestShouldSendFiltersEventTypes(t *testing.T) {
	// Default event set: sync_failed and high_priority only.
	d := NewDispatcher(config.NotifyConfig{})
	if !d.shouldSend(Event{Type: EventSyncFailed}) {
		t.Error("sync_failed should pass the default filter")
	}
	if d.shouldSend(Event{Type: EventSyncCompleted}) {
		t.Error("sync_completed should be filtered out by default")
	}

	d = NewDispatcher(config.NotifyConfig{Events: []string{EventSyncCompleted}})
	if !d.shouldSend(Event{Type: EventSyncCompleted}) {
		t.Error("explicitly enabled event type should pass")
	}
	if d.shouldSend(Event{Type: EventSyncFailed}) {
		t.Error("event type outside the configured set should be filtered")
	}
}

func TestShouldSendAppliesPriorityThreshold(t *testing.T) {
	d := NewDispatcher(config.NotifyConfig{MinPriority: "P2"})

	if !d.shouldSend(Event{Type: EventHighPriority, Priority: "P1"}) {
		t.Error("P1 should clear a P2 threshold")
	}
	if !d.shouldSend(Event{Type: EventHighPriority, Priority: "P2"}) {
		t.Error("P2 should clear a P2 threshold")
	}
	if d.shouldSend(Event{Type: EventHighPriority, Priority: "P3"}) {
		t.Error("P3 should not clear a P2 threshold")
	}
	// Run-level events carry no priority and bypass the threshold.
	if !d.shouldSend(Event{Type: EventSyncFailed}) {
		t.Error("priority threshold should not drop events without a priority")
	}
}

func TestWebhookChannelSignsPayload(t *testing.T) {
	const secret = "s3cret"
	var gotBody []byte
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Fieldscan-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewWebhook(config.WebhookNotifyConfig{URL: srv.URL, Secret: secret})
	if !ch.IsConfigured() {
		t.Fatal("webhook with URL should report configured")
	}
	evt := Event{
		Type:        EventSyncFailed,
		Title:       "2 event(s) failed to upload",
		Body:        "2 of 5 events failed and stay queued for the next run.",
		Priority:    "P2",
		ProjectCode: "BR-2024-011",
	}
	if err := ch.Send(context.Background(), evt); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload["type"] != EventSyncFailed {
		t.Errorf("payload type = %v, want %s", payload["type"], EventSyncFailed)
	}
	if payload["project"] != "BR-2024-011" {
		t.Errorf("payload project = %v, want BR-2024-011", payload["project"])
	}
	if payload["priority"] != "P2" {
		t.Errorf("payload priority = %v, want P2", payload["priority"])
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}
}

func TestWebhookChannelRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ch := NewWebhook(config.WebhookNotifyConfig{URL: srv.URL})
	if err := ch.Send(context.Background(), Event{Type: EventSyncFailed, Title: "x"}); err == nil {
		t.Fatal("expected error on 502 response")
	}
}

func TestNotifyFansOutToAllChannels(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(config.NotifyConfig{
		Slack:   config.SlackNotifyConfig{WebhookURL: srv.URL},
		Webhook: config.WebhookNotifyConfig{URL: srv.URL},
	})
	d.Notify(context.Background(), Event{Type: EventSyncFailed, Title: "failed run"})
	if hits != 2 {
		t.Fatalf("hits = %d, want 2 (slack + webhook)", hits)
	}

	// Filtered events must not touch any channel.
	d.Notify(context.Background(), Event{Type: EventSyncCompleted, Title: "ok run"})
	if hits != 2 {
		t.Fatalf("hits = %d after filtered event, want 2", hits)
	}
}
