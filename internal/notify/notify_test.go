package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestSubscribeReceivesPublished(t *testing.T) {
	b := NewBroadcaster(nil, WebhookFilter{})
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(Event{RunID: "r1", Message: "starting"})

	ev := <-ch
	if ev.RunID != "r1" || ev.Message != "starting" {
		t.Fatalf("got %+v, want run r1 starting", ev)
	}
}

func TestPublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	b := NewBroadcaster(nil, WebhookFilter{})
	for i := 0; i < 100; i++ {
		b.Publish(Event{RunID: "r1"})
	}
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	b := NewBroadcaster(nil, WebhookFilter{})
	ch, cancel := b.Subscribe()
	defer cancel()

	// Overfill the buffer without draining; Publish must not block.
	for i := 0; i < subscriberBuffer*2; i++ {
		b.Publish(Event{RunID: "r1"})
	}

	received := 0
	for len(ch) > 0 {
		<-ch
		received++
	}
	if received != subscriberBuffer {
		t.Fatalf("received %d events, want %d", received, subscriberBuffer)
	}
}

func TestCancelClosesChannel(t *testing.T) {
	b := NewBroadcaster(nil, WebhookFilter{})
	ch, cancel := b.Subscribe()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("channel still open after cancel")
	}

	// Publishing after cancel must not panic on the closed channel.
	b.Publish(Event{RunID: "r1"})
}

func TestWebhookDelivery(t *testing.T) {
	got := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev Event
		if err := json.Unmarshal(body, &ev); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		got <- ev
	}))
	defer srv.Close()

	c := NewWebhookClient(srv.URL, nil)
	b := NewBroadcaster(c, WebhookFilter{OnAttempt: true, OnResult: true})
	b.Publish(Event{RunID: "r2", Strategy: "login-argument", Success: true, Terminal: true})
	c.Flush()

	ev := <-got
	if ev.RunID != "r2" || ev.Strategy != "login-argument" || !ev.Success {
		t.Fatalf("webhook received %+v", ev)
	}
}

func TestWebhookFilterSelectsEvents(t *testing.T) {
	var mu sync.Mutex
	var runs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev Event
		if err := json.Unmarshal(body, &ev); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		mu.Lock()
		runs = append(runs, ev.RunID)
		mu.Unlock()
	}))
	defer srv.Close()

	c := NewWebhookClient(srv.URL, nil)
	b := NewBroadcaster(c, WebhookFilter{OnResult: true})
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(Event{RunID: "attempt", Strategy: "login-argument", Message: "attempting"})
	b.Publish(Event{RunID: "result", Success: true, Terminal: true})
	c.Flush()

	mu.Lock()
	got := append([]string(nil), runs...)
	mu.Unlock()
	if len(got) != 1 || got[0] != "result" {
		t.Fatalf("webhook received %v, want only the terminal event", got)
	}

	// Subscribers are unfiltered regardless of the webhook setting.
	if len(ch) != 2 {
		t.Fatalf("subscriber has %d events, want 2", len(ch))
	}
}

func TestWebhookFailureIsSilent(t *testing.T) {
	c := NewWebhookClient("http://127.0.0.1:1/nope", nil)
	c.Post(Event{RunID: "r3"})
	c.Flush()
}

func TestGlobalPublishWithoutBroadcaster(t *testing.T) {
	SetGlobal(nil)
	Publish(Event{RunID: "r4"})

	b := NewBroadcaster(nil, WebhookFilter{})
	ch, cancel := b.Subscribe()
	defer cancel()
	SetGlobal(b)
	defer SetGlobal(nil)

	Publish(Event{RunID: "r5"})
	if ev := <-ch; ev.RunID != "r5" {
		t.Fatalf("got run %q, want r5", ev.RunID)
	}
}
