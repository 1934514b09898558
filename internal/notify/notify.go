// Package notify carries switch-progress events to whoever cares.
// Delivery is fire-and-forget: no subscriber, a full subscriber, or a
// failing webhook never blocks or fails a switch.
package notify

import (
	"sync"
)

// Event is one progress notification from an in-flight switch.
type Event struct {
	// RunID correlates events from a single SwitchTo call.
	RunID string `json:"run_id"`

	// Strategy is the strategy the event concerns, empty for
	// whole-pipeline events.
	Strategy string `json:"strategy,omitempty"`

	// Message is human-readable progress text.
	Message string `json:"message"`

	// Success is set on terminal events.
	Success bool `json:"success"`

	// Terminal marks the last event of a run, success or not.
	Terminal bool `json:"terminal"`
}

// WebhookFilter selects which events reach the webhook sink.
// In-process subscribers always see everything.
type WebhookFilter struct {
	// OnAttempt passes progress events, one or more per strategy.
	OnAttempt bool

	// OnResult passes the terminal success or failure event.
	OnResult bool
}

func (f WebhookFilter) wants(ev Event) bool {
	if ev.Terminal {
		return f.OnResult
	}
	return f.OnAttempt
}

// subscriberBuffer is how many events a subscriber may lag before
// events are dropped on the floor.
const subscriberBuffer = 16

// Broadcaster fans events out to in-process subscribers and an
// optional webhook sink.
type Broadcaster struct {
	mu      sync.Mutex
	nextID  int
	subs    map[int]chan Event
	webhook *WebhookClient
	filter  WebhookFilter
}

// NewBroadcaster creates an empty Broadcaster. webhook may be nil;
// filter applies to webhook delivery only.
func NewBroadcaster(webhook *WebhookClient, filter WebhookFilter) *Broadcaster {
	return &Broadcaster{
		subs:    make(map[int]chan Event),
		webhook: webhook,
		filter:  filter,
	}
}

// Subscribe registers a listener. The returned cancel function must be
// called when done; after cancel the channel is closed.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber that has room, and to
// the webhook sink when the filter allows it. Never blocks.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; drop rather than stall a switch.
		}
	}
	webhook := b.webhook
	filter := b.filter
	b.mu.Unlock()

	if webhook != nil && filter.wants(ev) {
		webhook.Post(ev)
	}
}

// Global broadcaster for convenient access from the orchestrator.
var (
	globalBroadcaster *Broadcaster
	globalMu          sync.RWMutex
)

// SetGlobal installs the global broadcaster. Call during startup.
func SetGlobal(b *Broadcaster) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalBroadcaster = b
}

// Publish sends an event through the global broadcaster, if one is
// installed. Safe to call when none is.
func Publish(ev Event) {
	globalMu.RLock()
	b := globalBroadcaster
	globalMu.RUnlock()

	if b != nil {
		b.Publish(ev)
	}
}
