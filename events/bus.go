// Package events provides the in-process change bus the stores publish to
// and the server's SSE layer subscribes to.
package events

import (
	"sync"
	"time"
)

// Type identifies the kind of change event.
type Type string

const (
	TypeCollectionChanged Type = "collection_changed" // a store mutated or refetched
	TypeSyncFailed        Type = "sync_failed"        // one integration's sync failed
	TypeToastExpired      Type = "toast_expired"      // a toast aged out of the queue
)

// Event records one change in the domain state.
type Event struct {
	Type      Type      `json:"type"`
	Kind      string    `json:"kind,omitempty"` // entity family for collection changes
	Subject   string    `json:"subject,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler consumes published events.
type Handler func(ev Event)

// Bus is a thread-safe in-process change bus with a bounded history, so a
// freshly connected UI can backfill recent activity.
type Bus struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int
	history  []Event
	maxHist  int
}

// NewBus creates a Bus with a 500-event history cap.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[int]Handler),
		maxHist:  500,
	}
}

// Publish records the event and delivers it to every subscriber. The
// timestamp is stamped here when the caller leaves it zero.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.Lock()
	b.history = append(b.history, ev)
	if len(b.history) > b.maxHist {
		b.history = b.history[len(b.history)-b.maxHist:]
	}
	// Collect handlers to invoke outside the lock
	targets := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		targets = append(targets, h)
	}
	b.mu.Unlock()

	for _, h := range targets {
		h(ev)
	}
}

// Subscribe registers a handler for all published events. The returned
// function unsubscribes it.
func (b *Bus) Subscribe(handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// History returns the most recent limit events, oldest first. A limit of
// zero or less returns everything retained.
func (b *Bus) History(limit int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	start := 0
	if limit > 0 && len(b.history) > limit {
		start = len(b.history) - limit
	}
	out := make([]Event, len(b.history)-start)
	copy(out, b.history[start:])
	return out
}
