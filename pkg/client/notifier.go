package client

import "sync"

// EventKind classifies a notification.
type EventKind string

// Event kinds.
const (
	// EventBusiness is a rejected request, e.g. insufficient funds.
	EventBusiness EventKind = "business"
	// EventUnauthorized means the session was torn down after a 401.
	EventUnauthorized EventKind = "unauthorized"
	// EventNetwork is a transport failure; Retryable is always set.
	EventNetwork EventKind = "network"
)

// Event describes a failed call.
type Event struct {
	Kind      EventKind
	Method    string
	Path      string
	Err       error
	Retryable bool
}

// Notifier receives failure events from a Client.
type Notifier interface {
	Publish(evt Event)
}

// Listener handles one event.
type Listener func(evt Event)

// Bus is an in-memory Notifier with subscribe/unsubscribe.
type Bus struct {
	mu        sync.RWMutex
	next      int
	listeners map[int]Listener
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[int]Listener)}
}

// Subscribe registers l and returns a function that removes it.
func (b *Bus) Subscribe(l Listener) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.listeners[id] = l
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

// Publish implements Notifier.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	b.mu.RUnlock()
	for _, l := range listeners {
		l(evt)
	}
}

type nopNotifier struct{}

func (nopNotifier) Publish(Event) {}
