package registry

import (
	"context"
	"sync"
	"time"
)

// EventKind identifies a registry lifecycle notification.
type EventKind int

const (
	EventAdded EventKind = iota
	EventUpdated
	EventDeleted
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventUpdated:
		return "updated"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is delivered to observers after a successful mutation.
type Event[E any] struct {
	Kind      EventKind
	Timestamp time.Time
	// Entity is the added, updated (new) or deleted entity.
	Entity E
	// Previous is the replaced entity for EventUpdated.
	Previous      E
	CorrelationID string
	ActorID       string
	NodeID        string
}

// Observer receives registry events. Errors are logged by the registry and do not change the
// operation result.
type Observer[E any] func(ctx context.Context, ev Event[E]) error

// Callback is the synchronous per-call hook for add and delete operations.
type Callback[E any] func(ts time.Time, entity E, correlationID string)

// UpdateCallback is the synchronous per-call hook for update operations.
type UpdateCallback[E any] func(ts time.Time, updated, previous E, correlationID string)

type observerEntry[E any] struct {
	id int
	fn Observer[E]
}

// observers keeps subscriptions in registration order.
type observers[E any] struct {
	mu      sync.RWMutex
	nextID  int
	entries []observerEntry[E]
}

func (o *observers[E]) add(fn Observer[E]) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextID++
	id := o.nextID
	o.entries = append(o.entries, observerEntry[E]{id: id, fn: fn})

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, e := range o.entries {
			if e.id == id {
				o.entries = append(o.entries[:i:i], o.entries[i+1:]...)
				return
			}
		}
	}
}

func (o *observers[E]) snapshot() []Observer[E] {
	o.mu.RLock()
	defer o.mu.RUnlock()

	fns := make([]Observer[E], 0, len(o.entries))
	for _, e := range o.entries {
		fns = append(fns, e.fn)
	}
	return fns
}
