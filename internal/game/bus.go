package game

import (
	"sync"
	"sync/atomic"
)

// Handler receives events from the bus.
type Handler func(Event)

// Subscription is returned by Subscribe and passed back to Unsubscribe.
type Subscription struct {
	id      uint64
	types   map[EventType]struct{} // nil matches every type
	handler Handler
}

func (s *Subscription) matches(t EventType) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// EventBus fans events out to subscribers synchronously, on the publishing goroutine.
// Handlers may publish, subscribe or unsubscribe from inside a delivery.
// Subscribers get no ordering guarantee relative to each other.
type EventBus struct {
	mu     sync.RWMutex
	subs   []*Subscription
	nextID uint64
	closed bool

	sequence atomic.Uint64
	tickNum  atomic.Uint64
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers handler for the given types, or for every type when none are given.
// Returns nil if the bus is closed.
func (b *EventBus) Subscribe(handler Handler, types ...EventType) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || handler == nil {
		return nil
	}

	b.nextID++
	sub := &Subscription{id: b.nextID, handler: handler}
	if len(types) > 0 {
		sub.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}
	b.subs = append(b.subs, sub)
	return sub
}

// Unsubscribe removes sub. Unknown or nil subscriptions are ignored.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == sub.id {
			// copy-on-write so in-flight deliveries keep their slice
			next := make([]*Subscription, 0, len(b.subs)-1)
			next = append(next, b.subs[:i]...)
			b.subs = append(next, b.subs[i+1:]...)
			return
		}
	}
}

// SetTick stamps subsequent events with the session tick number.
func (b *EventBus) SetTick(n uint64) {
	b.tickNum.Store(n)
}

// Publish builds an event and delivers it to every matching subscriber.
func (b *EventBus) Publish(eventType EventType, source string, payload any) {
	event := NewEvent(eventType, b.tickNum.Load(), source, payload)

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	event.Sequence = b.sequence.Add(1)
	subs := b.subs
	b.mu.RUnlock()

	for _, s := range subs {
		if s.matches(eventType) {
			s.handler(event)
		}
	}
}

// Len returns the number of live subscriptions.
func (b *EventBus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close drops every subscription; later publishes are no-ops.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = nil
}
