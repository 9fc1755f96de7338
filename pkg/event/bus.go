package event

import "sync"

// DefaultBuffer is the per-subscription channel capacity.
const DefaultBuffer = 64

// Subscription is one registered listener. Events arrive on C until
// Close, after which C is closed.
type Subscription struct {
	// C delivers matching events. Drain it promptly; the bus drops
	// events for a full subscription instead of blocking.
	C <-chan Event

	bus   *Bus
	ch    chan Event
	kinds map[Kind]bool
}

// Close removes the subscription from the bus and closes C.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

// matches reports whether the subscription wants the event.
func (s *Subscription) matches(ev Event) bool {
	return len(s.kinds) == 0 || s.kinds[ev.Kind]
}

// Bus fans session events out to subscribers.
type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
}

// NewBus creates a bus with the default per-subscription buffer.
func NewBus() *Bus {
	return &Bus{
		subs:   make(map[*Subscription]struct{}),
		buffer: DefaultBuffer,
	}
}

// Subscribe registers a listener for the given kinds. With no kinds,
// the subscription receives every event.
func (b *Bus) Subscribe(kinds ...Kind) *Subscription {
	sub := &Subscription{
		bus: b,
		ch:  make(chan Event, b.buffer),
	}
	sub.C = sub.ch
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	_, ok := b.subs[sub]
	if ok {
		delete(b.subs, sub)
	}
	b.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// Publish delivers the event to all matching subscriptions. Full
// subscriptions drop the event.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if !sub.matches(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Close removes and closes every subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[*Subscription]struct{})
	b.mu.Unlock()

	for sub := range subs {
		close(sub.ch)
	}
}
