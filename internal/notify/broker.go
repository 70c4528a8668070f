package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/railfleet/capacity-engine/internal/metrics"
	"github.com/ryanuber/go-glob"
)

// Subscription receives the events of all topics matching its pattern.
type Subscription struct {
	id      uint64
	pattern string
	ch      chan Event
	broker  *Broker
	once    sync.Once
}

// C returns the channel events are delivered on. It is closed when the
// subscription or the broker is closed.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Pattern returns the topic pattern of the subscription.
func (s *Subscription) Pattern() string {
	return s.pattern
}

// Close removes the subscription from its broker.
func (s *Subscription) Close() {
	s.broker.unsubscribe(s)
}

// Broker is an in-process Publisher with per facility month topics.
//
// Topic patterns support "*" wildcards, e.g. "allocations.F1.*" or
// "*.F1.2026-03". Delivery never blocks: a subscriber whose buffer
// is full misses the event.
type Broker struct {
	mu            sync.RWMutex
	subscriptions map[uint64]*Subscription
	nextID        atomic.Uint64
	closed        bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subscriptions: make(map[uint64]*Subscription),
	}
}

func (b *Broker) Name() string {
	return "broker"
}

// Subscribe registers a subscription for all topics matching pattern.
// An empty pattern matches all topics.
func (b *Broker) Subscribe(pattern string, buffer int) *Subscription {
	if pattern == "" {
		pattern = "*"
	}

	if buffer < 1 {
		buffer = 1
	}

	s := &Subscription{
		id:      b.nextID.Add(1),
		pattern: pattern,
		ch:      make(chan Event, buffer),
		broker:  b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}

	b.subscriptions[s.id] = s
	return s
}

// Publish delivers the event to all matching subscriptions.
func (b *Broker) Publish(_ context.Context, e Event) error {
	topic := e.Topic()

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.subscriptions {
		if !glob.Glob(s.pattern, topic) {
			continue
		}

		select {
		case s.ch <- e:
		default:
			metrics.NotifierDropped.WithLabelValues("subscriber").Inc()
		}
	}

	return nil
}

// SubscriptionCount returns the number of active subscriptions.
func (b *Broker) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}

// Close closes all subscriptions. Later subscriptions are closed immediately.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, s := range b.subscriptions {
		delete(b.subscriptions, id)
		s.once.Do(func() { close(s.ch) })
	}
}

func (b *Broker) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscriptions, s.id)
	s.once.Do(func() { close(s.ch) })
}
