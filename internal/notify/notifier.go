package notify

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/railfleet/capacity-engine/internal/metrics"
	"github.com/railfleet/capacity-engine/internal/types"
	"github.com/rs/zerolog/log"
)

// Notifier receives change events from the allocation engine.
//
// Implementations must return immediately and never report failures
// to the caller.
type Notifier interface {
	AllocationCreated(facility string, month types.Month, payload AllocationPayload, actorID string)
	AllocationUpdated(facility string, month types.Month, payload AllocationPayload, actorID string)
	AllocationDeleted(facility string, month types.Month, payload AllocationPayload, actorID string)
	CapacityChanged(snapshot CapacitySnapshot, actorID string)
}

// Publisher is a transport for change events.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, e Event) error
}

// Nop is a Notifier that discards all events.
type Nop struct{}

func (Nop) AllocationCreated(string, types.Month, AllocationPayload, string) {}
func (Nop) AllocationUpdated(string, types.Month, AllocationPayload, string) {}
func (Nop) AllocationDeleted(string, types.Month, AllocationPayload, string) {}
func (Nop) CapacityChanged(CapacitySnapshot, string)                         {}

// publishTimeout bounds a single publish call of a transport.
const publishTimeout = 5 * time.Second

// Emitter is a Notifier that queues events and fans them out to
// publishers on a background goroutine.
//
// When the queue is full, events are dropped and counted.
type Emitter struct {
	queue      chan Event
	publishers []Publisher
	done       chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewEmitter creates an Emitter with a queue of size buffer and starts
// its delivery goroutine.
func NewEmitter(buffer int, publishers ...Publisher) *Emitter {
	e := &Emitter{
		queue:      make(chan Event, buffer),
		publishers: publishers,
		done:       make(chan struct{}),
	}

	go e.run()
	return e
}

func (e *Emitter) AllocationCreated(facility string, month types.Month, payload AllocationPayload, actorID string) {
	e.emit(Event{Type: EventAllocationCreated, Facility: facility, Month: month, Allocation: &payload, ActorID: actorID})
}

func (e *Emitter) AllocationUpdated(facility string, month types.Month, payload AllocationPayload, actorID string) {
	e.emit(Event{Type: EventAllocationUpdated, Facility: facility, Month: month, Allocation: &payload, ActorID: actorID})
}

func (e *Emitter) AllocationDeleted(facility string, month types.Month, payload AllocationPayload, actorID string) {
	e.emit(Event{Type: EventAllocationDeleted, Facility: facility, Month: month, Allocation: &payload, ActorID: actorID})
}

func (e *Emitter) CapacityChanged(snapshot CapacitySnapshot, actorID string) {
	e.emit(Event{Type: EventCapacityChanged, Facility: snapshot.FacilityCode, Month: snapshot.Month, Capacity: &snapshot, ActorID: actorID})
}

func (e *Emitter) emit(ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		metrics.NotifierDropped.WithLabelValues("closed").Inc()
		return
	}

	select {
	case e.queue <- ev:
	default:
		metrics.NotifierDropped.WithLabelValues("queue").Inc()
		log.Warn().Str("topic", ev.Topic()).Str("type", string(ev.Type)).Msg("notifier queue full, dropping event")
	}
}

func (e *Emitter) run() {
	defer close(e.done)

	for ev := range e.queue {
		for _, p := range e.publishers {
			e.publish(p, ev)
		}
	}
}

// publish delivers ev to p and recovers from panics so that one broken
// transport cannot stop delivery to the others.
func (e *Emitter) publish(p Publisher, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.NotifierPublishErrors.WithLabelValues(p.Name()).Inc()
			log.Error().Str("transport", p.Name()).Str("stack", string(debug.Stack())).Msgf("publisher panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.Publish(ctx, ev); err != nil {
		metrics.NotifierPublishErrors.WithLabelValues(p.Name()).Inc()
		log.Error().Err(err).Str("transport", p.Name()).Str("topic", ev.Topic()).Msg("publishing change event failed")
	}
}

// Close stops accepting events and waits until all queued events
// have been handed to the publishers.
func (e *Emitter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	<-e.done
}
