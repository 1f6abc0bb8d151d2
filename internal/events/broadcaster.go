package events

import (
	"sync"

	"github.com/google/uuid"

	"autopilot/internal/metrics"
	"autopilot/pkg/logger"
)

// Subscriber is one live stream consumer. Events arrive on a buffered
// channel; a consumer that stops draining is dropped by the broadcaster
// rather than waited on.
type Subscriber struct {
	ch chan Event
}

// Events returns the subscriber's receive channel. It is closed when the
// subscriber is dropped or unsubscribed.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Broadcaster fans structured progress events out to every subscriber of
// an investment id. Late joiners receive only events emitted after they
// joined; there is no replay buffer. Purely observational: ledger state
// never depends on it.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*Subscriber]struct{}
	buffer int
	log    *logger.Logger
}

// NewBroadcaster creates an empty subscriber registry
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broadcaster{
		subs:   make(map[uuid.UUID]map[*Subscriber]struct{}),
		buffer: buffer,
		log:    logger.Get().With("component", "broadcaster"),
	}
}

// Subscribe registers a new subscriber for the investment id
func (b *Broadcaster) Subscribe(investmentID uuid.UUID) *Subscriber {
	sub := &Subscriber{ch: make(chan Event, b.buffer)}

	b.mu.Lock()
	set, ok := b.subs[investmentID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		b.subs[investmentID] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	metrics.StreamSubscribers.Inc()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call
// after the subscriber was already dropped.
func (b *Broadcaster) Unsubscribe(investmentID uuid.UUID, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remove(investmentID, sub)
}

// remove deletes and closes a subscriber. Caller must hold the write lock.
func (b *Broadcaster) remove(investmentID uuid.UUID, sub *Subscriber) {
	set, ok := b.subs[investmentID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, investmentID)
	}
	close(sub.ch)
	metrics.StreamSubscribers.Dec()
}

// Publish delivers an event to every current subscriber of the
// investment id. Delivery is best effort and never blocks: a subscriber
// whose buffer is full is dropped without affecting the others.
func (b *Broadcaster) Publish(investmentID uuid.UUID, e Event) {
	b.mu.RLock()
	set := b.subs[investmentID]
	var dead []*Subscriber
	for sub := range set {
		select {
		case sub.ch <- e:
		default:
			dead = append(dead, sub)
		}
	}
	b.mu.RUnlock()

	metrics.StreamEventsPublished.WithLabelValues(string(e.Type)).Inc()

	if len(dead) == 0 {
		return
	}
	metrics.StreamEventsDropped.Add(float64(len(dead)))

	b.mu.Lock()
	for _, sub := range dead {
		b.remove(investmentID, sub)
	}
	b.mu.Unlock()

	b.log.Debugw("Dropped slow stream subscribers",
		"investment_id", investmentID,
		"dropped", len(dead),
	)
}

// SubscriberCount returns the number of live subscribers for an investment
func (b *Broadcaster) SubscriberCount(investmentID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[investmentID])
}
