package ops

import (
	"sync"
	"time"
)

// Handler is invoked synchronously on the publishing goroutine.
type Handler func(Event)

type busSubscriber struct {
	fn    Handler
	kinds map[EventKind]struct{}
}

// Bus is the per-mission operation event bus: single process, synchronous,
// in-order, at-most-once. Publish delivers to exactly the subscribers
// registered for the mission's topic at publish time. Phase-gating relies
// on one logical subscriber per (mission, kind) for the handoff kinds;
// the bus does not multiplex missions into one topic.
type Bus struct {
	mu     sync.RWMutex
	topics map[string][]busSubscriber
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{topics: make(map[string][]busSubscriber)}
}

// Subscribe registers fn for the given mission topic. With no kinds the
// handler receives every event on the topic; otherwise only the listed kinds.
func (b *Bus) Subscribe(missionID string, fn Handler, kinds ...EventKind) {
	var filter map[EventKind]struct{}
	if len(kinds) > 0 {
		filter = make(map[EventKind]struct{}, len(kinds))
		for _, k := range kinds {
			filter[k] = struct{}{}
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics[missionID] = append(b.topics[missionID], busSubscriber{fn: fn, kinds: filter})
}

// Publish delivers evt to the mission's subscribers in registration order,
// on the calling goroutine. Events for topics with no subscribers are dropped.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.mu.RLock()
	subs := make([]busSubscriber, len(b.topics[evt.MissionID]))
	copy(subs, b.topics[evt.MissionID])
	b.mu.RUnlock()

	for _, s := range subs {
		if s.kinds != nil {
			if _, ok := s.kinds[evt.Kind]; !ok {
				continue
			}
		}
		s.fn(evt)
	}
}

// DropTopic removes all subscribers for a mission; called when the
// mission reaches a terminal status.
func (b *Bus) DropTopic(missionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.topics, missionID)
}
