package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock exposes the current simulation time to components that should
// not depend on the concrete controller, keeping them testable.
type SimClock interface {
	Now() time.Time
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances one tick per wall-clock tick interval.
	RealTime Mode = iota
	// Accelerated advances as fast as subscribers consume ticks.
	Accelerated
)

// Tick is one step of logical time delivered to subscribers.
type Tick struct {
	Seq     int
	SimTime time.Time
	// Delta is the logical duration covered by this tick.
	Delta time.Duration
}

// TickSource hands out tick subscriptions; satisfied by TimeController.
type TickSource interface {
	Subscribe() (<-chan Tick, func())
}

type subscription struct {
	ch   chan Tick
	gone chan struct{}
}

// TimeController produces the fixed-rate logical ticks that drive survey
// stepping and robot motion. Delivery to a subscriber is a blocking send,
// so a live subscriber observes every tick in order; unsubscribing
// releases the clock immediately.
type TimeController struct {
	mu          sync.RWMutex
	startTime   time.Time
	tick        time.Duration
	mode        Mode
	currentTime time.Time
	subscribers map[int]*subscription
	nextID      int
	started     bool
}

// NewTimeController constructs a controller that starts counting from start.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		startTime:   start,
		tick:        tick,
		mode:        mode,
		currentTime: start,
		subscribers: make(map[int]*subscription),
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// TickInterval returns the logical duration of one tick.
func (tc *TimeController) TickInterval() time.Duration { return tc.tick }

// Subscribe registers a tick consumer, which may join before or after
// Start. The returned func detaches the consumer; it is safe to call once
// the consumer stops reading.
func (tc *TimeController) Subscribe() (<-chan Tick, func()) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	id := tc.nextID
	tc.nextID++
	sub := &subscription{ch: make(chan Tick), gone: make(chan struct{})}
	tc.subscribers[id] = sub

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			tc.mu.Lock()
			delete(tc.subscribers, id)
			tc.mu.Unlock()
			close(sub.gone)
		})
	}
	return sub.ch, unsubscribe
}

// Start runs the tick loop until ctx is cancelled. The returned channel is
// closed when the loop exits.
func (tc *TimeController) Start(ctx context.Context) <-chan struct{} {
	tc.mu.Lock()
	if tc.started {
		tc.mu.Unlock()
		done := make(chan struct{})
		close(done)
		return done
	}
	tc.started = true
	tc.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)

		var ticker *time.Ticker
		if tc.mode == RealTime {
			ticker = time.NewTicker(tc.tick)
			defer ticker.Stop()
		}

		simTime := tc.startTime
		for seq := 0; ; seq++ {
			if ticker != nil {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			} else if ctx.Err() != nil {
				return
			}

			simTime = simTime.Add(tc.tick)
			tc.mu.Lock()
			tc.currentTime = simTime
			subs := make([]*subscription, 0, len(tc.subscribers))
			for _, s := range tc.subscribers {
				subs = append(subs, s)
			}
			tc.mu.Unlock()

			t := Tick{Seq: seq, SimTime: simTime, Delta: tc.tick}
			for _, s := range subs {
				select {
				case s.ch <- t:
				case <-s.gone:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return done
}
