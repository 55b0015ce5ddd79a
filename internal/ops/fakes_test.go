package ops

import (
	"context"
	"sync"
	"time"

	"github.com/fieldrobotics/mission-orchestrator/model"
	"github.com/fieldrobotics/mission-orchestrator/timectrl"
)

type fakeTelemetry struct {
	mu   sync.Mutex
	data model.TelemetryData
	err  error
}

func (f *fakeTelemetry) Latest(time.Duration) (model.TelemetryData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data, f.err
}

type fakeCamera struct {
	err error
}

func (f *fakeCamera) Frame(context.Context) (model.Frame, error) {
	if f.err != nil {
		return model.Frame{}, f.err
	}
	return model.Frame{Timestamp: time.Now()}, nil
}

// fakeDetector returns one scripted detection batch per call, then nil.
// With always set it returns the same batch on every call instead.
type fakeDetector struct {
	mu      sync.Mutex
	batches [][]model.PointOfInterest
	always  []model.PointOfInterest
	calls   int
	err     error
}

func (f *fakeDetector) Detect(model.Frame, model.Pose) ([]model.PointOfInterest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.always != nil {
		return f.always, nil
	}
	i := f.calls
	f.calls++
	if i < len(f.batches) {
		return f.batches[i], nil
	}
	return nil, nil
}

// fakeSurveyor completes after doneAfter steps; doneAfter < 0 never
// completes. With once set, exactly one caller observes completion.
type fakeSurveyor struct {
	mu        sync.Mutex
	doneAfter int
	once      bool
	steps     int
	consumed  bool
	beginErr  error
	stepErr   error
}

func (f *fakeSurveyor) Begin(context.Context, model.Region) error { return f.beginErr }

func (f *fakeSurveyor) Step(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stepErr != nil {
		return false, f.stepErr
	}
	f.steps++
	if f.doneAfter < 0 || f.steps < f.doneAfter {
		return false, nil
	}
	if f.once {
		if f.consumed {
			return false, nil
		}
		f.consumed = true
	}
	return true, nil
}

type fakeSensor struct {
	reading float64
	err     error
}

func (f *fakeSensor) Sample(context.Context, model.Position) (float64, error) {
	return f.reading, f.err
}

type failingPlanner struct {
	err error
}

func (p failingPlanner) Plan(context.Context, model.Position, []model.PointOfInterest) ([]model.Position, error) {
	return nil, p.err
}

// recorder collects bus events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(evt Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) ofKind(kind EventKind) []Event {
	var out []Event
	for _, evt := range r.all() {
		if evt.Kind == kind {
			out = append(out, evt)
		}
	}
	return out
}

// stuckClock hands out tick channels that never fire; subscribers sit in
// their cancellation branch forever.
type stuckClock struct{}

func (stuckClock) Subscribe() (<-chan timectrl.Tick, func()) {
	return make(chan timectrl.Tick), func() {}
}

// chanSource exposes a test-owned channel as a tick source.
type chanSource struct {
	ch chan timectrl.Tick
}

func (c chanSource) Subscribe() (<-chan timectrl.Tick, func()) {
	return c.ch, func() {}
}

func freshTelemetry() *fakeTelemetry {
	return &fakeTelemetry{data: model.TelemetryData{Timestamp: time.Now()}}
}

func sendTicks(ch chan<- timectrl.Tick, n int, delta time.Duration) {
	base := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		ch <- timectrl.Tick{Seq: i, SimTime: base.Add(time.Duration(i+1) * delta), Delta: delta}
	}
}
