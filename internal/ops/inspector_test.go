package ops

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fieldrobotics/mission-orchestrator/core"
	"github.com/fieldrobotics/mission-orchestrator/model"
	"github.com/fieldrobotics/mission-orchestrator/timectrl"
)

func handoff(bus *Bus, missionID string, positions ...model.Position) {
	points := make([]model.PointOfInterest, len(positions))
	for i, pos := range positions {
		points[i] = model.PointOfInterest{ID: "p", Position: pos, DetectedAt: time.Now()}
	}
	bus.Publish(Event{Kind: EventExplorationCompleted, MissionID: missionID, Points: points})
}

func TestInspectorWaitsForHandoffThenDrives(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe("m1", rec.handle)

	ticks := make(chan timectrl.Tick, 8)
	w := NewInspectorWorker("m1", testSpec(), bus,
		core.NearestNeighborPlanner{}, nil, &fakeSensor{reading: 42.5},
		1.0, chanSource{ticks}, nil)

	errc := make(chan error, 1)
	go func() { errc <- w.Run(context.Background()) }()

	// The inspector must not plan or move before the handoff arrives.
	time.Sleep(20 * time.Millisecond)
	if w.State() != InspectorAwaitingPoints {
		t.Fatalf("state = %v before handoff, want awaiting", w.State())
	}
	if got := len(rec.ofKind(EventRouteComputed)); got != 0 {
		t.Fatalf("route computed before exploration finished")
	}

	handoff(bus, "m1", model.Position{X: 1})
	sendTicks(ticks, 1, time.Second)

	if err := <-errc; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	events := rec.all()
	var kinds []EventKind
	for _, evt := range events {
		kinds = append(kinds, evt.Kind)
	}
	want := []EventKind{EventExplorationCompleted, EventRouteComputed, EventWaypointReached, EventInspectionCompleted}
	if len(kinds) != len(want) {
		t.Fatalf("event kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, kinds[i], want[i])
		}
	}

	reached := rec.ofKind(EventWaypointReached)[0]
	if reached.WaypointIndex != 0 {
		t.Fatalf("waypoint index = %d, want 0", reached.WaypointIndex)
	}
	if reached.Position != (model.Position{X: 1}) {
		t.Fatalf("waypoint position = %+v", reached.Position)
	}
	if reached.Reading != 42.5 {
		t.Fatalf("reading = %g, want 42.5", reached.Reading)
	}
}

func TestInspectorZeroPointsCompletesImmediately(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe("m1", rec.handle)

	ticks := make(chan timectrl.Tick)
	w := NewInspectorWorker("m1", testSpec(), bus,
		core.NearestNeighborPlanner{}, nil, &fakeSensor{},
		1.0, chanSource{ticks}, nil)

	errc := make(chan error, 1)
	go func() { errc <- w.Run(context.Background()) }()
	handoff(bus, "m1")

	if err := <-errc; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if got := len(rec.ofKind(EventRouteComputed)); got != 0 {
		t.Fatal("planned a route over zero points")
	}
	if got := len(rec.ofKind(EventInspectionCompleted)); got != 1 {
		t.Fatalf("got %d completion events, want 1", got)
	}
}

func TestInspectorFallsBackAfterPlannerFailure(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe("m1", rec.handle)

	ticks := make(chan timectrl.Tick, 8)
	w := NewInspectorWorker("m1", testSpec(), bus,
		failingPlanner{err: core.ErrInfeasibleOrTimeout},
		core.NearestNeighborPlanner{}, &fakeSensor{},
		10.0, chanSource{ticks}, nil)

	errc := make(chan error, 1)
	go func() { errc <- w.Run(context.Background()) }()
	handoff(bus, "m1", model.Position{X: 3}, model.Position{X: 1})
	sendTicks(ticks, 2, time.Second)

	if err := <-errc; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	routes := rec.ofKind(EventRouteComputed)
	if len(routes) != 1 {
		t.Fatalf("got %d route events, want 1", len(routes))
	}
	// Nearest neighbor from the base visits x=1 before x=3.
	want := []model.Position{{X: 1}, {X: 3}}
	for i, pos := range routes[0].Route {
		if pos != want[i] {
			t.Fatalf("route[%d] = %+v, want %+v", i, pos, want[i])
		}
	}
}

func TestInspectorFailsWithoutFallback(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe("m1", rec.handle)

	planErr := core.ErrInfeasibleOrTimeout
	ticks := make(chan timectrl.Tick)
	w := NewInspectorWorker("m1", testSpec(), bus,
		failingPlanner{err: planErr}, nil, &fakeSensor{},
		1.0, chanSource{ticks}, nil)

	errc := make(chan error, 1)
	go func() { errc <- w.Run(context.Background()) }()
	handoff(bus, "m1", model.Position{X: 1})

	if err := <-errc; !errors.Is(err, planErr) {
		t.Fatalf("Run returned %v, want planner error", err)
	}
	if got := len(rec.ofKind(EventMissionFailed)); got != 1 {
		t.Fatalf("got %d failure events, want 1", got)
	}
}

func TestInspectorCancelMidDrive(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe("m1", rec.handle)

	ticks := make(chan timectrl.Tick, 8)
	w := NewInspectorWorker("m1", testSpec(), bus,
		core.NearestNeighborPlanner{}, nil, &fakeSensor{},
		1.0, chanSource{ticks}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	handoff(bus, "m1", model.Position{X: 1}, model.Position{X: 100})

	// One tick reaches the first waypoint; the second is far away.
	sendTicks(ticks, 1, time.Second)
	deadline := time.Now().Add(time.Second)
	for len(rec.ofKind(EventWaypointReached)) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first waypoint never reached")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := <-errc; !errors.Is(err, ErrCancelled) {
		t.Fatalf("Run returned %v, want cancelled", err)
	}
	if got := len(rec.ofKind(EventWaypointReached)); got != 1 {
		t.Fatalf("got %d waypoint events after cancel, want 1", got)
	}
	if got := len(rec.ofKind(EventInspectionCompleted)); got != 0 {
		t.Fatal("inspection completed despite cancellation")
	}
}
