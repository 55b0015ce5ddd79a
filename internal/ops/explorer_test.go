package ops

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fieldrobotics/mission-orchestrator/internal/telemetry"
	"github.com/fieldrobotics/mission-orchestrator/model"
	"github.com/fieldrobotics/mission-orchestrator/timectrl"
)

func testSpec() model.MissionSpec {
	return model.MissionSpec{
		Name:   "survey-north-field",
		Base:   model.Position{},
		Survey: model.Region{Width: 20, Height: 20},
	}
}

func TestExplorerDedupsAndPublishesCompletion(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe("m1", rec.handle)

	detector := &fakeDetector{batches: [][]model.PointOfInterest{
		{
			{Position: model.Position{X: 1, Y: 1}},
			{Position: model.Position{X: 1.05, Y: 1}}, // within epsilon, dropped
		},
		{
			{Position: model.Position{X: 5, Y: 5}},
			{Position: model.Position{X: 1, Y: 1}}, // duplicate of the first
		},
	}}
	ticks := make(chan timectrl.Tick, 8)
	w := NewExplorerWorker("m1", testSpec(), bus, freshTelemetry(),
		&fakeCamera{}, detector, &fakeSurveyor{doneAfter: 2},
		0.1, time.Second, chanSource{ticks}, nil)

	errc := make(chan error, 1)
	go func() { errc <- w.Run(context.Background()) }()
	sendTicks(ticks, 2, 100*time.Millisecond)

	if err := <-errc; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if w.State() != ExplorerDone {
		t.Fatalf("state = %v, want done", w.State())
	}

	completions := rec.ofKind(EventExplorationCompleted)
	if len(completions) != 1 {
		t.Fatalf("got %d completion events, want 1", len(completions))
	}
	points := completions[0].Points
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2 after dedup", len(points))
	}
	for _, p := range points {
		if p.ID == "" {
			t.Fatal("point published without an ID")
		}
		if p.DetectedAt.IsZero() {
			t.Fatal("point published without a detection time")
		}
	}
}

func TestExplorerFailsAfterStaleBudget(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe("m1", rec.handle)

	source := freshTelemetry()
	source.err = telemetry.ErrStaleTelemetry
	surveyor := &fakeSurveyor{doneAfter: -1}
	ticks := make(chan timectrl.Tick, staleTickLimit+2)
	w := NewExplorerWorker("m1", testSpec(), bus, source,
		&fakeCamera{}, &fakeDetector{}, surveyor,
		0.1, time.Second, chanSource{ticks}, nil)

	errc := make(chan error, 1)
	go func() { errc <- w.Run(context.Background()) }()
	sendTicks(ticks, staleTickLimit, 100*time.Millisecond)

	if err := <-errc; !errors.Is(err, telemetry.ErrStaleTelemetry) {
		t.Fatalf("Run returned %v, want stale telemetry", err)
	}
	if len(rec.ofKind(EventExplorationFailed)) != 1 {
		t.Fatal("expected one exploration failure event")
	}
	if surveyor.steps != 0 {
		t.Fatalf("survey stepped %d times on stale telemetry", surveyor.steps)
	}
}

func TestExplorerDetectorFailure(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe("m1", rec.handle)

	ticks := make(chan timectrl.Tick, 2)
	w := NewExplorerWorker("m1", testSpec(), bus, freshTelemetry(),
		&fakeCamera{}, &fakeDetector{err: errors.New("model crashed")},
		&fakeSurveyor{doneAfter: -1}, 0.1, time.Second, chanSource{ticks}, nil)

	errc := make(chan error, 1)
	go func() { errc <- w.Run(context.Background()) }()
	sendTicks(ticks, 1, 100*time.Millisecond)

	if err := <-errc; !errors.Is(err, ErrDetectionFailure) {
		t.Fatalf("Run returned %v, want detection failure", err)
	}
	if len(rec.ofKind(EventExplorationFailed)) != 1 {
		t.Fatal("expected one exploration failure event")
	}
}

func TestExplorerCancellation(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe("m1", rec.handle)

	ticks := make(chan timectrl.Tick)
	w := NewExplorerWorker("m1", testSpec(), bus, freshTelemetry(),
		&fakeCamera{}, &fakeDetector{}, &fakeSurveyor{doneAfter: -1},
		0.1, time.Second, chanSource{ticks}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	cancel()

	if err := <-errc; !errors.Is(err, ErrCancelled) {
		t.Fatalf("Run returned %v, want cancelled", err)
	}
	if got := len(rec.all()); got != 0 {
		t.Fatalf("cancellation published %d events, want 0", got)
	}
}
