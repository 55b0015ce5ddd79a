package ops

import (
	"testing"
	"time"
)

func TestBusDeliversInOrderPerTopic(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe("m1", rec.handle)

	bus.Publish(Event{Kind: EventExplorationCompleted, MissionID: "m1"})
	bus.Publish(Event{Kind: EventRouteComputed, MissionID: "m1"})
	bus.Publish(Event{Kind: EventWaypointReached, MissionID: "m2"})
	bus.Publish(Event{Kind: EventInspectionCompleted, MissionID: "m1"})

	events := rec.all()
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	want := []EventKind{EventExplorationCompleted, EventRouteComputed, EventInspectionCompleted}
	for i, kind := range want {
		if events[i].Kind != kind {
			t.Fatalf("event %d kind = %s, want %s", i, events[i].Kind, kind)
		}
		if events[i].MissionID != "m1" {
			t.Fatalf("event %d leaked from topic %q", i, events[i].MissionID)
		}
	}
}

func TestBusKindFilter(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe("m1", rec.handle, EventWaypointReached)

	bus.Publish(Event{Kind: EventRouteComputed, MissionID: "m1"})
	bus.Publish(Event{Kind: EventWaypointReached, MissionID: "m1", WaypointIndex: 0})
	bus.Publish(Event{Kind: EventWaypointReached, MissionID: "m1", WaypointIndex: 1})
	bus.Publish(Event{Kind: EventInspectionCompleted, MissionID: "m1"})

	events := rec.all()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	for i, evt := range events {
		if evt.Kind != EventWaypointReached {
			t.Fatalf("event %d kind = %s, want waypoint_reached", i, evt.Kind)
		}
		if evt.WaypointIndex != i {
			t.Fatalf("event %d index = %d, want %d", i, evt.WaypointIndex, i)
		}
	}
}

func TestBusDropTopic(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe("m1", rec.handle)

	bus.Publish(Event{Kind: EventRouteComputed, MissionID: "m1"})
	bus.DropTopic("m1")
	bus.Publish(Event{Kind: EventInspectionCompleted, MissionID: "m1"})

	if got := len(rec.all()); got != 1 {
		t.Fatalf("got %d events after drop, want 1", got)
	}
}

func TestBusStampsZeroTimestamps(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe("m1", rec.handle)

	bus.Publish(Event{Kind: EventRouteComputed, MissionID: "m1"})
	stamped := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	bus.Publish(Event{Kind: EventRouteComputed, MissionID: "m1", Timestamp: stamped})

	events := rec.all()
	if events[0].Timestamp.IsZero() {
		t.Fatal("zero timestamp was not stamped at publish")
	}
	if !events[1].Timestamp.Equal(stamped) {
		t.Fatalf("explicit timestamp overwritten: %v", events[1].Timestamp)
	}
}
