package ops

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fieldrobotics/mission-orchestrator/core"
	"github.com/fieldrobotics/mission-orchestrator/internal/logging"
	"github.com/fieldrobotics/mission-orchestrator/model"
	"github.com/fieldrobotics/mission-orchestrator/timectrl"
)

// InspectorState is the inspector worker's phase within one mission.
type InspectorState int

const (
	InspectorAwaitingPoints InspectorState = iota
	InspectorPlanning
	InspectorDriving
	InspectorDone
	InspectorFailed
)

// InspectorWorker drives the inspection phase of one mission. It blocks
// until the explorer hands over its point set, plans a visiting order,
// and walks the ground agent through the route, sampling the sensor at
// each reached point. The bus subscription is taken at construction
// time so a completion published before Run is never lost.
type InspectorWorker struct {
	missionID string
	spec      model.MissionSpec

	bus      *Bus
	planner  core.Planner
	fallback core.Planner
	sensor   Sensor

	speed float64
	clock timectrl.TickSource
	log   logging.Logger

	handoff chan []model.PointOfInterest

	mu    sync.Mutex
	state InspectorState
}

// NewInspectorWorker wires an inspector for one mission and subscribes
// it to the mission's exploration handoff. fallback may be nil to
// disable replanning after a primary planner failure. The worker only
// subscribes to the clock once it starts driving, so waiting for the
// handoff never blocks tick delivery to the explorer.
func NewInspectorWorker(
	missionID string,
	spec model.MissionSpec,
	bus *Bus,
	planner, fallback core.Planner,
	sensor Sensor,
	speed float64,
	clock timectrl.TickSource,
	log logging.Logger,
) *InspectorWorker {
	w := &InspectorWorker{
		missionID: missionID,
		spec:      spec,
		bus:       bus,
		planner:   planner,
		fallback:  fallback,
		sensor:    sensor,
		speed:     speed,
		clock:     clock,
		log:       logging.WithMission(log, missionID),
		handoff:   make(chan []model.PointOfInterest, 1),
	}
	bus.Subscribe(missionID, func(evt Event) {
		select {
		case w.handoff <- evt.Points:
		default:
		}
	}, EventExplorationCompleted)
	return w
}

// State reports the worker's current phase.
func (w *InspectorWorker) State() InspectorState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *InspectorWorker) setState(s InspectorState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Run blocks for the exploration handoff, then plans and drives the
// route. It returns ErrCancelled when ctx is done; planning and sensor
// failures publish MissionFailed before returning the cause.
func (w *InspectorWorker) Run(ctx context.Context) error {
	var points []model.PointOfInterest
	select {
	case <-ctx.Done():
		w.setState(InspectorFailed)
		return ErrCancelled
	case points = <-w.handoff:
	}

	if len(points) == 0 {
		w.setState(InspectorDone)
		w.log.Info(ctx, "nothing to inspect")
		w.bus.Publish(Event{Kind: EventInspectionCompleted, MissionID: w.missionID})
		return nil
	}

	route, err := w.plan(ctx, points)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			w.setState(InspectorFailed)
			return ErrCancelled
		}
		w.fail(ctx, fmt.Sprintf("route planning: %v", err))
		return err
	}
	// A cancel racing the planner discards the result unused.
	if ctx.Err() != nil {
		w.setState(InspectorFailed)
		return ErrCancelled
	}
	w.bus.Publish(Event{
		Kind:      EventRouteComputed,
		MissionID: w.missionID,
		Route:     route,
	})
	w.log.Info(ctx, "route computed", logging.Int("waypoints", len(route)))

	return w.drive(ctx, route)
}

// plan runs the primary planner and, on failure, the fallback exactly
// once.
func (w *InspectorWorker) plan(ctx context.Context, points []model.PointOfInterest) ([]model.Position, error) {
	w.setState(InspectorPlanning)
	route, err := w.planner.Plan(ctx, w.spec.Base, points)
	if err == nil {
		return route, nil
	}
	if w.fallback == nil || ctx.Err() != nil {
		return nil, err
	}
	w.log.Warn(ctx, "primary planner failed, replanning",
		logging.Err(err), logging.Int("targets", len(points)))
	return w.fallback.Plan(ctx, w.spec.Base, points)
}

func (w *InspectorWorker) drive(ctx context.Context, route []model.Position) error {
	w.setState(InspectorDriving)
	dog := core.NewRobotDog(w.spec.Base, w.speed)
	dog.Enqueue(route...)

	ticks, unsubscribe := w.clock.Subscribe()
	defer unsubscribe()

	reached := 0
	for {
		select {
		case <-ctx.Done():
			w.setState(InspectorFailed)
			return ErrCancelled
		case tick, ok := <-ticks:
			if !ok {
				w.setState(InspectorFailed)
				return ErrCancelled
			}
			for _, sig := range dog.Advance(tick.Delta.Seconds()) {
				switch sig {
				case core.SignalWaypointReached:
					pos := dog.Position()
					reading, err := w.sensor.Sample(ctx, pos)
					if err != nil {
						if ctx.Err() != nil {
							w.setState(InspectorFailed)
							return ErrCancelled
						}
						w.fail(ctx, fmt.Sprintf("sensor at waypoint %d: %v", reached, err))
						return err
					}
					w.bus.Publish(Event{
						Kind:          EventWaypointReached,
						MissionID:     w.missionID,
						Timestamp:     tick.SimTime,
						WaypointIndex: reached,
						Position:      pos,
						Reading:       reading,
					})
					reached++
				case core.SignalPathCompleted:
					w.setState(InspectorDone)
					w.log.Info(ctx, "inspection completed", logging.Int("visited", reached))
					w.bus.Publish(Event{
						Kind:      EventInspectionCompleted,
						MissionID: w.missionID,
						Timestamp: tick.SimTime,
					})
					return nil
				}
			}
		}
	}
}

func (w *InspectorWorker) fail(ctx context.Context, reason string) {
	w.setState(InspectorFailed)
	w.log.Error(ctx, "inspection failed", logging.String("reason", reason))
	w.bus.Publish(Event{
		Kind:      EventMissionFailed,
		MissionID: w.missionID,
		Reason:    reason,
	})
}
