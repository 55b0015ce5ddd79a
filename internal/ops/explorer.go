package ops

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldrobotics/mission-orchestrator/internal/logging"
	"github.com/fieldrobotics/mission-orchestrator/internal/telemetry"
	"github.com/fieldrobotics/mission-orchestrator/model"
	"github.com/fieldrobotics/mission-orchestrator/timectrl"
)

// ExplorerState is the explorer worker's phase within one mission.
type ExplorerState int

const (
	ExplorerIdle ExplorerState = iota
	ExplorerSurveying
	ExplorerDone
	ExplorerFailed
)

// staleTickLimit is how many consecutive stale-telemetry ticks the
// explorer tolerates before declaring the aerial agent lost.
const staleTickLimit = 10

// ExplorerWorker drives the exploration phase of one mission. Each tick
// it samples telemetry, captures a frame, runs the detector, and merges
// detections into a private point set. When the surveyor reports the
// sweep complete it publishes ExplorationCompleted carrying the points;
// unrecoverable staleness or a capture/detector error publishes
// ExplorationFailed instead.
//
// The worker never touches the Mission record. The controller copies the
// point set out of the completion event under its own lock, so no
// mission field is shared between goroutines.
type ExplorerWorker struct {
	missionID string
	spec      model.MissionSpec

	bus      *Bus
	source   TelemetrySource
	camera   Camera
	detector Detector
	surveyor Surveyor

	epsilon float64
	maxAge  time.Duration
	clock   timectrl.TickSource
	log     logging.Logger

	mu     sync.Mutex
	state  ExplorerState
	points []model.PointOfInterest
}

// NewExplorerWorker wires an explorer for one mission. The worker holds
// a tick subscription only while it is actively surveying, so a finished
// explorer never stalls the clock.
func NewExplorerWorker(
	missionID string,
	spec model.MissionSpec,
	bus *Bus,
	source TelemetrySource,
	camera Camera,
	detector Detector,
	surveyor Surveyor,
	epsilon float64,
	maxAge time.Duration,
	clock timectrl.TickSource,
	log logging.Logger,
) *ExplorerWorker {
	return &ExplorerWorker{
		missionID: missionID,
		spec:      spec,
		bus:       bus,
		source:    source,
		camera:    camera,
		detector:  detector,
		surveyor:  surveyor,
		epsilon:   epsilon,
		maxAge:    maxAge,
		clock:     clock,
		log:       logging.WithMission(log, missionID),
	}
}

// State reports the worker's current phase.
func (w *ExplorerWorker) State() ExplorerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *ExplorerWorker) setState(s ExplorerState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Run executes the survey until completion, failure, or cancellation.
// It returns ErrCancelled when ctx is done, and the underlying cause on
// failure; the matching event has already been published in either the
// failure case or the success case before Run returns.
func (w *ExplorerWorker) Run(ctx context.Context) error {
	if err := w.surveyor.Begin(ctx, w.spec.Survey); err != nil {
		w.fail(ctx, fmt.Sprintf("survey start: %v", err))
		return err
	}
	w.setState(ExplorerSurveying)
	w.log.Info(ctx, "exploration started",
		logging.Float("region_w", w.spec.Survey.Width),
		logging.Float("region_h", w.spec.Survey.Height))

	ticks, unsubscribe := w.clock.Subscribe()
	defer unsubscribe()

	staleTicks := 0
	for {
		select {
		case <-ctx.Done():
			w.setState(ExplorerFailed)
			return ErrCancelled
		case tick, ok := <-ticks:
			if !ok {
				w.setState(ExplorerFailed)
				return ErrCancelled
			}
			data, err := w.source.Latest(w.maxAge)
			switch {
			case errors.Is(err, telemetry.ErrStaleTelemetry):
				staleTicks++
				if staleTicks >= staleTickLimit {
					w.fail(ctx, "telemetry stale beyond budget")
					return telemetry.ErrStaleTelemetry
				}
				continue
			case err != nil:
				w.fail(ctx, fmt.Sprintf("telemetry: %v", err))
				return err
			}
			staleTicks = 0

			frame, err := w.camera.Frame(ctx)
			if err != nil {
				if ctx.Err() != nil {
					w.setState(ExplorerFailed)
					return ErrCancelled
				}
				w.fail(ctx, fmt.Sprintf("frame capture: %v", err))
				return fmt.Errorf("%w: %v", ErrDetectionFailure, err)
			}
			detections, err := w.detector.Detect(frame, data.Pose)
			if err != nil {
				w.fail(ctx, fmt.Sprintf("detector: %v", err))
				return fmt.Errorf("%w: %v", ErrDetectionFailure, err)
			}
			w.merge(detections, tick.SimTime)

			done, err := w.surveyor.Step(ctx)
			if err != nil {
				if ctx.Err() != nil {
					w.setState(ExplorerFailed)
					return ErrCancelled
				}
				w.fail(ctx, fmt.Sprintf("survey step: %v", err))
				return err
			}
			if done {
				w.setState(ExplorerDone)
				w.mu.Lock()
				points := make([]model.PointOfInterest, len(w.points))
				copy(points, w.points)
				w.mu.Unlock()
				w.log.Info(ctx, "exploration completed", logging.Int("points", len(points)))
				w.bus.Publish(Event{
					Kind:      EventExplorationCompleted,
					MissionID: w.missionID,
					Timestamp: tick.SimTime,
					Points:    points,
				})
				return nil
			}
		}
	}
}

// merge folds new detections into the private point set, dropping any
// detection within epsilon of a known point.
func (w *ExplorerWorker) merge(detections []model.PointOfInterest, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
next:
	for _, d := range detections {
		for _, p := range w.points {
			if p.Position.DistanceTo(d.Position) <= w.epsilon {
				continue next
			}
		}
		d.ID = uuid.NewString()
		d.DetectedAt = at
		w.points = append(w.points, d)
	}
}

func (w *ExplorerWorker) fail(ctx context.Context, reason string) {
	w.setState(ExplorerFailed)
	w.log.Error(ctx, "exploration failed", logging.String("reason", reason))
	w.bus.Publish(Event{
		Kind:      EventExplorationFailed,
		MissionID: w.missionID,
		Reason:    reason,
	})
}
