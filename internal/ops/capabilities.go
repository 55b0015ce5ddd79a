package ops

import (
	"context"
	"errors"
	"time"

	"github.com/fieldrobotics/mission-orchestrator/model"
)

var (
	// ErrCapacityExceeded is returned by Submit when both the active
	// bound and the admission queue are full.
	ErrCapacityExceeded = errors.New("mission capacity exceeded")
	// ErrCancelled marks a worker stop caused by mission cancellation.
	ErrCancelled = errors.New("mission cancelled")
	// ErrDetectionFailure marks an unrecoverable capture/detector error.
	ErrDetectionFailure = errors.New("detection failure")
)

// Camera captures frames from the aerial agent. External capability;
// pure with respect to orchestration state.
type Camera interface {
	Frame(ctx context.Context) (model.Frame, error)
}

// Detector finds points of interest in a frame given the pose it was
// captured at.
type Detector interface {
	Detect(frame model.Frame, pose model.Pose) ([]model.PointOfInterest, error)
}

// Surveyor is the aerial agent's survey-pattern capability: Begin sends
// it to the mission's region, Step advances the pattern one tick and
// reports when the sweep is complete.
type Surveyor interface {
	Begin(ctx context.Context, region model.Region) error
	Step(ctx context.Context) (done bool, err error)
}

// Sensor is the ground agent's close-range measurement capability,
// sampled once at each reached point of interest.
type Sensor interface {
	Sample(ctx context.Context, at model.Position) (float64, error)
}

// TelemetrySource provides the latest telemetry snapshot with a
// freshness budget; satisfied by *telemetry.State.
type TelemetrySource interface {
	Latest(maxAge time.Duration) (model.TelemetryData, error)
}
