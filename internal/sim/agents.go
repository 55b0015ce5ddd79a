// Package sim provides in-process stand-ins for the field hardware: a
// drone flying a lawnmower sweep, a detector over a hidden point field,
// and a ground probe. The operator wires these in when no real agents
// are attached, so the whole orchestration loop can run end to end on a
// laptop.
package sim

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/fieldrobotics/mission-orchestrator/internal/telemetry"
	"github.com/fieldrobotics/mission-orchestrator/model"
)

// World holds the hidden points of interest a simulated mission is
// supposed to find.
type World struct {
	mu   sync.RWMutex
	pois []model.Position
}

// NewWorld scatters n points uniformly over the region. The seed makes
// runs reproducible.
func NewWorld(seed int64, region model.Region, n int) *World {
	rng := rand.New(rand.NewSource(seed))
	w := &World{}
	for i := 0; i < n; i++ {
		w.pois = append(w.pois, model.Position{
			X: region.Origin.X + rng.Float64()*region.Width,
			Y: region.Origin.Y + rng.Float64()*region.Height,
		})
	}
	return w
}

// Points returns a copy of the hidden point field.
func (w *World) Points() []model.Position {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]model.Position(nil), w.pois...)
}

// Drone is the simulated aerial agent. It satisfies the surveyor and
// camera capabilities and feeds the telemetry cell directly, playing the
// role the MQTT listener plays with real hardware. One drone flies one
// mission at a time; Begin resets any sweep in progress.
type Drone struct {
	mu      sync.Mutex
	state   *telemetry.State
	pose    model.Pose
	battery model.Battery
	path    []model.Position
	idx     int
	stepLen float64
	rowGap  float64
}

// NewDrone creates a drone that advances stepLen metres per survey step
// and sweeps rows rowGap metres apart.
func NewDrone(state *telemetry.State, stepLen, rowGap float64) *Drone {
	return &Drone{
		state:   state,
		stepLen: stepLen,
		rowGap:  rowGap,
		battery: model.NewBattery(4.0, 3.0, 4.2),
	}
}

// Begin lays out a lawnmower sweep over the region and publishes the
// starting pose.
func (d *Drone) Begin(_ context.Context, region model.Region) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.path = d.path[:0]
	rows := int(math.Ceil(region.Height/d.rowGap)) + 1
	for r := 0; r < rows; r++ {
		y := region.Origin.Y + math.Min(float64(r)*d.rowGap, region.Height)
		left := model.Position{X: region.Origin.X, Y: y, Z: 10}
		right := model.Position{X: region.Origin.X + region.Width, Y: y, Z: 10}
		if r%2 == 0 {
			d.path = append(d.path, left, right)
		} else {
			d.path = append(d.path, right, left)
		}
	}
	d.idx = 0
	if len(d.path) > 0 {
		d.pose.Position = d.path[0]
	}
	d.publishLocked()
	return nil
}

// Step moves the drone along the sweep and reports completion when the
// last corner is reached.
func (d *Drone) Step(_ context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.idx >= len(d.path) {
		return true, nil
	}
	target := d.path[d.idx]
	remaining := d.pose.Position.DistanceTo(target)
	if remaining <= d.stepLen {
		d.pose.Position = target
		d.idx++
	} else {
		frac := d.stepLen / remaining
		d.pose.Position = model.Position{
			X: d.pose.Position.X + (target.X-d.pose.Position.X)*frac,
			Y: d.pose.Position.Y + (target.Y-d.pose.Position.Y)*frac,
			Z: d.pose.Position.Z + (target.Z-d.pose.Position.Z)*frac,
		}
	}
	d.publishLocked()
	return d.idx >= len(d.path), nil
}

// Frame returns an empty frame stamped now; the simulated detector works
// from the pose, not pixels.
func (d *Drone) Frame(context.Context) (model.Frame, error) {
	return model.Frame{Timestamp: time.Now()}, nil
}

func (d *Drone) publishLocked() {
	if d.state == nil {
		return
	}
	d.state.Publish(model.TelemetryData{
		Pose:      d.pose,
		Battery:   d.battery,
		Timestamp: time.Now(),
	})
}

// Detector reveals the world's hidden points that lie within the sensing
// radius of the capture pose.
type Detector struct {
	World  *World
	Radius float64
}

func (d Detector) Detect(_ model.Frame, pose model.Pose) ([]model.PointOfInterest, error) {
	ground := model.Position{X: pose.Position.X, Y: pose.Position.Y}
	var found []model.PointOfInterest
	for _, p := range d.World.Points() {
		if ground.DistanceTo(p) <= d.Radius {
			found = append(found, model.PointOfInterest{Position: p})
		}
	}
	return found, nil
}

// Probe is the simulated ground sensor: a deterministic reading derived
// from the sampled position, so repeated runs archive identical values.
type Probe struct {
	Base float64
}

func (p Probe) Sample(_ context.Context, at model.Position) (float64, error) {
	return p.Base + 2*math.Sin(at.X*0.7) + math.Cos(at.Y*0.3), nil
}
