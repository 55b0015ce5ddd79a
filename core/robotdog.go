package core

import "github.com/fieldrobotics/mission-orchestrator/model"

// MotionSignal is emitted by RobotDog.Advance when a step crosses a
// waypoint or drains the queue.
type MotionSignal int

const (
	// SignalWaypointReached fires when a step lands exactly on the head waypoint.
	SignalWaypointReached MotionSignal = iota
	// SignalPathCompleted fires in the same step that pops the last waypoint.
	SignalPathCompleted
)

// RobotDog is the ground inspector's motion simulator: a constant-speed
// follower of a FIFO waypoint queue. It has no internal concurrency; an
// external fixed-rate ticker drives Advance.
type RobotDog struct {
	position  model.Position
	waypoints []model.Position
	speed     float64
}

// NewRobotDog creates a robot at start moving at speed metres per second.
func NewRobotDog(start model.Position, speed float64) *RobotDog {
	return &RobotDog{position: start, speed: speed}
}

// Position returns the robot's current position.
func (r *RobotDog) Position() model.Position { return r.position }

// Remaining returns the number of queued waypoints.
func (r *RobotDog) Remaining() int { return len(r.waypoints) }

// Enqueue appends waypoints to the back of the queue.
func (r *RobotDog) Enqueue(wps ...model.Position) {
	r.waypoints = append(r.waypoints, wps...)
}

// ClearPath drops all queued waypoints without moving the robot.
func (r *RobotDog) ClearPath() { r.waypoints = nil }

// Advance moves the robot toward the head waypoint by speed*dt. When the
// remaining distance fits within the step, the position snaps exactly onto
// the waypoint, the waypoint is popped, and SignalWaypointReached is
// returned; leftover step budget is discarded, so at most one waypoint is
// consumed per call. SignalPathCompleted accompanies the pop that empties
// the queue. Advancing with an empty queue is a no-op.
func (r *RobotDog) Advance(dt float64) []MotionSignal {
	if len(r.waypoints) == 0 || dt <= 0 {
		return nil
	}

	head := r.waypoints[0]
	budget := r.speed * dt
	remaining := r.position.DistanceTo(head)

	if remaining > budget {
		frac := budget / remaining
		r.position = model.Position{
			X: r.position.X + (head.X-r.position.X)*frac,
			Y: r.position.Y + (head.Y-r.position.Y)*frac,
			Z: r.position.Z + (head.Z-r.position.Z)*frac,
		}
		return nil
	}

	r.position = head
	r.waypoints = r.waypoints[1:]
	signals := []MotionSignal{SignalWaypointReached}
	if len(r.waypoints) == 0 {
		signals = append(signals, SignalPathCompleted)
	}
	return signals
}
