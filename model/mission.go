package model

import "time"

// OperationStatus tracks a mission (or the whole operation) through its
// lifecycle. Forward progression is monotonic; Failed and Aborted are
// reachable from any non-terminal status; terminal statuses never change.
type OperationStatus int

const (
	StatusIdle OperationStatus = iota
	StatusExploring
	StatusPlanning
	StatusInspecting
	StatusCompleted
	StatusFailed
	StatusAborted
)

func (s OperationStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusExploring:
		return "exploring"
	case StatusPlanning:
		return "planning"
	case StatusInspecting:
		return "inspecting"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is allowed out of s.
func (s OperationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusAborted
}

// CanTransition reports whether moving from s to next is legal: one step
// forward along Idle→Exploring→Planning→Inspecting→Completed, or to
// Failed/Aborted from any non-terminal status.
func (s OperationStatus) CanTransition(next OperationStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusFailed || next == StatusAborted {
		return true
	}
	return next == s+1 && next <= StatusCompleted
}

// PointOfInterest is a location flagged during exploration for later
// inspection. InspectedAt and Reading are written once by the inspector
// when the point is reached; zero values mean not yet inspected.
type PointOfInterest struct {
	ID          string
	Position    Position
	DetectedAt  time.Time
	InspectedAt time.Time
	Reading     float64
}

// MissionSpec describes one exploration+inspection assignment.
type MissionSpec struct {
	Name   string
	Base   Position
	Survey Region
}

// Mission is the controller-owned record of one assignment. Workers never
// write it: they publish bus events, and the controller applies every
// field mutation under its own lock while handling them.
type Mission struct {
	ID     string
	Spec   MissionSpec
	Status OperationStatus

	Points []PointOfInterest
	Route  []Position

	CreatedAt           time.Time
	ExplorationStarted  time.Time
	ExplorationFinished time.Time
	InspectionStarted   time.Time
	InspectionFinished  time.Time

	// FailReason is set alongside StatusFailed/StatusAborted.
	FailReason string
}

// MergePoint appends p unless it lies within epsilon of an already known
// point, in which case p is treated as a duplicate detection and dropped.
// Returns true when the point was added.
func (m *Mission) MergePoint(p PointOfInterest, epsilon float64) bool {
	for _, existing := range m.Points {
		if existing.Position.DistanceTo(p.Position) < epsilon {
			return false
		}
	}
	m.Points = append(m.Points, p)
	return true
}
