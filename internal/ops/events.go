package ops

import (
	"time"

	"github.com/fieldrobotics/mission-orchestrator/model"
)

// EventKind discriminates OperationEvent variants.
type EventKind int

const (
	EventExplorationCompleted EventKind = iota
	EventExplorationFailed
	EventRouteComputed
	EventWaypointReached
	EventInspectionCompleted
	EventMissionFailed
)

func (k EventKind) String() string {
	switch k {
	case EventExplorationCompleted:
		return "exploration_completed"
	case EventExplorationFailed:
		return "exploration_failed"
	case EventRouteComputed:
		return "route_computed"
	case EventWaypointReached:
		return "waypoint_reached"
	case EventInspectionCompleted:
		return "inspection_completed"
	case EventMissionFailed:
		return "mission_failed"
	default:
		return "unknown"
	}
}

// Event is one operation event on a mission's topic. Only the fields
// relevant to Kind are populated.
type Event struct {
	Kind      EventKind
	MissionID string
	Timestamp time.Time

	// Points carries the final detections on ExplorationCompleted.
	Points []model.PointOfInterest
	// Route carries the planned order on RouteComputed.
	Route []model.Position
	// WaypointIndex and Position identify the reached waypoint, and
	// Reading is the inspector's sensor sample there.
	WaypointIndex int
	Position      model.Position
	Reading       float64
	// Reason explains ExplorationFailed / MissionFailed.
	Reason string
}
