package model

import "math"

// Position is a point in the local Cartesian frame shared by both agents,
// in metres. Positions are value types: compare by field value, replace
// wholesale on update.
type Position struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two positions.
func (p Position) DistanceTo(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	dz := p.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Orientation holds attitude angles in degrees.
type Orientation struct {
	Roll, Pitch, Yaw float64
}

// Pose combines a position with an orientation.
type Pose struct {
	Position    Position
	Orientation Orientation
}

// Region describes the rectangular survey area assigned to a mission,
// anchored at Origin and extending Width along X and Height along Y.
type Region struct {
	Origin Position
	Width  float64
	Height float64
}
