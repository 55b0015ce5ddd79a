package core

import (
	"context"
	"errors"

	"github.com/fieldrobotics/mission-orchestrator/model"
)

var (
	// ErrNoTargets indicates a plan was requested over an empty target set.
	ErrNoTargets = errors.New("no targets to plan")
	// ErrInfeasibleOrTimeout indicates the optimizing solver could not
	// produce an order within its wall-clock budget. Callers recover by
	// falling back to the nearest-neighbor strategy.
	ErrInfeasibleOrTimeout = errors.New("route optimization infeasible or timed out")
)

// Planner computes an ordered visiting route over points of interest.
// The returned sequence is a permutation of the target positions; the
// start position itself is not included.
type Planner interface {
	Plan(ctx context.Context, start model.Position, targets []model.PointOfInterest) ([]model.Position, error)
}

// NearestNeighborPlanner is the greedy baseline strategy: from the current
// point, always visit the closest remaining target next. Deterministic,
// O(n²), always succeeds for nonempty input, not guaranteed optimal.
// Distance ties keep the earliest target in input order.
type NearestNeighborPlanner struct{}

func (NearestNeighborPlanner) Plan(ctx context.Context, start model.Position, targets []model.PointOfInterest) ([]model.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	remaining := make([]model.Position, len(targets))
	for i, t := range targets {
		remaining[i] = t.Position
	}

	route := make([]model.Position, 0, len(remaining))
	current := start
	for len(remaining) > 0 {
		best := 0
		bestDist := current.DistanceTo(remaining[0])
		for i := 1; i < len(remaining); i++ {
			if d := current.DistanceTo(remaining[i]); d < bestDist {
				best, bestDist = i, d
			}
		}
		current = remaining[best]
		route = append(route, current)
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return route, nil
}
