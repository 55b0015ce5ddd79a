package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fieldrobotics/mission-orchestrator/model"
)

// RouteSolver solves the open-path minimum-distance visiting-order problem:
// points[0] is the fixed start, the route visits every other point exactly
// once and does not return. Solve returns the visiting order as indices
// into points (start excluded). The solver is treated as a black box; the
// system stays correct when it fails or runs out of time.
type RouteSolver interface {
	Solve(ctx context.Context, points []model.Position) ([]int, error)
}

// OptimizingPlanner delegates route computation to a RouteSolver under a
// wall-clock budget. Any solver failure, including the deadline, surfaces
// as ErrInfeasibleOrTimeout; it never falls back internally.
type OptimizingPlanner struct {
	Solver  RouteSolver
	Timeout time.Duration
}

func (p OptimizingPlanner) Plan(ctx context.Context, start model.Position, targets []model.PointOfInterest) ([]model.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	if p.Solver == nil {
		return nil, fmt.Errorf("%w: no solver configured", ErrInfeasibleOrTimeout)
	}

	points := make([]model.Position, 0, len(targets)+1)
	points = append(points, start)
	for _, t := range targets {
		points = append(points, t.Position)
	}

	solveCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	order, err := p.Solver.Solve(solveCtx, points)
	if err != nil {
		// Caller cancellation is not a solver failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrInfeasibleOrTimeout, err)
	}
	if len(order) != len(targets) {
		return nil, fmt.Errorf("%w: solver returned %d of %d targets", ErrInfeasibleOrTimeout, len(order), len(targets))
	}

	route := make([]model.Position, len(order))
	for i, idx := range order {
		if idx < 1 || idx >= len(points) {
			return nil, fmt.Errorf("%w: solver returned invalid index %d", ErrInfeasibleOrTimeout, idx)
		}
		route[i] = points[idx]
	}
	return route, nil
}

// maxExactTargets bounds the Held-Karp subset table. Beyond this the
// exact solver refuses the instance instead of burning the deadline.
const maxExactTargets = 16

var errTooManyTargets = errors.New("instance too large for exact solve")

// HeldKarpSolver finds the optimal open path with the Held-Karp dynamic
// program over target subsets, O(n²·2ⁿ). The context deadline is checked
// once per subset row so a near-limit instance still aborts promptly.
type HeldKarpSolver struct{}

func (HeldKarpSolver) Solve(ctx context.Context, points []model.Position) ([]int, error) {
	n := len(points) - 1 // targets, excluding the start at index 0
	if n <= 0 {
		return nil, errors.New("no targets")
	}
	if n > maxExactTargets {
		return nil, fmt.Errorf("%w: %d targets", errTooManyTargets, n)
	}

	dist := make([][]float64, n+1)
	for i := range dist {
		dist[i] = make([]float64, n+1)
		for j := range dist[i] {
			dist[i][j] = points[i].DistanceTo(points[j])
		}
	}

	size := 1 << n
	// cost[mask][j]: cheapest path from start visiting exactly the targets
	// in mask and ending at target j (0-based target index, point j+1).
	cost := make([][]float64, size)
	parent := make([][]int8, size)
	for mask := 1; mask < size; mask++ {
		cost[mask] = make([]float64, n)
		parent[mask] = make([]int8, n)
		for j := range cost[mask] {
			cost[mask][j] = math.Inf(1)
			parent[mask][j] = -1
		}
	}

	for j := 0; j < n; j++ {
		cost[1<<j][j] = dist[0][j+1]
	}

	for mask := 1; mask < size; mask++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := 0; j < n; j++ {
			if mask&(1<<j) == 0 || math.IsInf(cost[mask][j], 1) {
				continue
			}
			for k := 0; k < n; k++ {
				if mask&(1<<k) != 0 {
					continue
				}
				next := mask | (1 << k)
				if c := cost[mask][j] + dist[j+1][k+1]; c < cost[next][k] {
					cost[next][k] = c
					parent[next][k] = int8(j)
				}
			}
		}
	}

	full := size - 1
	end := 0
	for j := 1; j < n; j++ {
		if cost[full][j] < cost[full][end] {
			end = j
		}
	}

	order := make([]int, n)
	mask, j := full, end
	for i := n - 1; i >= 0; i-- {
		order[i] = j + 1
		prev := parent[mask][j]
		mask &^= 1 << j
		if prev < 0 {
			break
		}
		j = int(prev)
	}
	return order, nil
}
