package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fieldrobotics/mission-orchestrator/model"
)

// slowSolver blocks until its context is done.
type slowSolver struct{}

func (slowSolver) Solve(ctx context.Context, points []model.Position) ([]int, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestOptimizingPlannerEmptyTargets(t *testing.T) {
	p := OptimizingPlanner{Solver: HeldKarpSolver{}}
	_, err := p.Plan(context.Background(), model.Position{}, nil)
	if !errors.Is(err, ErrNoTargets) {
		t.Fatalf("expected ErrNoTargets, got %v", err)
	}
}

func TestOptimizingPlannerTimeout(t *testing.T) {
	p := OptimizingPlanner{Solver: slowSolver{}, Timeout: 10 * time.Millisecond}
	_, err := p.Plan(context.Background(), model.Position{}, []model.PointOfInterest{poi(1, 0)})
	if !errors.Is(err, ErrInfeasibleOrTimeout) {
		t.Fatalf("expected ErrInfeasibleOrTimeout, got %v", err)
	}
}

func TestOptimizingPlannerCallerCancellationWins(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := OptimizingPlanner{Solver: slowSolver{}, Timeout: time.Second}
	_, err := p.Plan(ctx, model.Position{}, []model.PointOfInterest{poi(1, 0)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOptimizingPlannerRefusesLargeInstances(t *testing.T) {
	targets := make([]model.PointOfInterest, maxExactTargets+1)
	for i := range targets {
		targets[i] = poi(float64(i), 0)
	}
	p := OptimizingPlanner{Solver: HeldKarpSolver{}, Timeout: time.Second}
	_, err := p.Plan(context.Background(), model.Position{}, targets)
	if !errors.Is(err, ErrInfeasibleOrTimeout) {
		t.Fatalf("expected ErrInfeasibleOrTimeout for oversized instance, got %v", err)
	}
}

func TestHeldKarpFindsOptimalOpenPath(t *testing.T) {
	// Points on a line: the only optimal open path from 0 visits them in
	// increasing X order (total 9); any other order backtracks.
	targets := []model.PointOfInterest{poi(9, 0), poi(1, 0), poi(4, 0), poi(6, 0)}
	p := OptimizingPlanner{Solver: HeldKarpSolver{}, Timeout: time.Second}
	route, err := p.Plan(context.Background(), model.Position{}, targets)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := []model.Position{{X: 1}, {X: 4}, {X: 6}, {X: 9}}
	if len(route) != len(want) {
		t.Fatalf("route length %d, want %d", len(route), len(want))
	}
	for i := range want {
		if route[i] != want[i] {
			t.Fatalf("route[%d] = %+v, want %+v", i, route[i], want[i])
		}
	}
}

func TestHeldKarpSingleTarget(t *testing.T) {
	order, err := HeldKarpSolver{}.Solve(context.Background(), []model.Position{{}, {X: 3}})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(order) != 1 || order[0] != 1 {
		t.Fatalf("order = %v, want [1]", order)
	}
}
