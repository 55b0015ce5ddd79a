package observability

import (
	"context"
	"time"

	"github.com/fieldrobotics/mission-orchestrator/core"
	"github.com/fieldrobotics/mission-orchestrator/model"
)

// InstrumentedPlanner wraps a route planner with latency observation.
type InstrumentedPlanner struct {
	Inner     core.Planner
	Strategy  string
	Collector *OpsCollector
}

func (p InstrumentedPlanner) Plan(ctx context.Context, start model.Position, targets []model.PointOfInterest) ([]model.Position, error) {
	began := time.Now()
	route, err := p.Inner.Plan(ctx, start, targets)
	p.Collector.ObservePlanner(p.Strategy, time.Since(began).Seconds())
	return route, err
}
