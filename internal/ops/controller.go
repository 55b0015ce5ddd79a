package ops

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/fieldrobotics/mission-orchestrator/core"
	"github.com/fieldrobotics/mission-orchestrator/internal/logging"
	"github.com/fieldrobotics/mission-orchestrator/internal/viz"
	"github.com/fieldrobotics/mission-orchestrator/model"
	"github.com/fieldrobotics/mission-orchestrator/timectrl"
)

// ErrUnknownMission is returned for lookups and cancels of mission IDs
// the controller has never seen.
var ErrUnknownMission = errors.New("unknown mission")

// ErrShuttingDown rejects submissions after Shutdown has begun.
var ErrShuttingDown = errors.New("controller shutting down")

// Archiver persists finished missions; satisfied by *archive.Store.
type Archiver interface {
	RecordMission(ctx context.Context, m model.Mission) error
}

// Metrics receives controller-level counters; satisfied by
// *observability.OpsCollector.
type Metrics interface {
	MissionSubmitted()
	MissionStarted()
	MissionFinished(status model.OperationStatus)
	WaypointReached()
}

// AgentSet bundles the external capabilities one mission needs. The
// implementations must tolerate concurrent missions; each mission uses
// them from its own goroutines.
type AgentSet struct {
	Camera   Camera
	Detector Detector
	Surveyor Surveyor
	Sensor   Sensor
}

// ControllerConfig carries the orchestration tunables.
type ControllerConfig struct {
	// MaxConcurrent bounds simultaneously active explorer/inspector pairs.
	MaxConcurrent int
	// MergeEpsilon is the detection dedup distance in metres.
	MergeEpsilon float64
	// TelemetryMaxAge is the explorer's freshness budget per sample.
	TelemetryMaxAge time.Duration
	// RobotSpeed is the ground agent's constant speed in m/s.
	RobotSpeed float64
	// FailurePolicy decides what one mission's failure does to the rest.
	FailurePolicy FailurePolicy
}

// ControllerDeps carries the controller's collaborators. Nil Visualizer,
// Archive, Metrics, Tracer, and Log fields default to no-ops.
type ControllerDeps struct {
	Bus        *Bus
	Clock      timectrl.TickSource
	Telemetry  TelemetrySource
	Agents     AgentSet
	Planner    core.Planner
	Fallback   core.Planner
	Visualizer viz.Publisher
	Archive    Archiver
	Metrics    Metrics
	Tracer     trace.Tracer
	Log        logging.Logger
}

// Controller owns the mission registry and runs one explorer/inspector
// worker pair per admitted mission. All Mission mutation happens here,
// under the controller lock, driven by bus events; workers communicate
// exclusively through the bus.
type Controller struct {
	cfg  ControllerConfig
	deps ControllerDeps

	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted
	queue  chan struct{}
	wg     sync.WaitGroup

	mu       sync.RWMutex
	missions map[string]*model.Mission
	cancels  map[string]context.CancelFunc
}

// NewController builds a controller ready to accept submissions.
func NewController(cfg ControllerConfig, deps ControllerDeps) *Controller {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if deps.Bus == nil {
		deps.Bus = NewBus()
	}
	if deps.Visualizer == nil {
		deps.Visualizer = viz.Noop{}
	}
	if deps.Archive == nil {
		deps.Archive = noopArchiver{}
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("ops")
	}
	if deps.Log == nil {
		deps.Log = logging.Noop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:      cfg,
		deps:     deps,
		ctx:      ctx,
		cancel:   cancel,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		queue:    make(chan struct{}, cfg.MaxConcurrent*5),
		missions: make(map[string]*model.Mission),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Submit admits a mission if an active slot or queue slot is free and
// returns its ID. The mission starts as soon as a concurrency slot
// opens. Returns ErrCapacityExceeded when the admission queue is full.
func (c *Controller) Submit(spec model.MissionSpec) (string, error) {
	if c.ctx.Err() != nil {
		return "", ErrShuttingDown
	}
	select {
	case c.queue <- struct{}{}:
	default:
		return "", ErrCapacityExceeded
	}

	id := uuid.NewString()
	m := &model.Mission{
		ID:        id,
		Spec:      spec,
		Status:    model.StatusIdle,
		CreatedAt: time.Now(),
	}
	c.mu.Lock()
	c.missions[id] = m
	c.mu.Unlock()

	c.deps.Metrics.MissionSubmitted()
	c.deps.Log.Info(c.ctx, "mission submitted",
		logging.String("mission_id", id), logging.String("name", spec.Name))

	c.wg.Add(1)
	go c.runMission(id)
	return id, nil
}

func (c *Controller) runMission(id string) {
	defer c.wg.Done()
	defer func() { <-c.queue }()

	if err := c.sem.Acquire(c.ctx, 1); err != nil {
		c.finalize(id, model.StatusAborted, "shutdown before start", false, nil)
		return
	}
	defer c.sem.Release(1)

	c.mu.Lock()
	m := c.missions[id]
	if m == nil || m.Status.Terminal() {
		c.mu.Unlock()
		// Cancelled while queued; record the outcome and never start.
		c.finalize(id, model.StatusAborted, "cancelled before start", false, nil)
		return
	}
	mctx, mcancel := context.WithCancel(c.ctx)
	c.cancels[id] = mcancel
	spec := m.Spec
	c.mu.Unlock()
	defer mcancel()
	defer func() {
		c.mu.Lock()
		delete(c.cancels, id)
		c.mu.Unlock()
	}()

	sctx, span := c.deps.Tracer.Start(mctx, "mission.run",
		trace.WithAttributes(
			attribute.String("mission.id", id),
			attribute.String("mission.name", spec.Name),
		))
	defer span.End()

	// The controller's bus handler goes in before the workers exist so
	// no event can slip past the registry.
	c.deps.Bus.Subscribe(id, c.handleEvent)

	explorer := NewExplorerWorker(id, spec, c.deps.Bus, c.deps.Telemetry,
		c.deps.Agents.Camera, c.deps.Agents.Detector, c.deps.Agents.Surveyor,
		c.cfg.MergeEpsilon, c.cfg.TelemetryMaxAge, c.deps.Clock, c.deps.Log)
	inspector := NewInspectorWorker(id, spec, c.deps.Bus,
		c.deps.Planner, c.deps.Fallback, c.deps.Agents.Sensor,
		c.cfg.RobotSpeed, c.deps.Clock, c.deps.Log)

	c.deps.Metrics.MissionStarted()
	c.markExploring(id)

	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error { return explorer.Run(gctx) })
	g.Go(func() error { return inspector.Run(gctx) })
	err := g.Wait()

	switch {
	case err == nil:
		c.finalize(id, model.StatusCompleted, "", true, span)
	case errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled):
		c.finalize(id, model.StatusAborted, "cancelled", true, span)
	default:
		c.finalize(id, model.StatusFailed, err.Error(), true, span)
	}
}

// markExploring moves a freshly admitted mission into its survey phase.
func (c *Controller) markExploring(id string) {
	now := time.Now()
	c.mu.Lock()
	m := c.missions[id]
	if m != nil && m.Status.CanTransition(model.StatusExploring) {
		m.Status = model.StatusExploring
		m.ExplorationStarted = now
	}
	var snap viz.Snapshot
	if m != nil {
		snap = viz.FromMission(m, now)
	}
	c.mu.Unlock()
	if m != nil {
		c.deps.Visualizer.PublishSnapshot(snap)
	}
}

// finalize drives the mission to a terminal status if event handling has
// not already done so, then records, archives, and applies the failure
// policy. started reports whether the worker phase ever ran; a mission
// that never started still balances the active gauge.
func (c *Controller) finalize(id string, status model.OperationStatus, reason string, started bool, span trace.Span) {
	now := time.Now()
	c.mu.Lock()
	m := c.missions[id]
	if m == nil {
		c.mu.Unlock()
		return
	}
	if !m.Status.Terminal() {
		if status == model.StatusCompleted {
			advanceLocked(m, model.StatusCompleted)
		} else {
			m.Status = status
			m.FailReason = reason
		}
	}
	final := *m
	final.Points = append([]model.PointOfInterest(nil), m.Points...)
	final.Route = append([]model.Position(nil), m.Route...)
	snap := viz.FromMission(m, now)
	c.mu.Unlock()

	if !started {
		c.deps.Metrics.MissionStarted()
	}
	c.deps.Metrics.MissionFinished(final.Status)
	if span != nil {
		span.SetAttributes(attribute.String("mission.status", final.Status.String()))
	}
	c.deps.Visualizer.PublishSnapshot(snap)
	c.deps.Bus.DropTopic(id)

	actx, acancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer acancel()
	if err := c.deps.Archive.RecordMission(actx, final); err != nil {
		c.deps.Log.Error(actx, "mission archive failed",
			logging.String("mission_id", id), logging.Err(err))
	}

	c.deps.Log.Info(c.ctx, "mission finished",
		logging.String("mission_id", id),
		logging.String("status", final.Status.String()),
		logging.Int("points", len(final.Points)))

	if final.Status == model.StatusFailed && c.cfg.FailurePolicy == FailureAbort {
		c.abortOthers(id)
	}
}

// handleEvent is the controller's bus handler: the single place where
// operation events become Mission mutations.
func (c *Controller) handleEvent(evt Event) {
	c.mu.Lock()
	m, ok := c.missions[evt.MissionID]
	if !ok {
		c.mu.Unlock()
		return
	}
	switch evt.Kind {
	case EventExplorationCompleted:
		for _, p := range evt.Points {
			m.MergePoint(p, c.cfg.MergeEpsilon)
		}
		m.ExplorationFinished = evt.Timestamp
		advanceLocked(m, model.StatusPlanning)
	case EventExplorationFailed:
		failLocked(m, evt.Reason)
	case EventRouteComputed:
		m.Route = append([]model.Position(nil), evt.Route...)
		m.InspectionStarted = evt.Timestamp
		advanceLocked(m, model.StatusInspecting)
	case EventWaypointReached:
		c.markInspectedLocked(m, evt)
		c.deps.Metrics.WaypointReached()
	case EventInspectionCompleted:
		m.InspectionFinished = evt.Timestamp
		advanceLocked(m, model.StatusCompleted)
	case EventMissionFailed:
		failLocked(m, evt.Reason)
	}
	snap := viz.FromMission(m, evt.Timestamp)
	c.mu.Unlock()
	c.deps.Visualizer.PublishSnapshot(snap)
}

// markInspectedLocked stamps the point matching the reached waypoint.
func (c *Controller) markInspectedLocked(m *model.Mission, evt Event) {
	tolerance := c.cfg.MergeEpsilon
	if tolerance < 1e-6 {
		tolerance = 1e-6
	}
	best := -1
	bestDist := tolerance
	for i := range m.Points {
		if !m.Points[i].InspectedAt.IsZero() {
			continue
		}
		if d := m.Points[i].Position.DistanceTo(evt.Position); d <= bestDist {
			best, bestDist = i, d
		}
	}
	if best >= 0 {
		m.Points[best].InspectedAt = evt.Timestamp
		m.Points[best].Reading = evt.Reading
	}
}

// advanceLocked steps the status forward one legal transition at a time
// until it reaches target; used so a zero-point mission can pass through
// Inspecting on its way to Completed.
func advanceLocked(m *model.Mission, target model.OperationStatus) {
	for m.Status < target && m.Status.CanTransition(m.Status+1) {
		m.Status = m.Status + 1
	}
}

func failLocked(m *model.Mission, reason string) {
	if m.Status.Terminal() {
		return
	}
	m.Status = model.StatusFailed
	m.FailReason = reason
}

// Cancel requests cooperative cancellation of one mission. Cancelling a
// terminal mission is a no-op.
func (c *Controller) Cancel(id string) error {
	c.mu.Lock()
	m, ok := c.missions[id]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownMission
	}
	if m.Status.Terminal() {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancels[id]
	if cancel == nil {
		// Still queued; mark it aborted so the runner exits at admission.
		m.Status = model.StatusAborted
		m.FailReason = "cancelled before start"
	}
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// abortOthers cancels every active mission except the one that failed.
func (c *Controller) abortOthers(exceptID string) {
	c.mu.RLock()
	cancels := make([]context.CancelFunc, 0, len(c.cancels))
	for id, cancel := range c.cancels {
		if id != exceptID {
			cancels = append(cancels, cancel)
		}
	}
	c.mu.RUnlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// Mission returns a copy of one mission record.
func (c *Controller) Mission(id string) (model.Mission, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.missions[id]
	if !ok {
		return model.Mission{}, ErrUnknownMission
	}
	out := *m
	out.Points = append([]model.PointOfInterest(nil), m.Points...)
	out.Route = append([]model.Position(nil), m.Route...)
	return out, nil
}

// Missions returns copies of every known mission record.
func (c *Controller) Missions() []model.Mission {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Mission, 0, len(c.missions))
	for _, m := range c.missions {
		cp := *m
		cp.Points = append([]model.PointOfInterest(nil), m.Points...)
		cp.Route = append([]model.Position(nil), m.Route...)
		out = append(out, cp)
	}
	return out
}

// OverallStatus folds all mission statuses into the operation status.
func (c *Controller) OverallStatus() model.OperationStatus {
	c.mu.RLock()
	statuses := make([]model.OperationStatus, 0, len(c.missions))
	for _, m := range c.missions {
		statuses = append(statuses, m.Status)
	}
	c.mu.RUnlock()
	return AggregateStatus(statuses)
}

// Shutdown cancels all active missions and waits for their runners to
// drain, or until ctx expires.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.cancel()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type noopArchiver struct{}

func (noopArchiver) RecordMission(context.Context, model.Mission) error { return nil }

type noopMetrics struct{}

func (noopMetrics) MissionSubmitted()                     {}
func (noopMetrics) MissionStarted()                       {}
func (noopMetrics) MissionFinished(model.OperationStatus) {}
func (noopMetrics) WaypointReached()                      {}
