package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldrobotics/mission-orchestrator/model"
)

// OpsCollector bundles the Prometheus metrics for the mission
// orchestrator: mission lifecycle counters, planner latency, and
// telemetry ingestion outcomes. It satisfies ops.Metrics and
// telemetry.PacketRecorder.
type OpsCollector struct {
	gatherer prometheus.Gatherer

	MissionsSubmitted prometheus.Counter
	MissionsActive    prometheus.Gauge
	MissionsFinished  *prometheus.CounterVec

	PlannerDuration  *prometheus.HistogramVec
	WaypointsReached prometheus.Counter
	TelemetryPackets *prometheus.CounterVec
}

// NewOpsCollector registers the orchestrator metrics against the
// provided registerer, defaulting to the global Prometheus registry when
// nil. Re-registration returns the existing collectors.
func NewOpsCollector(reg prometheus.Registerer) (*OpsCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	submitted, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "missions_submitted_total",
		Help: "Total number of missions accepted for execution.",
	}), "missions_submitted_total")
	if err != nil {
		return nil, err
	}
	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "missions_active",
		Help: "Number of missions currently running an explorer/inspector pair.",
	}), "missions_active")
	if err != nil {
		return nil, err
	}
	finished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "missions_finished_total",
		Help: "Total number of missions that reached a terminal status, labeled by status.",
	}, []string{"status"})
	finished, err = registerCounterVec(reg, finished, "missions_finished_total")
	if err != nil {
		return nil, err
	}

	plannerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planner_duration_seconds",
		Help:    "Route planning latency in seconds, labeled by strategy.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}, []string{"strategy"})
	plannerDuration, err = registerHistogramVec(reg, plannerDuration, "planner_duration_seconds")
	if err != nil {
		return nil, err
	}

	waypoints, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "waypoints_reached_total",
		Help: "Total waypoints the ground inspector has reached across all missions.",
	}), "waypoints_reached_total")
	if err != nil {
		return nil, err
	}

	packets := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "telemetry_packets_total",
		Help: "Telemetry packets handled, labeled by decode result.",
	}, []string{"result"})
	packets, err = registerCounterVec(reg, packets, "telemetry_packets_total")
	if err != nil {
		return nil, err
	}

	return &OpsCollector{
		gatherer:          gatherer,
		MissionsSubmitted: submitted,
		MissionsActive:    active,
		MissionsFinished:  finished,
		PlannerDuration:   plannerDuration,
		WaypointsReached:  waypoints,
		TelemetryPackets:  packets,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *OpsCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// MissionSubmitted counts one accepted mission.
func (c *OpsCollector) MissionSubmitted() {
	if c == nil {
		return
	}
	c.MissionsSubmitted.Inc()
}

// MissionStarted marks one mission entering its worker phase.
func (c *OpsCollector) MissionStarted() {
	if c == nil {
		return
	}
	c.MissionsActive.Inc()
}

// MissionFinished records a terminal status and releases the active slot.
func (c *OpsCollector) MissionFinished(status model.OperationStatus) {
	if c == nil {
		return
	}
	c.MissionsActive.Dec()
	c.MissionsFinished.WithLabelValues(status.String()).Inc()
}

// WaypointReached counts one inspected waypoint.
func (c *OpsCollector) WaypointReached() {
	if c == nil {
		return
	}
	c.WaypointsReached.Inc()
}

// RecordTelemetryPacket satisfies telemetry.PacketRecorder.
func (c *OpsCollector) RecordTelemetryPacket(result string) {
	if c == nil {
		return
	}
	c.TelemetryPackets.WithLabelValues(result).Inc()
}

// ObservePlanner records one planning run's latency for a strategy.
func (c *OpsCollector) ObservePlanner(strategy string, seconds float64) {
	if c == nil {
		return
	}
	c.PlannerDuration.WithLabelValues(strategy).Observe(seconds)
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
