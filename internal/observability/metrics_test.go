package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fieldrobotics/mission-orchestrator/model"
)

func TestNewOpsCollectorRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := NewOpsCollector(reg)
	if err != nil {
		t.Fatalf("NewOpsCollector: %v", err)
	}
	second, err := NewOpsCollector(reg)
	if err != nil {
		t.Fatalf("NewOpsCollector second registration: %v", err)
	}
	if first.MissionsSubmitted != second.MissionsSubmitted {
		t.Fatal("re-registration did not return the existing counter")
	}
}

func TestOpsCollectorLifecycleCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewOpsCollector(reg)
	if err != nil {
		t.Fatalf("NewOpsCollector: %v", err)
	}

	c.MissionSubmitted()
	c.MissionStarted()
	c.MissionFinished(model.StatusCompleted)
	c.WaypointReached()
	c.RecordTelemetryPacket("ok")
	c.RecordTelemetryPacket("malformed")
	c.ObservePlanner("optimized", 0.02)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"missions_submitted_total",
		"missions_active",
		"missions_finished_total",
		"waypoints_reached_total",
		"telemetry_packets_total",
		"planner_duration_seconds",
	} {
		if !names[want] {
			t.Fatalf("metric %s missing from gather output", want)
		}
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *OpsCollector
	c.MissionSubmitted()
	c.MissionStarted()
	c.MissionFinished(model.StatusFailed)
	c.WaypointReached()
	c.RecordTelemetryPacket("ok")
	c.ObservePlanner("nearest", 0.1)
}
