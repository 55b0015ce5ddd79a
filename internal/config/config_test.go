package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxConcurrentMissions != 2 || cfg.PlannerStrategy != "optimized" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "op.yaml")
	body := `
max_concurrent_missions: 4
planner_strategy: nearest
planner_timeout: 500ms
mission_failure_policy: abort
tick_interval: 50ms
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxConcurrentMissions != 4 {
		t.Errorf("MaxConcurrentMissions = %d, want 4", cfg.MaxConcurrentMissions)
	}
	if cfg.PlannerStrategy != "nearest" {
		t.Errorf("PlannerStrategy = %q, want nearest", cfg.PlannerStrategy)
	}
	if cfg.PlannerTimeout != 500*time.Millisecond {
		t.Errorf("PlannerTimeout = %s, want 500ms", cfg.PlannerTimeout)
	}
	if cfg.MissionFailurePolicy != "abort" {
		t.Errorf("MissionFailurePolicy = %q, want abort", cfg.MissionFailurePolicy)
	}
	// Untouched keys keep their defaults.
	if cfg.Messaging.TelemetryTopic != "drone/telemetry/raw" {
		t.Errorf("TelemetryTopic = %q, want default", cfg.Messaging.TelemetryTopic)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []string{
		"planner_strategy: genetic\n",
		"max_concurrent_missions: 0\n",
		"mission_failure_policy: retry\n",
		"robot_speed: -1\n",
	}
	for _, body := range cases {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("Load accepted invalid config %q", body)
		}
	}
}
