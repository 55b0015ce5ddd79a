package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level operator configuration.
type Config struct {
	// MaxConcurrentMissions bounds simultaneously active explorer/inspector pairs.
	MaxConcurrentMissions int `yaml:"max_concurrent_missions"`
	// PlannerStrategy selects the route planner: "nearest" or "optimized".
	PlannerStrategy string `yaml:"planner_strategy"`
	// PlannerTimeout bounds one optimizing-solver invocation.
	PlannerTimeout time.Duration `yaml:"planner_timeout"`
	// DetectionMergeEpsilon is the distance under which two detections
	// are merged into one point of interest, in metres.
	DetectionMergeEpsilon float64 `yaml:"detection_merge_epsilon"`
	// TelemetryMaxAge is how old a telemetry snapshot may be before
	// consumers treat it as stale.
	TelemetryMaxAge time.Duration `yaml:"telemetry_max_age"`
	// MissionFailurePolicy is "continue" (default) or "abort".
	MissionFailurePolicy string `yaml:"mission_failure_policy"`

	// TickInterval is the logical tick driving survey and motion stepping.
	TickInterval time.Duration `yaml:"tick_interval"`
	// RobotSpeed is the ground inspector's constant speed in m/s.
	RobotSpeed float64 `yaml:"robot_speed"`
	// DatabasePath locates the SQLite mission archive.
	DatabasePath string `yaml:"database_path"`

	Battery   BatteryConfig   `yaml:"battery"`
	Messaging MessagingConfig `yaml:"messaging"`
	Web       WebConfig       `yaml:"web"`
}

// BatteryConfig describes the drone pack's discharge envelope, used to
// classify voltage readings.
type BatteryConfig struct {
	MinVoltage float64 `yaml:"min_voltage"`
	MaxVoltage float64 `yaml:"max_voltage"`
}

// MessagingConfig defines the MQTT broker and topics.
type MessagingConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	// TelemetryTopic carries raw drone telemetry packets inbound.
	TelemetryTopic string `yaml:"telemetry_topic"`
	// SnapshotTopic carries mission snapshots outbound to the visualizer.
	SnapshotTopic string `yaml:"snapshot_topic"`
}

// WebConfig defines the HTTP status/metrics server.
type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		MaxConcurrentMissions: 2,
		PlannerStrategy:       "optimized",
		PlannerTimeout:        2 * time.Second,
		DetectionMergeEpsilon: 0.5,
		TelemetryMaxAge:       time.Second,
		MissionFailurePolicy:  "continue",
		TickInterval:          100 * time.Millisecond,
		RobotSpeed:            1.5,
		DatabasePath:          "missions.db",
		Battery: BatteryConfig{
			MinVoltage: 3.0,
			MaxVoltage: 4.2,
		},
		Messaging: MessagingConfig{
			Broker:         "localhost",
			Port:           1883,
			ClientID:       "mission-operator",
			TelemetryTopic: "drone/telemetry/raw",
			SnapshotTopic:  "operation/snapshots",
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
	}
}

// Load reads a YAML config file over Defaults. A missing file is not an
// error; the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the orchestrator cannot run with.
func (c *Config) Validate() error {
	if c.MaxConcurrentMissions < 1 {
		return fmt.Errorf("max_concurrent_missions must be >= 1, got %d", c.MaxConcurrentMissions)
	}
	switch c.PlannerStrategy {
	case "nearest", "optimized":
	default:
		return fmt.Errorf("planner_strategy must be nearest or optimized, got %q", c.PlannerStrategy)
	}
	switch c.MissionFailurePolicy {
	case "continue", "abort":
	default:
		return fmt.Errorf("mission_failure_policy must be continue or abort, got %q", c.MissionFailurePolicy)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval)
	}
	if c.RobotSpeed <= 0 {
		return fmt.Errorf("robot_speed must be positive, got %g", c.RobotSpeed)
	}
	if c.DetectionMergeEpsilon < 0 {
		return fmt.Errorf("detection_merge_epsilon must be >= 0, got %g", c.DetectionMergeEpsilon)
	}
	return nil
}
