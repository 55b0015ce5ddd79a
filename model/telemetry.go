package model

import "time"

// TelemetryData is one snapshot from an agent's telemetry stream.
// Timestamp records when the snapshot was assembled; consumers must check
// its age before treating the snapshot as current.
type TelemetryData struct {
	Pose      Pose
	Battery   Battery
	Timestamp time.Time
}

// Frame is a captured camera image.
type Frame struct {
	Data      []byte
	Timestamp time.Time
}

// FrameWithTelemetry pairs a frame with the telemetry snapshot closest to
// its capture time, so detections can be georeferenced.
type FrameWithTelemetry struct {
	Frame     Frame
	Telemetry TelemetryData
}
