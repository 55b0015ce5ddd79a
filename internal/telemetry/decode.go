package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fieldrobotics/mission-orchestrator/model"
)

// Packet type identifiers, as emitted by the drone firmware. Every packet
// is a single type-id byte followed by a packed little-endian payload.
const (
	packetIDBattery = 0x01
	packetIDPose    = 0x02
)

const (
	batteryPayloadLen = 4  // float32 voltage
	posePayloadLen    = 24 // float32 x, y, z, roll, pitch, yaw
)

var (
	// ErrMalformedPacket indicates a packet too short for its declared type.
	ErrMalformedPacket = errors.New("malformed telemetry packet")
	// ErrUnknownPacketType indicates an unrecognized type-id byte.
	ErrUnknownPacketType = errors.New("unknown telemetry packet type")
)

// Decoder turns raw telemetry packets into TelemetryData snapshots.
// Battery packets carry only a voltage and pose packets only a pose, so
// each decode merges into the previous snapshot and returns a new whole
// value; the stored state is never partially mutated.
type Decoder struct {
	// BatteryMin and BatteryMax describe the pack's discharge envelope
	// for classifying voltage readings.
	BatteryMin float64
	BatteryMax float64
}

// Decode parses one packet against the previous snapshot. Payload bytes
// beyond the fixed struct size are ignored, matching the firmware's
// packed-struct framing.
func (d Decoder) Decode(packet []byte, prev model.TelemetryData, now time.Time) (model.TelemetryData, error) {
	if len(packet) < 1 {
		return model.TelemetryData{}, fmt.Errorf("%w: empty packet", ErrMalformedPacket)
	}

	payload := packet[1:]
	switch packet[0] {
	case packetIDBattery:
		if len(payload) < batteryPayloadLen {
			return model.TelemetryData{}, fmt.Errorf("%w: battery payload %d bytes, want %d",
				ErrMalformedPacket, len(payload), batteryPayloadLen)
		}
		voltage := float64(le32(payload[0:]))
		return model.TelemetryData{
			Pose:      prev.Pose,
			Battery:   model.NewBattery(voltage, d.BatteryMin, d.BatteryMax),
			Timestamp: now,
		}, nil

	case packetIDPose:
		if len(payload) < posePayloadLen {
			return model.TelemetryData{}, fmt.Errorf("%w: pose payload %d bytes, want %d",
				ErrMalformedPacket, len(payload), posePayloadLen)
		}
		return model.TelemetryData{
			Pose: model.Pose{
				Position: model.Position{
					X: float64(le32(payload[0:])),
					Y: float64(le32(payload[4:])),
					Z: float64(le32(payload[8:])),
				},
				Orientation: model.Orientation{
					Roll:  float64(le32(payload[12:])),
					Pitch: float64(le32(payload[16:])),
					Yaw:   float64(le32(payload[20:])),
				},
			},
			Battery:   prev.Battery,
			Timestamp: now,
		}, nil

	default:
		return model.TelemetryData{}, fmt.Errorf("%w: 0x%02x", ErrUnknownPacketType, packet[0])
	}
}

func le32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
