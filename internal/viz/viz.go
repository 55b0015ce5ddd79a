package viz

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fieldrobotics/mission-orchestrator/internal/logging"
	"github.com/fieldrobotics/mission-orchestrator/model"
)

// Snapshot is one visualizer-facing view of a mission, published on
// every status transition and on route/waypoint progress.
type Snapshot struct {
	MissionID string    `json:"mission_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`

	Points []PointView      `json:"points,omitempty"`
	Route  []model.Position `json:"route,omitempty"`
	Reason string           `json:"reason,omitempty"`
}

// PointView is a point of interest as shown to the visualizer.
type PointView struct {
	ID        string         `json:"id"`
	Position  model.Position `json:"position"`
	Inspected bool           `json:"inspected"`
	Reading   float64        `json:"reading,omitempty"`
}

// FromMission builds a snapshot from a mission record. The caller holds
// whatever lock protects the mission.
func FromMission(m *model.Mission, at time.Time) Snapshot {
	snap := Snapshot{
		MissionID: m.ID,
		Name:      m.Spec.Name,
		Status:    m.Status.String(),
		Timestamp: at,
		Reason:    m.FailReason,
	}
	for _, p := range m.Points {
		snap.Points = append(snap.Points, PointView{
			ID:        p.ID,
			Position:  p.Position,
			Inspected: !p.InspectedAt.IsZero(),
			Reading:   p.Reading,
		})
	}
	if len(m.Route) > 0 {
		snap.Route = append(snap.Route, m.Route...)
	}
	return snap
}

// Publisher pushes snapshots somewhere an operator can watch. Pushes
// are best effort; a lost snapshot never fails a mission.
type Publisher interface {
	PublishSnapshot(snap Snapshot)
}

// MessagePublisher is anything that can publish a payload to a topic;
// satisfied by *msg.Client.
type MessagePublisher interface {
	Publish(topic string, payload []byte) error
}

// MQTTPublisher serializes snapshots as JSON onto one MQTT topic.
type MQTTPublisher struct {
	pub   MessagePublisher
	topic string
	log   logging.Logger
}

// NewMQTTPublisher wires a snapshot publisher onto an MQTT connection.
func NewMQTTPublisher(pub MessagePublisher, topic string, log logging.Logger) *MQTTPublisher {
	if log == nil {
		log = logging.Noop()
	}
	return &MQTTPublisher{pub: pub, topic: topic, log: log}
}

// PublishSnapshot marshals and pushes one snapshot. Failures are logged
// and dropped.
func (p *MQTTPublisher) PublishSnapshot(snap Snapshot) {
	ctx := context.Background()
	payload, err := json.Marshal(snap)
	if err != nil {
		p.log.Warn(ctx, "snapshot marshal failed", logging.Err(err))
		return
	}
	if err := p.pub.Publish(p.topic, payload); err != nil {
		p.log.Warn(ctx, "snapshot publish failed",
			logging.String("mission_id", snap.MissionID), logging.Err(err))
	}
}

// Noop discards snapshots; used when no visualizer is configured.
type Noop struct{}

func (Noop) PublishSnapshot(Snapshot) {}
