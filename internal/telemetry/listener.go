package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/fieldrobotics/mission-orchestrator/internal/logging"
)

// Subscriber is the inbound messaging surface the listener needs; the
// MQTT client satisfies it.
type Subscriber interface {
	Subscribe(topic string, handler func(payload []byte)) error
}

// PacketRecorder receives a per-packet decode outcome for metrics.
type PacketRecorder interface {
	RecordTelemetryPacket(result string)
}

// Listener consumes raw telemetry packets from the messaging layer,
// decodes them, and publishes snapshots into the State cell. A decode
// failure is logged and counted; the listener keeps running and the
// stored state is untouched.
type Listener struct {
	sub     Subscriber
	topic   string
	state   *State
	decoder Decoder
	log     logging.Logger
	metrics PacketRecorder
}

// NewListener wires a listener. metrics may be nil.
func NewListener(sub Subscriber, topic string, state *State, decoder Decoder, log logging.Logger, metrics PacketRecorder) *Listener {
	if log == nil {
		log = logging.Noop()
	}
	return &Listener{
		sub:     sub,
		topic:   topic,
		state:   state,
		decoder: decoder,
		log:     log,
		metrics: metrics,
	}
}

// Start subscribes to the telemetry topic. Packets are handled on the
// messaging client's delivery goroutine.
func (l *Listener) Start(ctx context.Context) error {
	return l.sub.Subscribe(l.topic, func(payload []byte) {
		l.handle(ctx, payload)
	})
}

func (l *Listener) handle(ctx context.Context, payload []byte) {
	data, err := l.decoder.Decode(payload, l.state.Peek(), time.Now())
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownPacketType):
			l.record("unknown_type")
			l.log.Warn(ctx, "dropped telemetry packet", logging.Err(err))
		default:
			l.record("malformed")
			l.log.Warn(ctx, "dropped telemetry packet", logging.Err(err))
		}
		return
	}
	l.state.Publish(data)
	l.record("ok")
}

func (l *Listener) record(result string) {
	if l.metrics != nil {
		l.metrics.RecordTelemetryPacket(result)
	}
}
