package msg

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/fieldrobotics/mission-orchestrator/internal/config"
)

// Publisher is the outbound half of the messaging client; push-only
// consumers like the visualizer depend on this rather than the full client.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Client wraps the MQTT connection used for telemetry ingestion and
// snapshot publishing.
type Client struct {
	mu   sync.RWMutex
	cfg  *config.MessagingConfig
	conn mqtt.Client
}

// NewClient creates a messaging client from config. Connect must be
// called before use.
func NewClient(cfg *config.MessagingConfig) *Client {
	return &Client{cfg: cfg}
}

// Connect establishes the broker connection with automatic reconnect.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	broker := fmt.Sprintf("tcp://%s:%d", c.cfg.Broker, c.cfg.Port)
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	conn := mqtt.NewClient(opts)
	token := conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	c.conn = conn
	return nil
}

// Publish sends a payload to the given topic at QoS 0. Snapshot traffic
// is display-only; drops are acceptable.
func (c *Client) Publish(topic string, payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.conn == nil || !c.conn.IsConnected() {
		return fmt.Errorf("mqtt not connected")
	}
	token := c.conn.Publish(topic, 0, false, payload)
	token.Wait()
	return token.Error()
}

// Subscribe registers a handler for messages on the given topic at QoS 1.
func (c *Client) Subscribe(topic string, handler func(payload []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("mqtt not connected")
	}
	token := c.conn.Subscribe(topic, 1, func(_ mqtt.Client, m mqtt.Message) {
		handler(m.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker, allowing in-flight work to finish.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Disconnect(250)
		c.conn = nil
	}
}
