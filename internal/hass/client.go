// Package hass connects the bridge to Home Assistant over MQTT. It carries
// the transport client, the discovery payload schema and a recording mock
// for tests.
package hass

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Availability payloads, published retained on the availability topic.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// MessageHandler is called with every message arriving on a subscribed topic.
type MessageHandler func(topic string, payload []byte)

// Client is the MQTT surface the bridge depends on. MQTTClient implements it
// for production, MockClient for tests.
type Client interface {
	Connect() error
	Disconnect()
	IsConnected() bool
	Publish(topic string, payload []byte, retain bool) error
	Subscribe(topic string, handler MessageHandler) error
}

// Config describes the broker connection.
type Config struct {
	// BrokerURL is a paho broker URL, e.g. "tcp://localhost:1883".
	BrokerURL string
	Username  string
	Password  string
	ClientID  string

	// AvailabilityTopic carries online/offline (retained) and is
	// registered as the connection's last will, so Home Assistant marks
	// every bridged entity unavailable if the daemon dies.
	AvailabilityTopic string
}

// MQTTClient is the paho-backed Client.
type MQTTClient struct {
	cfg    Config
	logger *zap.Logger
	client mqtt.Client

	mu   sync.Mutex
	subs map[string]MessageHandler
}

// NewMQTTClient creates a client. No connection is attempted until Connect.
func NewMQTTClient(cfg Config, logger *zap.Logger) *MQTTClient {
	c := &MQTTClient{
		cfg:    cfg,
		logger: logger,
		subs:   make(map[string]MessageHandler),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	if cfg.AvailabilityTopic != "" {
		opts.SetWill(cfg.AvailabilityTopic, PayloadOffline, 1, true)
	}
	opts.OnConnect = func(_ mqtt.Client) {
		c.onConnect()
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logger.Warn("MQTT connection lost", zap.Error(err))
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// Connect establishes the broker session. Later drops are handled by paho's
// auto-reconnect; OnConnect republishes availability and restores
// subscriptions.
func (c *MQTTClient) Connect() error {
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", c.cfg.BrokerURL, token.Error())
	}
	return nil
}

func (c *MQTTClient) onConnect() {
	c.logger.Info("Connected to MQTT broker", zap.String("broker", c.cfg.BrokerURL))

	if c.cfg.AvailabilityTopic != "" {
		if err := c.Publish(c.cfg.AvailabilityTopic, []byte(PayloadOnline), true); err != nil {
			c.logger.Error("Failed to publish availability", zap.Error(err))
		}
	}

	c.resubscribeAll()
}

// Disconnect marks the bridge offline and closes the session.
func (c *MQTTClient) Disconnect() {
	if c.cfg.AvailabilityTopic != "" {
		// The last will only fires on unclean exits.
		_ = c.Publish(c.cfg.AvailabilityTopic, []byte(PayloadOffline), true)
	}
	c.client.Disconnect(250)
}

// IsConnected reports whether the broker session is up.
func (c *MQTTClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Publish sends payload to topic at QoS 0.
func (c *MQTTClient) Publish(topic string, payload []byte, retain bool) error {
	if token := c.client.Publish(topic, 0, retain, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	return nil
}

// Subscribe registers handler for an exact topic. The subscription survives
// reconnects.
func (c *MQTTClient) Subscribe(topic string, handler MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = handler
	c.mu.Unlock()

	if token := c.client.Subscribe(topic, 0, c.dispatch); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, token.Error())
	}
	return nil
}

func (c *MQTTClient) dispatch(_ mqtt.Client, msg mqtt.Message) {
	c.mu.Lock()
	handler := c.subs[msg.Topic()]
	c.mu.Unlock()

	if handler != nil {
		handler(msg.Topic(), msg.Payload())
	}
}

func (c *MQTTClient) resubscribeAll() {
	c.mu.Lock()
	topics := make([]string, 0, len(c.subs))
	for topic := range c.subs {
		topics = append(topics, topic)
	}
	c.mu.Unlock()

	for _, topic := range topics {
		if token := c.client.Subscribe(topic, 0, c.dispatch); token.Wait() && token.Error() != nil {
			c.logger.Error("Failed to resubscribe",
				zap.String("topic", topic),
				zap.Error(token.Error()))
		}
	}
}
