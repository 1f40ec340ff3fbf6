package hass

import (
	"sort"
	"sync"
	"time"
)

// MockClient implements Client for testing. It records every publish and
// lets tests inject inbound messages.
type MockClient struct {
	mu        sync.Mutex
	connected bool
	published []PublishedMessage
	retained  map[string]PublishedMessage
	handlers  map[string]MessageHandler
}

// PublishedMessage records one Publish call for verification.
type PublishedMessage struct {
	Topic    string
	Payload  []byte
	Retained bool
	Time     time.Time
}

// NewMockClient creates a new mock MQTT client
func NewMockClient() *MockClient {
	return &MockClient{
		retained: make(map[string]PublishedMessage),
		handlers: make(map[string]MessageHandler),
	}
}

// Connect simulates connecting to the broker
func (m *MockClient) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

// Disconnect simulates disconnecting
func (m *MockClient) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

// IsConnected returns connection status
func (m *MockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Publish records a publish
func (m *MockClient) Publish(topic string, payload []byte, retain bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := PublishedMessage{
		Topic:    topic,
		Payload:  append([]byte(nil), payload...),
		Retained: retain,
		Time:     time.Now(),
	}
	m.published = append(m.published, msg)
	if retain {
		m.retained[topic] = msg
	}
	return nil
}

// Subscribe registers a handler for an exact topic
func (m *MockClient) Subscribe(topic string, handler MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

// SimulateMessage delivers an inbound message to the registered handler.
// It returns false when nothing is subscribed to the topic.
func (m *MockClient) SimulateMessage(topic string, payload []byte) bool {
	m.mu.Lock()
	handler := m.handlers[topic]
	m.mu.Unlock()

	if handler == nil {
		return false
	}
	handler(topic, payload)
	return true
}

// Published returns all publishes to topic, oldest first. An empty topic
// returns everything.
func (m *MockClient) Published(topic string) []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]PublishedMessage, 0, len(m.published))
	for _, msg := range m.published {
		if topic == "" || msg.Topic == topic {
			result = append(result, msg)
		}
	}
	return result
}

// LastPublished returns the most recent publish to topic.
func (m *MockClient) LastPublished(topic string) (PublishedMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.published) - 1; i >= 0; i-- {
		if m.published[i].Topic == topic {
			return m.published[i], true
		}
	}
	return PublishedMessage{}, false
}

// Retained returns the retained message held for topic.
func (m *MockClient) Retained(topic string) (PublishedMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.retained[topic]
	return msg, ok
}

// Subscriptions returns the subscribed topics, sorted.
func (m *MockClient) Subscriptions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	topics := make([]string, 0, len(m.handlers))
	for topic := range m.handlers {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// ClearPublished drops the publish history but keeps retained state and
// subscriptions.
func (m *MockClient) ClearPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}
