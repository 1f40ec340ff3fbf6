// Package testutil provides in-process fakes for integration tests: an
// embedded MQTT broker, a recording broker client and a fake Agua IOT cloud.
package testutil

import (
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// Broker is an embedded MQTT broker bound to a random localhost port.
type Broker struct {
	// URL is the paho broker URL, e.g. "tcp://127.0.0.1:41883".
	URL string

	server *mochi.Server
}

// StartBroker runs an in-process broker that accepts every connection. The
// broker is closed when the test finishes.
func StartBroker(t *testing.T) *Broker {
	t.Helper()

	// Reserve a free port, then hand the address to the broker listener.
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to reserve a port: %v", err)
	}
	addr := probe.Addr().String()
	probe.Close()

	server := mochi.New(nil)
	_ = server.AddHook(new(auth.AllowHook), nil)

	tcp := listeners.NewTCP(listeners.Config{ID: "test", Address: addr})
	if err := server.AddListener(tcp); err != nil {
		t.Fatalf("Failed to add broker listener: %v", err)
	}
	if err := server.Serve(); err != nil {
		t.Fatalf("Failed to start broker: %v", err)
	}
	t.Cleanup(func() { server.Close() })

	return &Broker{URL: "tcp://" + addr, server: server}
}

// Message is one MQTT message seen by a MessageRecorder.
type Message struct {
	Topic    string
	Payload  string
	Retained bool
}

// MessageRecorder is a broker client that records everything matching a
// topic filter, so tests can assert on the bridge's output. It doubles as a
// publisher for injecting commands the way Home Assistant would.
type MessageRecorder struct {
	client mqtt.Client

	mu       sync.Mutex
	messages []Message
}

// NewMessageRecorder connects to the broker and subscribes to filter,
// usually "#". The connection is closed when the test finishes.
func NewMessageRecorder(t *testing.T, brokerURL, filter string) *MessageRecorder {
	t.Helper()

	r := &MessageRecorder{}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(fmt.Sprintf("recorder-%d", time.Now().UnixNano()))
	r.client = mqtt.NewClient(opts)

	if token := r.client.Connect(); token.Wait() && token.Error() != nil {
		t.Fatalf("Failed to connect recorder: %v", token.Error())
	}
	record := func(_ mqtt.Client, msg mqtt.Message) {
		r.mu.Lock()
		r.messages = append(r.messages, Message{
			Topic:    msg.Topic(),
			Payload:  string(msg.Payload()),
			Retained: msg.Retained(),
		})
		r.mu.Unlock()
	}
	if token := r.client.Subscribe(filter, 0, record); token.Wait() && token.Error() != nil {
		t.Fatalf("Failed to subscribe recorder: %v", token.Error())
	}
	t.Cleanup(func() { r.client.Disconnect(100) })

	return r
}

// Publish sends a message through the recorder's connection.
func (r *MessageRecorder) Publish(t *testing.T, topic, payload string) {
	t.Helper()
	if token := r.client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
		t.Fatalf("Failed to publish to %s: %v", topic, token.Error())
	}
}

// Messages returns everything recorded on topic, in arrival order.
func (r *MessageRecorder) Messages(topic string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Message
	for _, m := range r.messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the most recent message on topic.
func (r *MessageRecorder) Last(topic string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].Topic == topic {
			return r.messages[i], true
		}
	}
	return Message{}, false
}

// WaitFor blocks until a message arrives on topic, failing the test after
// five seconds.
func (r *MessageRecorder) WaitFor(t *testing.T, topic string) Message {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if msg, ok := r.Last(topic); ok {
			return msg
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("No message arrived on %s", topic)
	return Message{}
}

// WaitForPayload blocks until the latest message on topic equals payload,
// failing the test after five seconds.
func (r *MessageRecorder) WaitForPayload(t *testing.T, topic, payload string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if msg, ok := r.Last(topic); ok && msg.Payload == payload {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	last, _ := r.Last(topic)
	t.Fatalf("Topic %s never carried %q, last payload %q", topic, payload, last.Payload)
}

// Clear drops everything recorded so far.
func (r *MessageRecorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}
