package hass

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stovebridge/pkg/testutil"
)

func TestMQTTClient_Connect(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	t.Run("publishes availability online", func(t *testing.T) {
		broker := testutil.StartBroker(t)
		recorder := testutil.NewMessageRecorder(t, broker.URL, "#")

		client := NewMQTTClient(Config{
			BrokerURL:         broker.URL,
			ClientID:          "bridge-connect-test",
			AvailabilityTopic: "stovebridge/availability",
		}, logger)

		err := client.Connect()
		require.NoError(t, err)
		defer client.Disconnect()

		assert.True(t, client.IsConnected())

		recorder.WaitForPayload(t, "stovebridge/availability", PayloadOnline)
		msg, ok := recorder.Last("stovebridge/availability")
		require.True(t, ok)
		assert.True(t, msg.Retained)
	})

	t.Run("connection refused", func(t *testing.T) {
		// Reserve a port and close it again so nothing is listening.
		probe, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := probe.Addr().String()
		probe.Close()

		client := NewMQTTClient(Config{
			BrokerURL: "tcp://" + addr,
			ClientID:  "bridge-refused-test",
		}, logger)

		err = client.Connect()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect")
		assert.False(t, client.IsConnected())
	})
}

func TestMQTTClient_Disconnect(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	broker := testutil.StartBroker(t)
	recorder := testutil.NewMessageRecorder(t, broker.URL, "#")

	client := NewMQTTClient(Config{
		BrokerURL:         broker.URL,
		ClientID:          "bridge-disconnect-test",
		AvailabilityTopic: "stovebridge/availability",
	}, logger)
	require.NoError(t, client.Connect())
	recorder.WaitForPayload(t, "stovebridge/availability", PayloadOnline)

	client.Disconnect()

	recorder.WaitForPayload(t, "stovebridge/availability", PayloadOffline)
	assert.False(t, client.IsConnected())
}

func TestMQTTClient_Subscribe(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	broker := testutil.StartBroker(t)

	client := NewMQTTClient(Config{
		BrokerURL: broker.URL,
		ClientID:  "bridge-subscribe-test",
	}, logger)
	require.NoError(t, client.Connect())
	defer client.Disconnect()

	var mu sync.Mutex
	var got []string
	err := client.Subscribe("stovebridge/dev1/mode/set", func(_ string, payload []byte) {
		mu.Lock()
		got = append(got, string(payload))
		mu.Unlock()
	})
	require.NoError(t, err)

	sender := testutil.NewMessageRecorder(t, broker.URL, "#")
	sender.Publish(t, "stovebridge/dev1/mode/set", "off")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == "off"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMQTTClient_RetainedStateOutlivesPublisher(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	broker := testutil.StartBroker(t)

	client := NewMQTTClient(Config{
		BrokerURL: broker.URL,
		ClientID:  "bridge-retain-test",
	}, logger)
	require.NoError(t, client.Connect())

	require.NoError(t, client.Publish("stovebridge/dev1/mode", []byte("heat"), true))
	client.Disconnect()

	// A subscriber arriving later still gets the last state.
	late := testutil.NewMessageRecorder(t, broker.URL, "stovebridge/#")
	msg := late.WaitFor(t, "stovebridge/dev1/mode")
	assert.Equal(t, "heat", msg.Payload)
	assert.True(t, msg.Retained)
}
