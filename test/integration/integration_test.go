package integration

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stovebridge/internal/bridge"
	"stovebridge/internal/clock"
	"stovebridge/internal/hass"
	"stovebridge/pkg/plugin"
	"stovebridge/pkg/testutil"

	_ "stovebridge/internal/plugins/evacalor"
)

const (
	discoveryTopic    = "homeassistant/climate/DEV1/config"
	stateTopicBase    = "stovebridge/DEV1"
	availabilityTopic = "stovebridge/availability"
)

// testEnv wires a real broker, a fake vendor cloud, the MQTT client and the
// bridge together, the same way main does.
type testEnv struct {
	brokerURL string
	vendor    *testutil.VendorServer
	recorder  *testutil.MessageRecorder
	client    *hass.MQTTClient
	bridge    *bridge.Bridge
	plugin    plugin.Plugin
}

func writeStoveConfig(t *testing.T, dir, apiRoot string) {
	t.Helper()

	content := fmt.Sprintf("email: stove@example.com\npassword: hunter2\nuuid: test-uuid\napi_root: %s\n", apiRoot)
	err := os.WriteFile(filepath.Join(dir, "evacalor.yaml"), []byte(content), 0o644)
	require.NoError(t, err)
}

// newEnv builds the environment without starting the plugin, so failure
// scenarios can break the vendor first. Callers start the plugin themselves.
func newEnv(t *testing.T, readOnly bool) (*testEnv, func()) {
	t.Helper()

	logger, _ := zap.NewDevelopment()

	broker := testutil.StartBroker(t)
	vendor := testutil.NewVendorServer()
	recorder := testutil.NewMessageRecorder(t, broker.URL, "#")

	configDir := t.TempDir()
	writeStoveConfig(t, configDir, vendor.URL())

	client := hass.NewMQTTClient(hass.Config{
		BrokerURL:         broker.URL,
		ClientID:          "stovebridge-test",
		AvailabilityTopic: availabilityTopic,
	}, logger)
	require.NoError(t, client.Connect())

	br := bridge.New(bridge.Config{
		DiscoveryPrefix:   "homeassistant",
		TopicPrefix:       "stovebridge",
		AvailabilityTopic: availabilityTopic,
		ReadOnly:          readOnly,
		Version:           "test",
	}, client, clock.NewRealClock(), logger)

	info := plugin.Get("evacalor")
	require.NotNil(t, info, "evacalor plugin should be registered")

	p, err := info.Factory(plugin.NewContext(br, logger, readOnly, configDir))
	require.NoError(t, err)

	env := &testEnv{
		brokerURL: broker.URL,
		vendor:    vendor,
		recorder:  recorder,
		client:    client,
		bridge:    br,
		plugin:    p,
	}
	cleanup := func() {
		p.Stop()
		client.Disconnect()
		vendor.Close()
	}
	return env, cleanup
}

func setupTest(t *testing.T) (*testEnv, func()) {
	return newEnv(t, false)
}

// setupRunningStove starts the plugin against a healthy vendor, leaving one
// announced entity with a published first poll.
func setupRunningStove(t *testing.T) (*testEnv, func()) {
	t.Helper()

	env, cleanup := setupTest(t)
	require.NoError(t, env.plugin.Start(), "plugin should start against a healthy vendor")
	return env, cleanup
}

// setupReadOnlyStove is setupRunningStove with commands disabled.
func setupReadOnlyStove(t *testing.T) (*testEnv, func()) {
	t.Helper()

	env, cleanup := newEnv(t, true)
	require.NoError(t, env.plugin.Start(), "plugin should start against a healthy vendor")
	return env, cleanup
}

// TestBridgeStartup covers the daemon's boot sequence: broker connection,
// vendor login, discovery announcement and the first state publication.
func TestBridgeStartup(t *testing.T) {
	env, cleanup := setupRunningStove(t)
	defer cleanup()

	t.Run("availability online", func(t *testing.T) {
		env.recorder.WaitForPayload(t, availabilityTopic, hass.PayloadOnline)
	})

	t.Run("one entity registered", func(t *testing.T) {
		assert.Equal(t, 1, env.bridge.Count())
	})

	t.Run("single login against the cloud", func(t *testing.T) {
		assert.Equal(t, 1, env.vendor.Logins())
	})

	t.Run("discovery is retained", func(t *testing.T) {
		msg := env.recorder.WaitFor(t, discoveryTopic)
		assert.True(t, msg.Retained, "discovery must survive broker restarts of Home Assistant")
	})

	t.Run("statuses reflect the stove", func(t *testing.T) {
		statuses := env.bridge.Statuses()
		require.Len(t, statuses, 1)
		assert.Equal(t, "DEV1", statuses[0].UniqueID)
		assert.Equal(t, "Living Room Stove", statuses[0].Name)
		assert.True(t, statuses[0].LastPollOK)
	})
}
