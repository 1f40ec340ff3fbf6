package integration

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stovebridge/internal/hass"
	"stovebridge/pkg/testutil"
)

// ============================================================================
// Discovery Scenario Tests
// ============================================================================

// TestScenario_DiscoveryPayload verifies that the announced climate entity
// carries the full Home Assistant MQTT climate schema, including the device
// registry block for the stove.
func TestScenario_DiscoveryPayload(t *testing.T) {
	env, cleanup := setupRunningStove(t)
	defer cleanup()

	msg := env.recorder.WaitFor(t, discoveryTopic)

	var cfg hass.ClimateConfig
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &cfg))

	assert.Equal(t, "Living Room Stove", cfg.Name)
	assert.Equal(t, "DEV1", cfg.UniqueID)
	assert.Equal(t, []string{"heat", "off"}, cfg.Modes)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, cfg.FanModes)

	assert.Equal(t, 15.0, cfg.MinTemp)
	assert.Equal(t, 30.0, cfg.MaxTemp)
	assert.Equal(t, 1.0, cfg.Precision)
	assert.Equal(t, 1.0, cfg.TempStep)
	assert.Equal(t, "C", cfg.TemperatureUnit)

	assert.Equal(t, stateTopicBase+"/current_temperature", cfg.CurrentTemperatureTopic)
	assert.Equal(t, stateTopicBase+"/target_temperature", cfg.TemperatureStateTopic)
	assert.Equal(t, stateTopicBase+"/target_temperature/set", cfg.TemperatureCommandTopic)
	assert.Equal(t, stateTopicBase+"/mode", cfg.ModeStateTopic)
	assert.Equal(t, stateTopicBase+"/mode/set", cfg.ModeCommandTopic)
	assert.Equal(t, stateTopicBase+"/action", cfg.ActionTopic)
	assert.Equal(t, stateTopicBase+"/fan_mode", cfg.FanModeStateTopic)
	assert.Equal(t, stateTopicBase+"/fan_mode/set", cfg.FanModeCommandTopic)
	assert.Equal(t, stateTopicBase+"/power/set", cfg.PowerCommandTopic)
	assert.Equal(t, stateTopicBase+"/attributes", cfg.JSONAttributesTopic)
	assert.Equal(t, availabilityTopic, cfg.AvailabilityTopic)

	assert.Equal(t, []string{"DEV1"}, cfg.Device.Identifiers)
	assert.Equal(t, "Micronova", cfg.Device.Manufacturer)
	assert.Equal(t, "Giulia EVO", cfg.Device.Model)
	assert.Equal(t, "Living Room Stove", cfg.Device.Name)

	require.NotNil(t, cfg.Origin)
	assert.Equal(t, "stovebridge", cfg.Origin.Name)
	assert.Equal(t, "test", cfg.Origin.SoftwareVersion)
}

// TestScenario_InitialState verifies the state published right after setup
// matches the vendor's register buffer, with the half-degree target register
// translated to display degrees.
func TestScenario_InitialState(t *testing.T) {
	env, cleanup := setupRunningStove(t)
	defer cleanup()

	env.recorder.WaitForPayload(t, stateTopicBase+"/current_temperature", "19.5")
	env.recorder.WaitForPayload(t, stateTopicBase+"/target_temperature", "21.5")
	env.recorder.WaitForPayload(t, stateTopicBase+"/mode", "heat")
	env.recorder.WaitForPayload(t, stateTopicBase+"/action", "heating")
	env.recorder.WaitForPayload(t, stateTopicBase+"/fan_mode", "4")

	msg := env.recorder.WaitFor(t, stateTopicBase+"/attributes")
	var attrs map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &attrs))
	assert.Equal(t, 6.0, attrs["device_status"])
	assert.Equal(t, "ON", attrs["human_device_status"])
	assert.Equal(t, 142.5, attrs["smoke_temperature"])
	assert.Equal(t, 3.0, attrs["real_power"])

	t.Run("state topics are retained", func(t *testing.T) {
		for _, topic := range []string{
			stateTopicBase + "/current_temperature",
			stateTopicBase + "/mode",
			stateTopicBase + "/attributes",
		} {
			last, ok := env.recorder.Last(topic)
			require.True(t, ok, "expected a message on %s", topic)
			assert.True(t, last.Retained, "%s should be retained", topic)
		}
	})
}

// TestScenario_MultipleDevicesBridgesFirst verifies that with several stoves
// on the account only the first is announced.
func TestScenario_MultipleDevicesBridgesFirst(t *testing.T) {
	env, cleanup := setupTest(t)
	defer cleanup()

	t.Log("GIVEN: two stoves registered to the account")
	env.vendor.SetDevices(
		testutil.VendorDevice{ID: "DEV1", Name: "Living Room Stove", Product: "Giulia EVO"},
		testutil.VendorDevice{ID: "DEV2", Name: "Basement Stove", Product: "Vesta"},
	)

	t.Log("WHEN: the plugin starts")
	require.NoError(t, env.plugin.Start())

	t.Log("THEN: only the first stove is announced")
	env.recorder.WaitFor(t, discoveryTopic)
	assert.Equal(t, 1, env.bridge.Count())

	_, ok := env.recorder.Last("homeassistant/climate/DEV2/config")
	assert.False(t, ok, "second stove must not be announced")
}
