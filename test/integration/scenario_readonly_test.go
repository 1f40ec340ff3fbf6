package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// Read-Only Mode Scenario Tests
// ============================================================================

// TestScenario_ReadOnlyMode verifies read-only deployments keep publishing
// state while every command from Home Assistant is dropped before it can
// touch the stove.
func TestScenario_ReadOnlyMode(t *testing.T) {
	env, cleanup := setupReadOnlyStove(t)
	defer cleanup()

	t.Log("GIVEN: state flows normally")
	env.recorder.WaitForPayload(t, stateTopicBase+"/current_temperature", "19.5")
	env.recorder.WaitForPayload(t, stateTopicBase+"/mode", "heat")

	t.Log("WHEN: Home Assistant sends commands")
	env.recorder.Publish(t, stateTopicBase+"/target_temperature/set", "25")
	env.recorder.Publish(t, stateTopicBase+"/mode/set", "off")
	env.recorder.Publish(t, stateTopicBase+"/power/set", "OFF")

	t.Log("THEN: nothing reaches the vendor")
	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, env.vendor.Writes())

	t.Log("AND: polling still works")
	env.vendor.SetRegister("air_temperature", 20.5)
	env.bridge.RefreshAll()
	env.recorder.WaitForPayload(t, stateTopicBase+"/current_temperature", "20.5")
}
