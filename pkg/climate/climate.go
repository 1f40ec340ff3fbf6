// Package climate defines the climate-control contract between the bridge
// and its device integrations. Integrations produce Entity implementations;
// the bridge publishes their state over MQTT discovery and feeds Home
// Assistant commands back into them.
//
// The string values below are Home Assistant's MQTT climate vocabulary and
// go on the wire verbatim.
package climate

// Mode is the composite operating mode shown to Home Assistant. Heaters
// bridged here expose exactly ModeHeat and ModeOff, nothing else.
type Mode string

const (
	ModeHeat Mode = "heat"
	ModeOff  Mode = "off"
)

// Action is the running-state classification reported on the action topic.
// It is finer grained than Mode: a heater can be in ModeHeat while its
// action is ActionIdle.
type Action string

const (
	ActionHeating Action = "heating"
	ActionIdle    Action = "idle"
	ActionOff     Action = "off"
)

// DeviceInfo describes the physical device behind an entity for the Home
// Assistant device registry.
type DeviceInfo struct {
	Identifiers  []string
	Manufacturer string
	Model        string
	Name         string
}

// Entity is implemented by every climate device exposed by the bridge.
//
// Read methods return the entity's last polled snapshot and never block.
// Write methods call straight through to the device backend; backend errors
// are logged by the implementation and swallowed, so a command that failed is
// only observable through the next poll not reflecting it.
type Entity interface {
	// UniqueID identifies the entity across restarts. It doubles as the
	// discovery unique_id and the topic path segment.
	UniqueID() string
	Name() string
	DeviceInfo() DeviceInfo

	// TemperatureUnit returns the unit letter for discovery ("C").
	TemperatureUnit() string
	// Precision returns the display granularity in degrees.
	Precision() float64
	MinTemp() float64
	MaxTemp() float64
	CurrentTemperature() float64
	TargetTemperature() float64
	Mode() Mode
	Modes() []Mode
	Action() Action
	FanMode() string
	FanModes() []string
	// Attributes returns extra state published on the JSON attributes
	// topic. The map is owned by the caller.
	Attributes() map[string]interface{}

	TurnOn()
	TurnOff()
	// SetTemperature ignores a nil value.
	SetTemperature(temp *float64)
	// SetFanMode ignores an empty mode.
	SetFanMode(mode string)
	// SetMode maps ModeOff to TurnOff and ModeHeat to TurnOn. Anything
	// else is a no-op.
	SetMode(mode Mode)

	// Update polls the device backend and replaces the whole snapshot.
	// On error the previous snapshot stays in place; the error tells the
	// host the snapshot is stale, it is not a fault to propagate.
	Update() error
}

// Registrar accepts entities produced by integration plugins. Implemented by
// the bridge.
type Registrar interface {
	// Add registers an entity, runs its first poll and announces it via
	// MQTT discovery. Adding a second entity with the same UniqueID is an
	// error.
	Add(entity Entity) error
}
