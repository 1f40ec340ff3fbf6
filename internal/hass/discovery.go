package hass

// DeviceInfo ties a discovered entity to a Home Assistant device registry
// entry.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
}

// OriginInfo names the integration announcing the entity.
type OriginInfo struct {
	Name            string `json:"name"`
	SoftwareVersion string `json:"sw_version,omitempty"`
	SupportURL      string `json:"support_url,omitempty"`
}

// ClimateConfig is the discovery payload for an MQTT climate entity,
// published retained under <discovery_prefix>/climate/<unique_id>/config.
// Field names follow Home Assistant's MQTT climate schema.
type ClimateConfig struct {
	Name     string `json:"name"`
	UniqueID string `json:"unique_id"`

	Modes    []string `json:"modes"`
	FanModes []string `json:"fan_modes,omitempty"`

	MinTemp         float64 `json:"min_temp"`
	MaxTemp         float64 `json:"max_temp"`
	Precision       float64 `json:"precision"`
	TempStep        float64 `json:"temp_step"`
	TemperatureUnit string  `json:"temperature_unit"`

	CurrentTemperatureTopic string `json:"current_temperature_topic"`
	TemperatureStateTopic   string `json:"temperature_state_topic"`
	TemperatureCommandTopic string `json:"temperature_command_topic"`
	ModeStateTopic          string `json:"mode_state_topic"`
	ModeCommandTopic        string `json:"mode_command_topic"`
	ActionTopic             string `json:"action_topic,omitempty"`
	FanModeStateTopic       string `json:"fan_mode_state_topic,omitempty"`
	FanModeCommandTopic     string `json:"fan_mode_command_topic,omitempty"`
	PowerCommandTopic       string `json:"power_command_topic,omitempty"`
	PayloadOn               string `json:"payload_on,omitempty"`
	PayloadOff              string `json:"payload_off,omitempty"`
	JSONAttributesTopic     string `json:"json_attributes_topic,omitempty"`
	AvailabilityTopic       string `json:"availability_topic,omitempty"`

	Device DeviceInfo  `json:"device"`
	Origin *OriginInfo `json:"origin,omitempty"`
}
