package evacalor

import (
	"strconv"

	"go.uber.org/zap"

	"stovebridge/pkg/climate"
)

// heaterDevice is the slice of the vendor device handle the climate adapter
// uses. Narrowed to an interface so tests can drive the adapter without the
// cloud; *aguaiot.Device satisfies it.
type heaterDevice interface {
	ID() string
	Name() string
	Product() string
	Update() error
	TurnOn() error
	TurnOff() error
	SetTargetAirTemperature(value float64) error
	SetPower(level int) error
	Status() int
	StatusTranslated() string
	AirTemperature() float64
	TargetAirTemperature() float64
	GasTemperature() float64
	RealPower() int
	Power() int
	MinTemperature() float64
	MaxTemperature() float64
}

// Status strings the stove reports while the fire is being serviced or lit.
// Everything else that is not "OFF" counts as idle (standby, cooldown,
// ignition wait).
var heatingStatuses = map[string]bool{
	"ON":                true,
	"CLEANING FIRE-POT": true,
	"FLAME LIGHT":       true,
}

// fanModes are the stove's power levels as Home Assistant fan modes.
var fanModes = []string{"1", "2", "3", "4", "5"}

// heaterClimate adapts one stove to the climate entity contract. Reads go
// straight to the device handle's register snapshot; the bridge serializes
// polls and commands, so no locking happens here.
type heaterClimate struct {
	device heaterDevice
	logger *zap.Logger
}

func newHeaterClimate(device heaterDevice, logger *zap.Logger) *heaterClimate {
	return &heaterClimate{
		device: device,
		logger: logger.Named("climate").With(zap.String("device", device.Name())),
	}
}

func (h *heaterClimate) UniqueID() string { return h.device.ID() }
func (h *heaterClimate) Name() string     { return h.device.Name() }

func (h *heaterClimate) DeviceInfo() climate.DeviceInfo {
	return climate.DeviceInfo{
		Identifiers:  []string{h.device.ID()},
		Manufacturer: "Micronova",
		Model:        h.device.Product(),
		Name:         h.device.Name(),
	}
}

func (h *heaterClimate) TemperatureUnit() string { return "C" }

// Precision is a whole degree even though the stove stores half degrees;
// the display only shows whole numbers.
func (h *heaterClimate) Precision() float64 { return 1.0 }

func (h *heaterClimate) MinTemp() float64 { return h.device.MinTemperature() }
func (h *heaterClimate) MaxTemp() float64 { return h.device.MaxTemperature() }

func (h *heaterClimate) CurrentTemperature() float64 { return h.device.AirTemperature() }

// TargetTemperature converts the stove's half-degree register back to
// display degrees.
func (h *heaterClimate) TargetTemperature() float64 {
	return h.device.TargetAirTemperature() / 2
}

// Mode reports heat whenever the stove is doing anything at all. The stove
// has no cooling side, so the status register being non-zero means heat.
func (h *heaterClimate) Mode() climate.Mode {
	if h.device.Status() != 0 {
		return climate.ModeHeat
	}
	return climate.ModeOff
}

func (h *heaterClimate) Modes() []climate.Mode {
	return []climate.Mode{climate.ModeHeat, climate.ModeOff}
}

// Action classifies the translated status string into the running state
// Home Assistant shows on the entity card.
func (h *heaterClimate) Action() climate.Action {
	status := h.device.StatusTranslated()
	switch {
	case heatingStatuses[status]:
		return climate.ActionHeating
	case status == "OFF":
		return climate.ActionOff
	default:
		return climate.ActionIdle
	}
}

// FanMode reports the stove's power level. Values outside the known levels
// fall back to the lowest one rather than confusing Home Assistant with an
// option it was never offered.
func (h *heaterClimate) FanMode() string {
	power := strconv.Itoa(h.device.Power())
	for _, mode := range fanModes {
		if mode == power {
			return power
		}
	}
	return fanModes[0]
}

func (h *heaterClimate) FanModes() []string {
	modes := make([]string, len(fanModes))
	copy(modes, fanModes)
	return modes
}

func (h *heaterClimate) Attributes() map[string]interface{} {
	return map[string]interface{}{
		"device_status":       h.device.Status(),
		"human_device_status": h.device.StatusTranslated(),
		"smoke_temperature":   h.device.GasTemperature(),
		"real_power":          h.device.RealPower(),
	}
}

func (h *heaterClimate) TurnOn() {
	if err := h.device.TurnOn(); err != nil {
		h.logger.Error("Failed to turn on stove", zap.Error(err))
	}
}

func (h *heaterClimate) TurnOff() {
	if err := h.device.TurnOff(); err != nil {
		h.logger.Error("Failed to turn off stove", zap.Error(err))
	}
}

// SetTemperature writes the target register in the stove's half-degree
// encoding. A nil temperature is ignored; Home Assistant sends those for
// service calls that only carry other fields.
func (h *heaterClimate) SetTemperature(temp *float64) {
	if temp == nil {
		return
	}
	if err := h.device.SetTargetAirTemperature(*temp * 2); err != nil {
		h.logger.Error("Failed to set target temperature",
			zap.Float64("temperature", *temp),
			zap.Error(err))
	}
}

func (h *heaterClimate) SetFanMode(mode string) {
	if mode == "" {
		return
	}
	level, err := strconv.Atoi(mode)
	if err != nil {
		h.logger.Warn("Ignoring non-numeric fan mode", zap.String("mode", mode))
		return
	}
	if err := h.device.SetPower(level); err != nil {
		h.logger.Error("Failed to set power level",
			zap.Int("level", level),
			zap.Error(err))
	}
}

func (h *heaterClimate) SetMode(mode climate.Mode) {
	switch mode {
	case climate.ModeOff:
		h.TurnOff()
	case climate.ModeHeat:
		h.TurnOn()
	default:
		h.logger.Debug("Ignoring unsupported mode", zap.String("mode", string(mode)))
	}
}

func (h *heaterClimate) Update() error {
	return h.device.Update()
}
