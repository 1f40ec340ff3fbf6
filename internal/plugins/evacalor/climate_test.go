package evacalor

import (
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"stovebridge/pkg/climate"
)

// fakeDevice implements heaterDevice for testing without the cloud.
type fakeDevice struct {
	id      string
	name    string
	product string

	status           int
	statusTranslated string
	airTemp          float64
	targetAirTemp    float64
	gasTemp          float64
	realPower        int
	power            int
	minTemp          float64
	maxTemp          float64

	updateErr error
	writeErr  error

	updateCalls  int
	turnOnCalls  int
	turnOffCalls int
	tempWrites   []float64
	powerWrites  []int
}

func (f *fakeDevice) ID() string      { return f.id }
func (f *fakeDevice) Name() string    { return f.name }
func (f *fakeDevice) Product() string { return f.product }

func (f *fakeDevice) Update() error {
	f.updateCalls++
	return f.updateErr
}

func (f *fakeDevice) TurnOn() error {
	f.turnOnCalls++
	return f.writeErr
}

func (f *fakeDevice) TurnOff() error {
	f.turnOffCalls++
	return f.writeErr
}

func (f *fakeDevice) SetTargetAirTemperature(value float64) error {
	f.tempWrites = append(f.tempWrites, value)
	return f.writeErr
}

func (f *fakeDevice) SetPower(level int) error {
	f.powerWrites = append(f.powerWrites, level)
	return f.writeErr
}

func (f *fakeDevice) Status() int                   { return f.status }
func (f *fakeDevice) StatusTranslated() string      { return f.statusTranslated }
func (f *fakeDevice) AirTemperature() float64       { return f.airTemp }
func (f *fakeDevice) TargetAirTemperature() float64 { return f.targetAirTemp }
func (f *fakeDevice) GasTemperature() float64       { return f.gasTemp }
func (f *fakeDevice) RealPower() int                { return f.realPower }
func (f *fakeDevice) Power() int                    { return f.power }
func (f *fakeDevice) MinTemperature() float64       { return f.minTemp }
func (f *fakeDevice) MaxTemperature() float64       { return f.maxTemp }

func newTestClimate(device *fakeDevice) *heaterClimate {
	if device.name == "" {
		device.name = "Living Room Stove"
	}
	return newHeaterClimate(device, zap.NewNop())
}

func TestHeaterClimate_Metadata(t *testing.T) {
	device := &fakeDevice{
		id:      "ABC123",
		name:    "Living Room Stove",
		product: "Giulia EVO",
		minTemp: 15,
		maxTemp: 30,
	}
	h := newTestClimate(device)

	if h.UniqueID() != "ABC123" {
		t.Errorf("Expected unique ID ABC123, got %s", h.UniqueID())
	}
	if h.Name() != "Living Room Stove" {
		t.Errorf("Expected name Living Room Stove, got %s", h.Name())
	}
	info := h.DeviceInfo()
	if info.Manufacturer != "Micronova" {
		t.Errorf("Expected manufacturer Micronova, got %s", info.Manufacturer)
	}
	if info.Model != "Giulia EVO" {
		t.Errorf("Expected model Giulia EVO, got %s", info.Model)
	}
	if !reflect.DeepEqual(info.Identifiers, []string{"ABC123"}) {
		t.Errorf("Expected identifiers [ABC123], got %v", info.Identifiers)
	}
	if h.TemperatureUnit() != "C" {
		t.Errorf("Expected temperature unit C, got %s", h.TemperatureUnit())
	}
	if h.Precision() != 1.0 {
		t.Errorf("Expected precision 1.0, got %v", h.Precision())
	}
	if h.MinTemp() != 15 || h.MaxTemp() != 30 {
		t.Errorf("Expected temperature range 15..30, got %v..%v", h.MinTemp(), h.MaxTemp())
	}
	if !reflect.DeepEqual(h.Modes(), []climate.Mode{climate.ModeHeat, climate.ModeOff}) {
		t.Errorf("Unexpected modes: %v", h.Modes())
	}
	if !reflect.DeepEqual(h.FanModes(), []string{"1", "2", "3", "4", "5"}) {
		t.Errorf("Unexpected fan modes: %v", h.FanModes())
	}
}

func TestHeaterClimate_Mode(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected climate.Mode
	}{
		{
			name:     "stove off",
			status:   0,
			expected: climate.ModeOff,
		},
		{
			name:     "stove burning",
			status:   6,
			expected: climate.ModeHeat,
		},
		{
			name:     "stove igniting",
			status:   1,
			expected: climate.ModeHeat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestClimate(&fakeDevice{status: tt.status})
			if got := h.Mode(); got != tt.expected {
				t.Errorf("Expected mode %s for status %d, got %s", tt.expected, tt.status, got)
			}
		})
	}
}

func TestHeaterClimate_Action(t *testing.T) {
	tests := []struct {
		name             string
		statusTranslated string
		expected         climate.Action
	}{
		{
			name:             "burning",
			statusTranslated: "ON",
			expected:         climate.ActionHeating,
		},
		{
			name:             "cleaning fire-pot",
			statusTranslated: "CLEANING FIRE-POT",
			expected:         climate.ActionHeating,
		},
		{
			name:             "lighting flame",
			statusTranslated: "FLAME LIGHT",
			expected:         climate.ActionHeating,
		},
		{
			name:             "off",
			statusTranslated: "OFF",
			expected:         climate.ActionOff,
		},
		{
			name:             "standby counts as idle",
			statusTranslated: "STANDBY",
			expected:         climate.ActionIdle,
		},
		{
			name:             "cooldown counts as idle",
			statusTranslated: "COOL",
			expected:         climate.ActionIdle,
		},
		{
			name:             "empty status counts as idle",
			statusTranslated: "",
			expected:         climate.ActionIdle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestClimate(&fakeDevice{statusTranslated: tt.statusTranslated})
			if got := h.Action(); got != tt.expected {
				t.Errorf("Expected action %s for status %q, got %s", tt.expected, tt.statusTranslated, got)
			}
		})
	}
}

func TestHeaterClimate_TargetTemperatureHalvesRegister(t *testing.T) {
	// The stove stores 43 for a 21.5 degree setpoint
	h := newTestClimate(&fakeDevice{targetAirTemp: 43})
	if got := h.TargetTemperature(); got != 21.5 {
		t.Errorf("Expected target temperature 21.5, got %v", got)
	}
}

func TestHeaterClimate_CurrentTemperatureIsRaw(t *testing.T) {
	h := newTestClimate(&fakeDevice{airTemp: 19.8})
	if got := h.CurrentTemperature(); got != 19.8 {
		t.Errorf("Expected current temperature 19.8, got %v", got)
	}
}

func TestHeaterClimate_SetTemperatureDoublesValue(t *testing.T) {
	device := &fakeDevice{}
	h := newTestClimate(device)

	temp := 21.5
	h.SetTemperature(&temp)

	if len(device.tempWrites) != 1 {
		t.Fatalf("Expected 1 temperature write, got %d", len(device.tempWrites))
	}
	if device.tempWrites[0] != 43 {
		t.Errorf("Expected register write 43 for 21.5 degrees, got %v", device.tempWrites[0])
	}
}

func TestHeaterClimate_SetTemperatureNilIgnored(t *testing.T) {
	device := &fakeDevice{}
	h := newTestClimate(device)

	h.SetTemperature(nil)

	if len(device.tempWrites) != 0 {
		t.Errorf("Expected no writes for nil temperature, got %d", len(device.tempWrites))
	}
}

func TestHeaterClimate_FanMode(t *testing.T) {
	tests := []struct {
		name     string
		power    int
		expected string
	}{
		{
			name:     "known level",
			power:    3,
			expected: "3",
		},
		{
			name:     "highest level",
			power:    5,
			expected: "5",
		},
		{
			name:     "zero falls back to lowest",
			power:    0,
			expected: "1",
		},
		{
			name:     "out of range falls back to lowest",
			power:    7,
			expected: "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestClimate(&fakeDevice{power: tt.power})
			if got := h.FanMode(); got != tt.expected {
				t.Errorf("Expected fan mode %s for power %d, got %s", tt.expected, tt.power, got)
			}
		})
	}
}

func TestHeaterClimate_SetFanMode(t *testing.T) {
	tests := []struct {
		name           string
		mode           string
		expectedWrites []int
	}{
		{
			name:           "numeric level written raw",
			mode:           "4",
			expectedWrites: []int{4},
		},
		{
			name:           "empty mode ignored",
			mode:           "",
			expectedWrites: nil,
		},
		{
			name:           "non-numeric mode ignored",
			mode:           "high",
			expectedWrites: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := &fakeDevice{}
			h := newTestClimate(device)

			h.SetFanMode(tt.mode)

			if !reflect.DeepEqual(device.powerWrites, tt.expectedWrites) {
				t.Errorf("Expected power writes %v, got %v", tt.expectedWrites, device.powerWrites)
			}
		})
	}
}

func TestHeaterClimate_SetMode(t *testing.T) {
	tests := []struct {
		name            string
		mode            climate.Mode
		expectedOnCalls int
		expectedOffCall int
	}{
		{
			name:            "off maps to turn off",
			mode:            climate.ModeOff,
			expectedOnCalls: 0,
			expectedOffCall: 1,
		},
		{
			name:            "heat maps to turn on",
			mode:            climate.ModeHeat,
			expectedOnCalls: 1,
			expectedOffCall: 0,
		},
		{
			name:            "unsupported mode is a no-op",
			mode:            climate.Mode("cool"),
			expectedOnCalls: 0,
			expectedOffCall: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := &fakeDevice{}
			h := newTestClimate(device)

			h.SetMode(tt.mode)

			if device.turnOnCalls != tt.expectedOnCalls {
				t.Errorf("Expected %d turn on calls, got %d", tt.expectedOnCalls, device.turnOnCalls)
			}
			if device.turnOffCalls != tt.expectedOffCall {
				t.Errorf("Expected %d turn off calls, got %d", tt.expectedOffCall, device.turnOffCalls)
			}
		})
	}
}

func TestHeaterClimate_Attributes(t *testing.T) {
	h := newTestClimate(&fakeDevice{
		status:           6,
		statusTranslated: "ON",
		gasTemp:          142.5,
		realPower:        3,
	})

	expected := map[string]interface{}{
		"device_status":       6,
		"human_device_status": "ON",
		"smoke_temperature":   142.5,
		"real_power":          3,
	}
	if got := h.Attributes(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected attributes %v, got %v", expected, got)
	}
}

func TestHeaterClimate_WriteErrorsSwallowed(t *testing.T) {
	device := &fakeDevice{writeErr: errors.New("cloud unreachable")}
	h := newTestClimate(device)

	// None of these may panic or surface the error
	h.TurnOn()
	h.TurnOff()
	temp := 20.0
	h.SetTemperature(&temp)
	h.SetFanMode("2")

	if device.turnOnCalls != 1 || device.turnOffCalls != 1 {
		t.Errorf("Expected the writes to be attempted despite errors")
	}
	if len(device.tempWrites) != 1 || len(device.powerWrites) != 1 {
		t.Errorf("Expected temperature and power writes to be attempted despite errors")
	}
}

func TestHeaterClimate_UpdatePropagatesError(t *testing.T) {
	device := &fakeDevice{updateErr: errors.New("buffer read failed")}
	h := newTestClimate(device)

	if err := h.Update(); err == nil {
		t.Error("Expected update error to propagate to the caller")
	}
	if device.updateCalls != 1 {
		t.Errorf("Expected 1 update call, got %d", device.updateCalls)
	}
}
