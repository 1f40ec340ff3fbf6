package aguaiot

// registers is the dynamic state block returned by the cloud's buffer read.
// set_air_temperature is stored by the stove in half-degree units: the value
// on the wire is twice the temperature shown on the display.
type registers struct {
	Status            int     `json:"status"`
	StatusTranslated  string  `json:"status_translated"`
	AirTemperature    float64 `json:"air_temperature"`
	SetAirTemperature float64 `json:"set_air_temperature"`
	GasTemperature    float64 `json:"gas_temperature"`
	RealPower         int     `json:"real_power"`
	SetPower          int     `json:"set_power"`
	MinTemp           float64 `json:"min_temp"`
	MaxTemp           float64 `json:"max_temp"`
}

// Device is the remote-backed handle for one stove. Identity fields come from
// the device list; the register block is refreshed by Update and is stale in
// between.
type Device struct {
	client  *Client
	id      string
	name    string
	product string

	regs registers
}

// ID returns the vendor device identifier.
func (d *Device) ID() string { return d.id }

// Name returns the user-assigned device name.
func (d *Device) Name() string { return d.name }

// Product returns the vendor product name.
func (d *Device) Product() string { return d.product }

// Update refreshes the register block from the cloud. On failure the handle
// keeps the previous values.
func (d *Device) Update() error {
	regs, err := d.client.readBuffer(d.id)
	if err != nil {
		return err
	}
	d.regs = regs
	return nil
}

// TurnOn starts the stove.
func (d *Device) TurnOn() error {
	return d.client.writeRegister(d.id, "status", 1)
}

// TurnOff shuts the stove down.
func (d *Device) TurnOff() error {
	return d.client.writeRegister(d.id, "status", 0)
}

// SetTargetAirTemperature writes the target register. The value is the raw
// half-degree encoding; callers convert from display degrees themselves.
func (d *Device) SetTargetAirTemperature(value float64) error {
	return d.client.writeRegister(d.id, "set_air_temperature", value)
}

// SetPower writes the power (fan) level register.
func (d *Device) SetPower(level int) error {
	return d.client.writeRegister(d.id, "set_power", level)
}

func (d *Device) Status() int                   { return d.regs.Status }
func (d *Device) StatusTranslated() string      { return d.regs.StatusTranslated }
func (d *Device) AirTemperature() float64       { return d.regs.AirTemperature }
func (d *Device) TargetAirTemperature() float64 { return d.regs.SetAirTemperature }
func (d *Device) GasTemperature() float64       { return d.regs.GasTemperature }
func (d *Device) RealPower() int                { return d.regs.RealPower }
func (d *Device) Power() int                    { return d.regs.SetPower }
func (d *Device) MinTemperature() float64       { return d.regs.MinTemp }
func (d *Device) MaxTemperature() float64       { return d.regs.MaxTemp }
