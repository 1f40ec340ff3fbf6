// Package metrics exposes the bridged stoves as Prometheus metrics. The
// collector reads the bridge's entity snapshots on every scrape; it never
// touches the vendor cloud itself.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"stovebridge/internal/bridge"
	"stovebridge/pkg/climate"
)

// StatusSource provides entity snapshots. Implemented by *bridge.Bridge.
type StatusSource interface {
	Statuses() []bridge.EntityStatus
}

// Collector translates entity snapshots into gauges, labelled by device.
type Collector struct {
	source StatusSource

	entities    prometheus.Gauge
	currentTemp *prometheus.GaugeVec
	targetTemp  *prometheus.GaugeVec
	smokeTemp   *prometheus.GaugeVec
	realPower   *prometheus.GaugeVec
	status      *prometheus.GaugeVec
	heaterOn    *prometheus.GaugeVec
	pollSuccess *prometheus.GaugeVec
	lastPoll    *prometheus.GaugeVec
}

// NewCollector creates a collector reading from source.
func NewCollector(source StatusSource) *Collector {
	labels := []string{"device_id", "name"}
	return &Collector{
		source: source,
		entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stovebridge_entities",
			Help: "Number of bridged climate entities.",
		}),
		currentTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stovebridge_current_temperature_celsius",
			Help: "Room temperature measured by the stove.",
		}, labels),
		targetTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stovebridge_target_temperature_celsius",
			Help: "Configured target temperature.",
		}, labels),
		smokeTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stovebridge_smoke_temperature_celsius",
			Help: "Exhaust smoke temperature.",
		}, labels),
		realPower: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stovebridge_real_power",
			Help: "Power level the stove is actually running at.",
		}, labels),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stovebridge_device_status",
			Help: "Raw vendor status register.",
		}, labels),
		heaterOn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stovebridge_heater_on",
			Help: "Whether the stove is in heat mode (1) or off (0).",
		}, labels),
		pollSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stovebridge_poll_success",
			Help: "Whether the last poll of this device succeeded (1) or failed (0).",
		}, labels),
		lastPoll: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stovebridge_last_poll_timestamp_seconds",
			Help: "Time of the last successful poll (epoch seconds).",
		}, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.entities.Describe(ch)
	c.currentTemp.Describe(ch)
	c.targetTemp.Describe(ch)
	c.smokeTemp.Describe(ch)
	c.realPower.Describe(ch)
	c.status.Describe(ch)
	c.heaterOn.Describe(ch)
	c.pollSuccess.Describe(ch)
	c.lastPoll.Describe(ch)
}

// Collect implements prometheus.Collector. Every scrape reflects the
// snapshots of the most recent polls.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	statuses := c.source.Statuses()
	c.entities.Set(float64(len(statuses)))

	for _, s := range statuses {
		labels := prometheus.Labels{
			"device_id": s.UniqueID,
			"name":      s.Name,
		}

		c.currentTemp.With(labels).Set(s.CurrentTemperature)
		c.targetTemp.With(labels).Set(s.TargetTemperature)
		c.heaterOn.With(labels).Set(boolValue(s.Mode == climate.ModeHeat))
		c.pollSuccess.With(labels).Set(boolValue(s.LastPollOK))

		if !s.LastPoll.IsZero() {
			c.lastPoll.With(labels).Set(float64(s.LastPoll.Unix()))
		}
		if v, ok := attrFloat(s.Attributes, "smoke_temperature"); ok {
			c.smokeTemp.With(labels).Set(v)
		}
		if v, ok := attrFloat(s.Attributes, "real_power"); ok {
			c.realPower.With(labels).Set(v)
		}
		if v, ok := attrFloat(s.Attributes, "device_status"); ok {
			c.status.With(labels).Set(v)
		}
	}

	c.entities.Collect(ch)
	c.currentTemp.Collect(ch)
	c.targetTemp.Collect(ch)
	c.smokeTemp.Collect(ch)
	c.realPower.Collect(ch)
	c.status.Collect(ch)
	c.heaterOn.Collect(ch)
	c.pollSuccess.Collect(ch)
	c.lastPoll.Collect(ch)
}

// attrFloat pulls a numeric attribute; the map holds ints and floats
// depending on the register type.
func attrFloat(attrs map[string]interface{}, key string) (float64, bool) {
	switch v := attrs[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
