// Package evacalor bridges Eva Calor pellet stoves into the climate entity
// registry. The stoves are cloud-only devices: every read and write goes
// through Micronova's Agua IOT platform, which this plugin reaches via
// internal/aguaiot.
package evacalor

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"stovebridge/internal/aguaiot"
	"stovebridge/pkg/climate"
	"stovebridge/pkg/plugin"
)

func init() {
	plugin.Register(plugin.PluginInfo{
		Name:        "evacalor",
		Description: "Eva Calor pellet stoves via Micronova's Agua IOT cloud",
		Priority:    plugin.PriorityDefault,
		Factory:     createPlugin,
	})
}

// createPlugin creates a new Eva Calor plugin instance from the plugin context.
func createPlugin(ctx *plugin.Context) (plugin.Plugin, error) {
	configPath := filepath.Join(ctx.ConfigDir, "evacalor.yaml")
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("evacalor config: %w", err)
	}
	return NewPlugin(config, ctx.Entities, ctx.Logger), nil
}

// Plugin connects one Agua IOT account and registers its stove as a climate
// entity. Accounts normally hold a single stove; if more are present only
// the first is bridged.
type Plugin struct {
	config   *Config
	entities climate.Registrar
	logger   *zap.Logger

	requests *prometheus.CounterVec

	// discover is replaced by tests to avoid real cloud traffic.
	discover func() ([]heaterDevice, error)
}

// NewPlugin creates the plugin without touching the network.
func NewPlugin(config *Config, entities climate.Registrar, logger *zap.Logger) *Plugin {
	p := &Plugin{
		config:   config,
		entities: entities,
		logger:   logger.Named("evacalor"),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stovebridge_vendor_requests_total",
			Help: "Agua IOT API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
	}
	p.discover = p.cloudDevices
	return p
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "evacalor"
}

// Start logs in to the cloud, discovers the account's stoves and registers
// the first one with the bridge. Any failure is logged with its class and
// returned; the daemon keeps running without the entity.
func (p *Plugin) Start() error {
	p.logger.Info("Connecting to Agua IOT", zap.String("account", p.config.Email))

	devices, err := p.discover()
	if err != nil {
		p.logSetupFailure(err)
		return err
	}
	if len(devices) == 0 {
		p.logger.Error("No devices registered to account", zap.String("account", p.config.Email))
		return fmt.Errorf("no devices registered to account %s", p.config.Email)
	}
	if len(devices) > 1 {
		p.logger.Warn("Multiple devices on account, bridging only the first",
			zap.Int("count", len(devices)))
	}

	device := devices[0]
	if err := p.entities.Add(newHeaterClimate(device, p.logger)); err != nil {
		return fmt.Errorf("failed to register stove %s: %w", device.Name(), err)
	}

	p.logger.Info("Stove registered",
		zap.String("device_id", device.ID()),
		zap.String("name", device.Name()),
		zap.String("product", device.Product()))
	return nil
}

// Stop shuts the plugin down. The cloud session is stateless on our side,
// so there is nothing to tear down.
func (p *Plugin) Stop() {
	p.logger.Info("Eva Calor plugin stopped")
}

// Collectors implements plugin.MetricsProvider.
func (p *Plugin) Collectors() []prometheus.Collector {
	return []prometheus.Collector{p.requests}
}

// cloudDevices builds the real cloud client and lists the account's stoves.
func (p *Plugin) cloudDevices() ([]heaterDevice, error) {
	client := aguaiot.NewClient(aguaiot.Config{
		Email:    p.config.Email,
		Password: p.config.Password,
		UUID:     p.config.UUID,
		APIRoot:  p.config.APIRoot,
		Observer: p.observeRequest,
	})

	devices, err := client.Devices()
	if err != nil {
		return nil, err
	}
	result := make([]heaterDevice, 0, len(devices))
	for _, d := range devices {
		result = append(result, d)
	}
	return result, nil
}

// observeRequest feeds the vendor request counter from the client's observer
// hook.
func (p *Plugin) observeRequest(endpoint string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.requests.WithLabelValues(endpoint, outcome).Inc()
}

// logSetupFailure logs a connection attempt failure with its class so the
// operator can tell bad credentials from a network problem.
func (p *Plugin) logSetupFailure(err error) {
	var unauthorized *aguaiot.UnauthorizedError
	var connection *aguaiot.ConnectionError
	switch {
	case errors.As(err, &unauthorized):
		p.logger.Error("Agua IOT rejected the credentials",
			zap.String("account", unauthorized.Email))
	case errors.As(err, &connection):
		p.logger.Error("Could not reach the Agua IOT cloud",
			zap.String("url", connection.URL),
			zap.Error(connection.Err))
	default:
		p.logger.Error("Unknown error while connecting to Agua IOT", zap.Error(err))
	}
}
