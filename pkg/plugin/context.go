package plugin

import (
	"go.uber.org/zap"

	"stovebridge/pkg/climate"
)

// Context provides dependencies to plugins during initialization.
// It wraps the core services needed by all plugins in a single struct
// for cleaner constructor signatures.
//
// Note: Entities uses the interface type from pkg/climate, which allows
// external packages to work with it. The actual implementation from
// internal/bridge satisfies this interface.
type Context struct {
	// Entities accepts the climate entities a plugin discovers during
	// Start. Registered entities are announced to Home Assistant and
	// polled on the bridge schedule.
	Entities climate.Registrar

	// Logger is a structured logger for the plugin to use.
	// Plugins should use logger.Named("pluginname") for namespacing.
	Logger *zap.Logger

	// ReadOnly indicates whether the application is in read-only mode.
	// When true, entities are still polled and published but commands
	// arriving from the broker are dropped before they reach the device.
	ReadOnly bool

	// ConfigDir is the path to the configuration directory.
	// Plugins that need configuration files can find them here.
	ConfigDir string
}

// NewContext creates a new plugin context with all required dependencies.
func NewContext(
	entities climate.Registrar,
	logger *zap.Logger,
	readOnly bool,
	configDir string,
) *Context {
	return &Context{
		Entities:  entities,
		Logger:    logger,
		ReadOnly:  readOnly,
		ConfigDir: configDir,
	}
}
