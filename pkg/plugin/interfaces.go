// Package plugin provides the plugin system interfaces and registry for the
// bridge. Device integrations register themselves with the global registry
// using init() functions, allowing for compile-time plugin selection and
// override mechanisms for private implementations.
package plugin

import "github.com/prometheus/client_golang/prometheus"

// Plugin is the core interface that all device integrations implement.
// A plugin owns one vendor account: it authenticates, discovers devices and
// registers climate entities with the bridge.
type Plugin interface {
	// Name returns the unique identifier for this plugin.
	// This name is used for registration and logging.
	Name() string

	// Start performs the integration's setup:
	// - Connects to the vendor backend
	// - Discovers devices and registers entities with the bridge
	// - Returns error if setup fails; the daemon logs the failure and
	//   keeps running without the plugin's entities
	Start() error

	// Stop gracefully shuts down the plugin.
	Stop()
}

// MetricsProvider is an optional interface for plugins that expose
// Prometheus collectors, e.g. counters over their vendor API traffic. The
// daemon registers the collectors on its metrics registry after creating
// the plugin.
type MetricsProvider interface {
	Collectors() []prometheus.Collector
}

// Factory is a function that creates a new plugin instance given a context.
// Factories are registered with the global registry and called during
// application startup to instantiate plugins. Factories only read
// configuration and wire dependencies; network I/O belongs in Start.
type Factory func(ctx *Context) (Plugin, error)
