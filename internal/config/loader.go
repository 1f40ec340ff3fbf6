package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// MQTTConfig is the broker connection block of bridge.yaml
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
}

// BridgeConfig represents the bridge.yaml structure. Environment variables
// override these values in main.
type BridgeConfig struct {
	MQTT MQTTConfig `yaml:"mqtt"`

	// DiscoveryPrefix is the Home Assistant MQTT discovery prefix.
	DiscoveryPrefix string `yaml:"discovery_prefix"`

	// TopicPrefix is the root of all state and command topics.
	TopicPrefix string `yaml:"topic_prefix"`

	// PollInterval is the device poll cadence in Go duration syntax,
	// e.g. "60s".
	PollInterval string `yaml:"poll_interval"`

	// APIPort is the HTTP API listen port.
	APIPort int `yaml:"api_port"`
}

// Default returns the bridge configuration used when bridge.yaml is absent.
func Default() *BridgeConfig {
	return &BridgeConfig{
		MQTT:            MQTTConfig{ClientID: "stovebridge"},
		DiscoveryPrefix: "homeassistant",
		TopicPrefix:     "stovebridge",
		PollInterval:    "60s",
		APIPort:         8081,
	}
}

// Loader manages configuration file loading
type Loader struct {
	configDir string
	logger    *zap.Logger
}

// NewLoader creates a new configuration loader
func NewLoader(configDir string, logger *zap.Logger) *Loader {
	return &Loader{
		configDir: configDir,
		logger:    logger,
	}
}

// LoadBridgeConfig loads bridge.yaml from the config directory. A missing
// file is not an error: the defaults are returned. Keys absent from the file
// keep their default values.
func (l *Loader) LoadBridgeConfig() (*BridgeConfig, error) {
	cfg := Default()

	path := filepath.Join(l.configDir, "bridge.yaml")
	l.logger.Debug("Loading bridge config", zap.String("path", path))

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		l.logger.Info("No bridge.yaml found, using defaults", zap.String("path", path))
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read bridge config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse bridge config: %w", err)
	}

	l.logger.Info("Bridge config loaded successfully", zap.String("path", path))
	return cfg, nil
}

// Exists reports whether a named config file is present in the config
// directory. Plugins use this to decide whether they are configured at all.
func (l *Loader) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(l.configDir, name))
	return err == nil
}
