package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"stovebridge/internal/api"
	"stovebridge/internal/bridge"
	"stovebridge/internal/clock"
	"stovebridge/internal/config"
	"stovebridge/internal/hass"
	"stovebridge/internal/metrics"
	"stovebridge/pkg/plugin"

	// Device integrations register themselves at import time.
	_ "stovebridge/internal/plugins/evacalor"
)

// version is overridden at build time with -ldflags.
var version = "dev"

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, using environment variables")
	}

	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		configDir = "config"
	}
	readOnly := os.Getenv("READ_ONLY") == "true"

	loader := config.NewLoader(configDir, logger)
	cfg, err := loader.LoadBridgeConfig()
	if err != nil {
		logger.Fatal("Failed to load bridge config", zap.Error(err))
	}
	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker == "" {
		logger.Fatal("MQTT_BROKER environment variable (or mqtt.broker in bridge.yaml) must be set")
	}

	pollInterval, err := time.ParseDuration(cfg.PollInterval)
	if err != nil {
		logger.Fatal("Invalid poll interval", zap.String("poll_interval", cfg.PollInterval), zap.Error(err))
	}

	logger.Info("Starting Stove Bridge",
		zap.String("version", version),
		zap.String("broker", cfg.MQTT.Broker),
		zap.Duration("poll_interval", pollInterval),
		zap.Bool("read_only", readOnly))

	availabilityTopic := cfg.TopicPrefix + "/availability"

	// Connect to the MQTT broker
	mqttClient := hass.NewMQTTClient(hass.Config{
		BrokerURL:         cfg.MQTT.Broker,
		Username:          cfg.MQTT.Username,
		Password:          cfg.MQTT.Password,
		ClientID:          cfg.MQTT.ClientID,
		AvailabilityTopic: availabilityTopic,
	}, logger)

	if err := mqttClient.Connect(); err != nil {
		logger.Fatal("Failed to connect to MQTT broker", zap.Error(err))
	}
	defer mqttClient.Disconnect()

	logger.Info("Connected to MQTT broker")

	if readOnly {
		logger.Info("Running in READ-ONLY mode - commands from Home Assistant will be dropped")
	}

	// Create the bridge that announces entities and relays state
	br := bridge.New(bridge.Config{
		DiscoveryPrefix:   cfg.DiscoveryPrefix,
		TopicPrefix:       cfg.TopicPrefix,
		AvailabilityTopic: availabilityTopic,
		ReadOnly:          readOnly,
		Version:           version,
	}, mqttClient, clock.NewRealClock(), logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewCollector(br))

	// Start device integrations. A failing integration is logged and
	// skipped; the daemon keeps serving whatever did come up.
	pluginCtx := plugin.NewContext(br, logger, readOnly, configDir)

	var running []plugin.Plugin
	for _, info := range plugin.List() {
		p, err := info.Factory(pluginCtx)
		if err != nil {
			logger.Error("Failed to create plugin",
				zap.String("plugin", info.Name),
				zap.Error(err))
			continue
		}

		if provider, ok := p.(plugin.MetricsProvider); ok {
			for _, collector := range provider.Collectors() {
				registry.MustRegister(collector)
			}
		}

		if err := p.Start(); err != nil {
			logger.Error("Plugin failed to start, continuing without it",
				zap.String("plugin", info.Name),
				zap.Error(err))
			continue
		}

		logger.Info("Plugin started", zap.String("plugin", info.Name))
		running = append(running, p)
	}

	logger.Info("Device integrations ready",
		zap.Int("plugins", len(running)),
		zap.Int("entities", br.Count()))

	// Poll devices on the configured cadence
	scheduler := bridge.NewScheduler(br, clock.NewRealClock(), pollInterval, logger)
	scheduler.Start()

	// Serve the HTTP API and Prometheus metrics
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	apiServer := api.NewServer(br, mqttClient, metricsHandler, logger, cfg.APIPort)
	if err := apiServer.Start(); err != nil {
		logger.Error("Failed to start HTTP API server", zap.Error(err))
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Application running. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-sigChan

	logger.Info("Shutting down gracefully...")

	scheduler.Stop()
	for _, p := range running {
		p.Stop()
	}
	if err := apiServer.Stop(); err != nil {
		logger.Error("Failed to stop HTTP API server", zap.Error(err))
	}
}

// applyEnvOverrides lets environment variables win over bridge.yaml, so a
// container deployment needs no config file at all.
func applyEnvOverrides(cfg *config.BridgeConfig) {
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.ClientID = v
	}
	if v := os.Getenv("DISCOVERY_PREFIX"); v != "" {
		cfg.DiscoveryPrefix = v
	}
	if v := os.Getenv("TOPIC_PREFIX"); v != "" {
		cfg.TopicPrefix = v
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		cfg.PollInterval = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.APIPort = port
		}
	}
}
