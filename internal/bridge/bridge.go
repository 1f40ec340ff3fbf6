// Package bridge owns the registered climate entities. It announces them to
// Home Assistant via MQTT discovery, publishes their state after every poll
// and feeds broker commands back into the devices.
package bridge

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"stovebridge/internal/clock"
	"stovebridge/internal/hass"
	"stovebridge/pkg/climate"
)

// Config holds the bridge settings.
type Config struct {
	// DiscoveryPrefix is Home Assistant's MQTT discovery prefix,
	// normally "homeassistant".
	DiscoveryPrefix string

	// TopicPrefix roots all state and command topics.
	TopicPrefix string

	// AvailabilityTopic is the shared online/offline topic announced in
	// every discovery payload. The MQTT client owns publishing to it.
	AvailabilityTopic string

	// ReadOnly drops broker commands instead of forwarding them to the
	// devices. State still flows out normally.
	ReadOnly bool

	// Version goes into the discovery origin block.
	Version string
}

// topicSet is the per-entity topic layout under the topic prefix.
type topicSet struct {
	discovery          string
	currentTemperature string
	temperatureState   string
	temperatureCommand string
	modeState          string
	modeCommand        string
	action             string
	fanModeState       string
	fanModeCommand     string
	powerCommand       string
	attributes         string
}

// boundEntity pairs a registered entity with its topics and poll bookkeeping.
type boundEntity struct {
	entity     climate.Entity
	topics     topicSet
	lastPollOK bool
	lastPoll   time.Time
	polls      int
	failures   int
}

// Bridge connects climate entities to the MQTT broker. All entity access
// goes through the bridge mutex, so polls and commands are serialized and
// the entities themselves need no locking.
type Bridge struct {
	cfg    Config
	client hass.Client
	clock  clock.Clock
	logger *zap.Logger

	mu       sync.Mutex
	entities map[string]*boundEntity
	order    []string
}

// New creates a bridge. The MQTT client must already be constructed; it does
// not have to be connected yet.
func New(cfg Config, client hass.Client, clk clock.Clock, logger *zap.Logger) *Bridge {
	return &Bridge{
		cfg:      cfg,
		client:   client,
		clock:    clk,
		logger:   logger.Named("bridge"),
		entities: make(map[string]*boundEntity),
		order:    make([]string, 0),
	}
}

// Add registers an entity, runs its first poll, wires up its command topics
// and announces it via MQTT discovery. Implements climate.Registrar.
func (b *Bridge) Add(entity climate.Entity) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := entity.UniqueID()
	if _, exists := b.entities[id]; exists {
		return fmt.Errorf("entity %s already registered", id)
	}

	bound := &boundEntity{
		entity: entity,
		topics: b.topicsFor(id),
	}

	// Poll before announcing, so the first published state is real.
	// A failed poll still registers the entity; state follows on the
	// next successful poll.
	bound.polls++
	if err := entity.Update(); err != nil {
		bound.failures++
		b.logger.Warn("Initial poll failed, announcing without state",
			zap.String("entity", id),
			zap.Error(err))
	} else {
		bound.lastPollOK = true
		bound.lastPoll = b.clock.Now()
	}

	b.entities[id] = bound
	b.order = append(b.order, id)

	b.subscribeCommands(bound)

	if err := b.announce(bound); err != nil {
		delete(b.entities, id)
		b.order = b.order[:len(b.order)-1]
		return fmt.Errorf("failed to announce %s: %w", id, err)
	}

	if bound.lastPollOK {
		b.publishState(bound)
	}

	b.logger.Info("Entity registered",
		zap.String("entity", id),
		zap.String("name", entity.Name()))
	return nil
}

// RefreshAll polls every entity in registration order and publishes the
// resulting state. A failed poll publishes nothing; the retained messages
// keep the previous state visible.
func (b *Bridge) RefreshAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range b.order {
		b.refresh(b.entities[id])
	}
}

func (b *Bridge) refresh(bound *boundEntity) {
	id := bound.entity.UniqueID()
	bound.polls++
	if err := bound.entity.Update(); err != nil {
		bound.lastPollOK = false
		bound.failures++
		b.logger.Warn("Poll failed, keeping last published state",
			zap.String("entity", id),
			zap.Error(err))
		return
	}
	bound.lastPollOK = true
	bound.lastPoll = b.clock.Now()
	b.publishState(bound)
}

// Count returns the number of registered entities.
func (b *Bridge) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entities)
}

// EntityStatus is a point-in-time view of one bridged entity, consumed by
// the HTTP API and the metrics collector.
type EntityStatus struct {
	UniqueID           string                 `json:"unique_id"`
	Name               string                 `json:"name"`
	Manufacturer       string                 `json:"manufacturer"`
	Model              string                 `json:"model"`
	Mode               climate.Mode           `json:"mode"`
	Action             climate.Action         `json:"action"`
	CurrentTemperature float64                `json:"current_temperature"`
	TargetTemperature  float64                `json:"target_temperature"`
	FanMode            string                 `json:"fan_mode"`
	Attributes         map[string]interface{} `json:"attributes"`
	LastPollOK         bool                   `json:"last_poll_ok"`
	LastPoll           time.Time              `json:"last_poll"`
	Polls              int                    `json:"polls"`
	Failures           int                    `json:"failures"`
}

// Statuses returns a snapshot of every registered entity in registration
// order.
func (b *Bridge) Statuses() []EntityStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]EntityStatus, 0, len(b.order))
	for _, id := range b.order {
		bound := b.entities[id]
		e := bound.entity
		info := e.DeviceInfo()
		result = append(result, EntityStatus{
			UniqueID:           e.UniqueID(),
			Name:               e.Name(),
			Manufacturer:       info.Manufacturer,
			Model:              info.Model,
			Mode:               e.Mode(),
			Action:             e.Action(),
			CurrentTemperature: e.CurrentTemperature(),
			TargetTemperature:  e.TargetTemperature(),
			FanMode:            e.FanMode(),
			Attributes:         e.Attributes(),
			LastPollOK:         bound.lastPollOK,
			LastPoll:           bound.lastPoll,
			Polls:              bound.polls,
			Failures:           bound.failures,
		})
	}
	return result
}

func (b *Bridge) topicsFor(id string) topicSet {
	base := b.cfg.TopicPrefix + "/" + id
	return topicSet{
		discovery:          b.cfg.DiscoveryPrefix + "/climate/" + id + "/config",
		currentTemperature: base + "/current_temperature",
		temperatureState:   base + "/target_temperature",
		temperatureCommand: base + "/target_temperature/set",
		modeState:          base + "/mode",
		modeCommand:        base + "/mode/set",
		action:             base + "/action",
		fanModeState:       base + "/fan_mode",
		fanModeCommand:     base + "/fan_mode/set",
		powerCommand:       base + "/power/set",
		attributes:         base + "/attributes",
	}
}

// announce publishes the retained discovery payload for an entity.
func (b *Bridge) announce(bound *boundEntity) error {
	e := bound.entity
	info := e.DeviceInfo()

	modes := make([]string, 0, len(e.Modes()))
	for _, mode := range e.Modes() {
		modes = append(modes, string(mode))
	}

	cfg := hass.ClimateConfig{
		Name:     e.Name(),
		UniqueID: e.UniqueID(),

		Modes:    modes,
		FanModes: e.FanModes(),

		MinTemp:         e.MinTemp(),
		MaxTemp:         e.MaxTemp(),
		Precision:       e.Precision(),
		TempStep:        e.Precision(),
		TemperatureUnit: e.TemperatureUnit(),

		CurrentTemperatureTopic: bound.topics.currentTemperature,
		TemperatureStateTopic:   bound.topics.temperatureState,
		TemperatureCommandTopic: bound.topics.temperatureCommand,
		ModeStateTopic:          bound.topics.modeState,
		ModeCommandTopic:        bound.topics.modeCommand,
		ActionTopic:             bound.topics.action,
		FanModeStateTopic:       bound.topics.fanModeState,
		FanModeCommandTopic:     bound.topics.fanModeCommand,
		PowerCommandTopic:       bound.topics.powerCommand,
		PayloadOn:               "ON",
		PayloadOff:              "OFF",
		JSONAttributesTopic:     bound.topics.attributes,
		AvailabilityTopic:       b.cfg.AvailabilityTopic,

		Device: hass.DeviceInfo{
			Identifiers:  info.Identifiers,
			Manufacturer: info.Manufacturer,
			Model:        info.Model,
			Name:         info.Name,
		},
		Origin: &hass.OriginInfo{
			Name:            "stovebridge",
			SoftwareVersion: b.cfg.Version,
		},
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode discovery payload: %w", err)
	}
	return b.client.Publish(bound.topics.discovery, payload, true)
}

// publishState pushes the entity's snapshot onto its state topics, retained
// so Home Assistant restarts pick the state back up from the broker.
func (b *Bridge) publishState(bound *boundEntity) {
	e := bound.entity

	b.publish(bound.topics.currentTemperature, formatTemperature(e.CurrentTemperature()))
	b.publish(bound.topics.temperatureState, formatTemperature(e.TargetTemperature()))
	b.publish(bound.topics.modeState, string(e.Mode()))
	b.publish(bound.topics.action, string(e.Action()))
	b.publish(bound.topics.fanModeState, e.FanMode())

	attrs, err := json.Marshal(e.Attributes())
	if err != nil {
		b.logger.Error("Failed to encode attributes",
			zap.String("entity", e.UniqueID()),
			zap.Error(err))
		return
	}
	b.publish(bound.topics.attributes, string(attrs))
}

func (b *Bridge) publish(topic, payload string) {
	if err := b.client.Publish(topic, []byte(payload), true); err != nil {
		b.logger.Error("Failed to publish state",
			zap.String("topic", topic),
			zap.Error(err))
	}
}

// subscribeCommands wires the entity's command topics to its write methods.
// Subscription failures are logged and tolerated; the entity still publishes
// state.
func (b *Bridge) subscribeCommands(bound *boundEntity) {
	id := bound.entity.UniqueID()
	handlers := map[string]hass.MessageHandler{
		bound.topics.temperatureCommand: func(_ string, payload []byte) {
			b.handleTemperatureCommand(id, payload)
		},
		bound.topics.modeCommand: func(_ string, payload []byte) {
			b.handleModeCommand(id, payload)
		},
		bound.topics.fanModeCommand: func(_ string, payload []byte) {
			b.handleFanModeCommand(id, payload)
		},
		bound.topics.powerCommand: func(_ string, payload []byte) {
			b.handlePowerCommand(id, payload)
		},
	}
	for topic, handler := range handlers {
		if err := b.client.Subscribe(topic, handler); err != nil {
			b.logger.Error("Failed to subscribe to command topic",
				zap.String("topic", topic),
				zap.Error(err))
		}
	}
}

// lookup returns the bound entity for a command, or nil when the command
// should be dropped. Drops are logged.
func (b *Bridge) lookup(id, command string, payload []byte) *boundEntity {
	bound := b.entities[id]
	if bound == nil {
		return nil
	}
	if b.cfg.ReadOnly {
		b.logger.Info("Read-only mode, dropping command",
			zap.String("entity", id),
			zap.String("command", command),
			zap.String("payload", string(payload)))
		return nil
	}
	return bound
}

func (b *Bridge) handleTemperatureCommand(id string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bound := b.lookup(id, "set_temperature", payload)
	if bound == nil {
		return
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		b.logger.Warn("Ignoring malformed temperature command",
			zap.String("entity", id),
			zap.String("payload", string(payload)))
		return
	}
	bound.entity.SetTemperature(&value)
}

func (b *Bridge) handleModeCommand(id string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bound := b.lookup(id, "set_mode", payload)
	if bound == nil {
		return
	}
	bound.entity.SetMode(climate.Mode(strings.TrimSpace(string(payload))))
}

func (b *Bridge) handleFanModeCommand(id string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bound := b.lookup(id, "set_fan_mode", payload)
	if bound == nil {
		return
	}
	bound.entity.SetFanMode(strings.TrimSpace(string(payload)))
}

func (b *Bridge) handlePowerCommand(id string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bound := b.lookup(id, "power", payload)
	if bound == nil {
		return
	}
	switch strings.TrimSpace(string(payload)) {
	case "ON":
		bound.entity.TurnOn()
	case "OFF":
		bound.entity.TurnOff()
	default:
		b.logger.Warn("Ignoring malformed power command",
			zap.String("entity", id),
			zap.String("payload", string(payload)))
	}
}

// formatTemperature renders a temperature without trailing zeros, so a
// whole-degree value publishes as "20" and a half degree as "20.5".
func formatTemperature(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
