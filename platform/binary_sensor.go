package platform

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hearthd/hearth"
	"github.com/hearthd/hearth/clock"
	"github.com/hearthd/hearth/hass"
	"github.com/hearthd/hearth/log"
	"github.com/hearthd/hearth/mqtt"
)

// BinarySensor is an entity whose on/off state is derived from messages published to a
// single state topic. A payload (after the optional value template) equal to PayloadOn
// turns the sensor on, PayloadOff turns it off, and anything else is logged and ignored:
// overlapping topics and transient device values make unmatched payloads expected, not
// errors.
//
// For sensors that only publish on-state updates (like PIRs), an off delay clears the state
// back to off a configured duration after it last became on. A newer message always
// supersedes the pending auto-off.
//
// See https://www.home-assistant.io/integrations/binary_sensor.mqtt/ for the configuration
// this platform consumes.
type BinarySensor struct {
	mu sync.Mutex

	cfg   BinarySensorConfig
	state hass.PowerState

	availability *hearth.AvailabilityTracker

	host      *hearth.Host
	scheduler clock.Scheduler

	// subscribedTopics is the subscription handle: the set of topic filters registered by
	// the most recent Subscribe call, owned exclusively by this sensor.
	subscribedTopics []string

	// cancelOffDelay is the pending auto-off timer; at most one is live at a time.
	// offDelayGen identifies the current timer: a callback whose generation no longer
	// matches was superseded after it fired but before it could run, and must not touch
	// state.
	cancelOffDelay clock.CancelFunc
	offDelayGen    uint64

	log *slog.Logger
}

var _ hearth.Entity = &BinarySensor{}
var _ hearth.ForceUpdater = &BinarySensor{}

// NewBinarySensor constructs a BinarySensor from a validated configuration. The sensor's
// state is unknown until the first matching message arrives.
func NewBinarySensor(cfg BinarySensorConfig) *BinarySensor {
	s := &BinarySensor{
		state:        hass.PowerStateUnknown,
		availability: hearth.NewAvailabilityTracker(),
	}

	s.configureLocked(cfg)
	return s
}

// configureLocked overwrites the configuration fields only. State, the subscription handle,
// and any pending off-delay timer are deliberately left alone; reconfiguration must not
// reset what the sensor already knows.
func (s *BinarySensor) configureLocked(cfg BinarySensorConfig) {
	s.cfg = cfg
	s.availability.Configure(cfg.Availability)
	s.log = log.ForEntity("platform.binary_sensor", cfg.Name)
}

// AddedToHost wires the sensor to the host's scheduler and establishes its subscriptions.
func (s *BinarySensor) AddedToHost(ctx context.Context, h *hearth.Host) error {
	s.mu.Lock()
	s.host = h
	s.scheduler = h.Scheduler()
	s.mu.Unlock()

	return s.Subscribe(ctx, h.Subscriber())
}

// Subscribe (re)establishes the sensor's subscriptions: the state topic and, when
// configured, the availability topic. Every call supersedes the previous subscription set
// (the old topics are unsubscribed first), so repeated calls never stack a second
// subscription.
func (s *BinarySensor) Subscribe(ctx context.Context, sub mqtt.Subscriber) error {
	s.mu.Lock()
	previous := s.subscribedTopics
	subscriptions := s.subscriptionsLocked()
	s.mu.Unlock()

	// The handle only ever reflects topics that are actually established: a failed
	// unsubscribe keeps the previous handle, a failed subscribe leaves it empty.
	if len(previous) != 0 {
		if err := sub.Unsubscribe(ctx, previous...); err != nil {
			return fmt.Errorf("unsubscribe superseded topics: %w", err)
		}

		s.mu.Lock()
		s.subscribedTopics = nil
		s.mu.Unlock()
	}

	if err := sub.Subscribe(ctx, s, subscriptions...); err != nil {
		return err
	}

	topics := make([]string, len(subscriptions))
	for i, subscription := range subscriptions {
		topics[i] = subscription.Topic
	}

	s.mu.Lock()
	s.subscribedTopics = topics
	s.mu.Unlock()

	return nil
}

func (s *BinarySensor) subscriptionsLocked() []mqtt.Subscription {
	subscriptions := []mqtt.Subscription{{
		Topic:   s.cfg.StateTopic,
		Options: mqtt.ReadOptions{QoS: s.cfg.QoS},
	}}

	// The availability topic may equal the state topic; one subscription covers both.
	if s.availability.Topic() == s.cfg.StateTopic {
		return subscriptions
	}

	return s.availability.AppendSubscriptions(subscriptions)
}

// ServeMQTT implements mqtt.Handler, dispatching availability messages to the tracker and
// state topic messages to the state derivation logic. Messages for any other topic are
// ignored.
func (s *BinarySensor) ServeMQTT(w mqtt.Writer, topic string, payload []byte) {
	// A topic can serve both roles when availability_topic equals state_topic, so
	// availability consumption must not stop state handling.
	if s.availability.ServeMQTT(w, topic, payload) {
		s.scheduleUpdate()
	}

	s.mu.Lock()
	stateTopic := s.cfg.StateTopic
	s.mu.Unlock()

	if topic != stateTopic {
		return
	}

	s.handleStateMessage(payload)
}

func (s *BinarySensor) handleStateMessage(payload []byte) {
	s.mu.Lock()

	effective := payload
	if s.cfg.ValueTemplate != nil {
		var err error
		effective, err = s.cfg.ValueTemplate(payload)
		if err != nil {
			logger := s.log
			s.mu.Unlock()
			logger.With(log.Error(err)).Warn("Failed to render value_template, dropping message")
			return
		}
	}

	switch string(effective) {
	case s.cfg.PayloadOn:
		s.state = hass.PowerStateOn
	case s.cfg.PayloadOff:
		s.state = hass.PowerStateOff
	default:
		// Payload is not for this entity.
		logger, topic := s.log, s.cfg.StateTopic
		s.mu.Unlock()
		logger.With(slog.String("state_topic", topic)).Warn("No matching payload found for entity")
		return
	}

	// A new message supersedes any pending auto-off, whatever the new state is.
	s.cancelOffDelayLocked()

	if s.state == hass.PowerStateOn && s.cfg.OffDelay != nil && s.scheduler != nil {
		s.offDelayGen++
		gen := s.offDelayGen
		s.cancelOffDelay = s.scheduler.CallLater(*s.cfg.OffDelay, func() { s.offDelayExpired(gen) })
	}

	s.mu.Unlock()
	s.scheduleUpdate()
}

// offDelayExpired is the auto-off timer callback. A timer that fired before it could be
// canceled may reach here after a newer message superseded it; the generation check makes
// that callback a no-op.
func (s *BinarySensor) offDelayExpired(gen uint64) {
	s.mu.Lock()
	if gen != s.offDelayGen {
		s.mu.Unlock()
		return
	}

	s.cancelOffDelay = nil
	s.state = hass.PowerStateOff
	s.mu.Unlock()

	s.scheduleUpdate()
}

func (s *BinarySensor) cancelOffDelayLocked() {
	if s.cancelOffDelay == nil {
		return
	}

	if !s.cancelOffDelay() {
		// Too late to stop it: the callback fired and is waiting on the lock. Bump the
		// generation so it returns without touching state.
		s.offDelayGen++
	}

	s.cancelOffDelay = nil
}

func (s *BinarySensor) scheduleUpdate() {
	s.mu.Lock()
	host := s.host
	s.mu.Unlock()

	if host != nil {
		host.ScheduleUpdate(s)
	}
}

// UpdateFromDiscovery re-applies configuration delivered by a discovery update for the same
// identity: the payload is validated through the schema, the configuration is replaced in
// place, the subscriptions are re-established on the (possibly new) topics, and a state
// refresh is requested. Current state and any pending off-delay timer survive the update.
func (s *BinarySensor) UpdateFromDiscovery(ctx context.Context, payload []byte) error {
	cfg, err := ParseDiscoveryJSON(payload)
	if err != nil {
		return fmt.Errorf("discovery update: %w", err)
	}

	s.mu.Lock()
	s.configureLocked(cfg)
	host := s.host
	s.mu.Unlock()

	if host != nil {
		if err := s.Subscribe(ctx, host.Subscriber()); err != nil {
			return fmt.Errorf("discovery update: %w", err)
		}
	}

	s.scheduleUpdate()
	return nil
}

// WillRemove cancels any pending off-delay timer and removes all registered subscriptions
// with a single unsubscribe call. It is idempotent.
func (s *BinarySensor) WillRemove(ctx context.Context) error {
	s.mu.Lock()
	s.cancelOffDelayLocked()
	topics := s.subscribedTopics
	s.subscribedTopics = nil
	host := s.host
	s.mu.Unlock()

	if len(topics) == 0 || host == nil {
		return nil
	}

	return host.Subscriber().Unsubscribe(ctx, topics...)
}

// Name returns the display label of the sensor.
func (s *BinarySensor) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cfg.Name
}

// UniqueID returns the configured unique id, or the empty string.
func (s *BinarySensor) UniqueID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cfg.UniqueID
}

// IsOn returns the current tri-state value of the sensor. It is hass.PowerStateUnknown
// until the first matching message arrives.
func (s *BinarySensor) IsOn() hass.PowerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// DeviceClass returns the configured device class, or empty.
func (s *BinarySensor) DeviceClass() hass.BinarySensorDeviceClass {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cfg.DeviceClass
}

// ForceUpdate reports whether state refreshes propagate even when unchanged.
func (s *BinarySensor) ForceUpdate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cfg.ForceUpdate
}

// Device returns the device metadata record this sensor belongs to, or nil.
func (s *BinarySensor) Device() *hearth.DeviceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cfg.Device
}

// ShouldPoll always reports false: state is push driven, never polled.
func (s *BinarySensor) ShouldPoll() bool { return false }

// Available reports device reachability as tracked from the availability topic. It is true
// when no availability topic is configured.
func (s *BinarySensor) Available() bool {
	return s.availability.Available()
}

// StateValue returns the displayed state: the hass.PowerState string ("ON", "OFF", or
// "None" while unknown).
func (s *BinarySensor) StateValue() string {
	return string(s.IsOn())
}
