package hearth

import (
	"cmp"
	"fmt"
	"sync"

	"github.com/hearthd/hearth/hass"
	"github.com/hearthd/hearth/mqtt"
)

// AvailabilityConfig configures device availability tracking for one entity. The zero value
// disables tracking, which makes the entity always available.
type AvailabilityConfig struct {
	// Topic is the topic availability payloads are published to. Empty disables tracking.
	Topic string

	// Custom overrides the payload tokens that map to available and unavailable. Unset
	// tokens default to hass.Available and hass.Unavailable.
	Custom hass.CustomAvailability

	// QoS is the maximum quality of service for the availability subscription. Platforms
	// pass their own configured QoS through here.
	QoS mqtt.QualityOfService
}

// AvailabilityTracker tracks the reachability of an entity's underlying device from
// messages on a dedicated availability topic. Entities hold one tracker and delegate to it
// explicitly: it contributes subscriptions via AppendSubscriptions, consumes messages via
// ServeMQTT, and answers Available.
//
// With a topic configured, the device counts as unavailable until the first available
// payload arrives. Payloads matching neither configured token are ignored.
type AvailabilityTracker struct {
	mu sync.Mutex

	cfg   AvailabilityConfig
	value *mqtt.RemoteValue[hass.Availability]
}

// NewAvailabilityTracker returns a tracker with no topic configured (always available).
func NewAvailabilityTracker() *AvailabilityTracker {
	return &AvailabilityTracker{}
}

// Configure replaces the tracker's configuration. Changing any part of the configuration
// resets the tracked state; the caller is expected to resubscribe afterwards so a retained
// availability payload can be replayed.
func (t *AvailabilityTracker) Configure(cfg AvailabilityConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cfg == t.cfg && t.value != nil {
		return
	}

	t.cfg = cfg
	t.value = nil

	if cfg.Topic == "" {
		return
	}

	available := cmp.Or(cfg.Custom.Available, hass.Available)
	unavailable := cmp.Or(cfg.Custom.Unavailable, hass.Unavailable)

	unmarshal := func(payload []byte) (hass.Availability, error) {
		switch v := hass.Availability(payload); v {
		case available:
			return hass.Available, nil
		case unavailable:
			return hass.Unavailable, nil
		default:
			return v, fmt.Errorf("payload %q matches neither availability token", string(payload))
		}
	}

	t.value = mqtt.NewRemoteValueWithOptions(cfg.Topic, unmarshal, mqtt.ReadOptions{QoS: cfg.QoS})
}

// Topic returns the configured availability topic, or the empty string when tracking is
// disabled.
func (t *AvailabilityTracker) Topic() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.cfg.Topic
}

// AppendSubscriptions adds the tracker's subscription to the provided slice when a topic is
// configured.
func (t *AvailabilityTracker) AppendSubscriptions(existing []mqtt.Subscription) []mqtt.Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.value.AppendSubscriptions(existing)
}

// ServeMQTT consumes availability messages. It reports whether the message was for the
// tracker's topic, so callers can stop routing it elsewhere.
func (t *AvailabilityTracker) ServeMQTT(w mqtt.Writer, topic string, payload []byte) bool {
	t.mu.Lock()
	value := t.value
	configured := t.cfg.Topic
	t.mu.Unlock()

	if value == nil || topic != configured {
		return false
	}

	value.ServeMQTT(w, topic, payload)
	return true
}

// Available reports the tracked state: true when tracking is disabled, false until the
// first available payload arrives, and the last seen token's meaning afterwards.
func (t *AvailabilityTracker) Available() bool {
	t.mu.Lock()
	value := t.value
	t.mu.Unlock()

	if value == nil {
		return true
	}

	v, ok := value.Get()
	return ok && v == hass.Available
}
