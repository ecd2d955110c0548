// Package hearth is a small host-side entity framework for MQTT based home automation. It
// consumes the Home Assistant MQTT conventions from the host's side of the wire: entities
// are derived from messages published to the broker, and the Host tracks each entity's
// displayed state, availability, and lifecycle. Platform implementations (see the platform
// package) map topics and payloads to entity state; the discovery package creates entities
// dynamically from retained configuration payloads.
package hearth

import "context"

// Entity is the contract between the Host and a hosted entity. Entities are push driven:
// the Host never polls them, it is told about new state via Host.ScheduleUpdate.
type Entity interface {
	// Name returns the display label for this entity.
	Name() string

	// UniqueID returns a stable identity used by the Host to deduplicate entities, or the
	// empty string if the entity has no stable identity.
	UniqueID() string

	// ShouldPoll reports whether the Host needs to poll this entity for state. MQTT fed
	// entities always return false.
	ShouldPoll() bool

	// Available reports whether the entity's underlying device is considered reachable.
	Available() bool

	// StateValue returns the displayed state for this entity.
	StateValue() string

	// AddedToHost is invoked once when the Host accepts the entity, and is where the entity
	// establishes its subscriptions.
	AddedToHost(ctx context.Context, h *Host) error

	// WillRemove is invoked when the Host removes the entity, and is where the entity tears
	// down its subscriptions and any pending timers. It must be safe to call on an entity
	// that was never added.
	WillRemove(ctx context.Context) error
}

// ForceUpdater is implemented by entities that want state refreshes propagated even when
// the displayed state has not changed.
type ForceUpdater interface {
	ForceUpdate() bool
}

// StateChange describes one observed entity state transition, delivered to listeners
// registered with Host.OnStateChange.
type StateChange struct {
	Entity    Entity
	Previous  string
	Current   string
	Available bool
}
