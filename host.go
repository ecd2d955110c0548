package hearth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hearthd/hearth/clock"
	"github.com/hearthd/hearth/hass"
	"github.com/hearthd/hearth/log"
	"github.com/hearthd/hearth/mqtt"
)

// ErrDuplicateUniqueID is the error returned by Host.Add when another entity with the same
// unique id is already registered.
var ErrDuplicateUniqueID = errors.New("an entity with this unique id is already registered")

// DefaultStatusTopic is the topic the Host publishes its own birth and will payloads to,
// mirroring the topic Home Assistant uses for the same purpose.
const DefaultStatusTopic = "homeassistant/status"

type snapshot struct {
	state     string
	available bool
}

// Host owns the transport, the timer scheduler, and the registry of hosted entities. It
// implements the entity framework side of the platform contract: lifecycle (Add / Remove),
// state refresh (ScheduleUpdate), and the host status topic.
type Host struct {
	subscriber mqtt.Subscriber
	writer     mqtt.Writer
	scheduler  clock.Scheduler
	status     *mqtt.Value[hass.Availability]

	mu         sync.Mutex
	byUniqueID map[string]Entity
	snapshots  map[Entity]snapshot
	listeners  []func(StateChange)

	log *slog.Logger
}

// HostOption customizes a Host under construction.
type HostOption func(*Host)

// WithStatusTopic overrides DefaultStatusTopic for Host.PublishStatus.
func WithStatusTopic(topic string) HostOption {
	return func(h *Host) {
		h.status = mqtt.NewValueWithOptions(topic, hass.AvailabilityMarshaler, mqtt.WriteOptions{Retain: true})
	}
}

// NewHost constructs a Host over the provided transport. A nil scheduler defaults to the
// runtime timer scheduler.
func NewHost(subscriber mqtt.Subscriber, writer mqtt.Writer, scheduler clock.Scheduler, opts ...HostOption) *Host {
	if scheduler == nil {
		scheduler = clock.New()
	}

	h := &Host{
		subscriber: subscriber,
		writer:     writer,
		scheduler:  scheduler,
		status:     mqtt.NewValueWithOptions(DefaultStatusTopic, hass.AvailabilityMarshaler, mqtt.WriteOptions{Retain: true}),

		byUniqueID: map[string]Entity{},
		snapshots:  map[Entity]snapshot{},

		log: log.ForComponent("host"),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Subscriber returns the transport subscription manager entities register topics with.
func (h *Host) Subscriber() mqtt.Subscriber { return h.subscriber }

// Writer returns the transport writer.
func (h *Host) Writer() mqtt.Writer { return h.writer }

// Scheduler returns the timer collaborator entities schedule delayed callbacks with.
func (h *Host) Scheduler() clock.Scheduler { return h.scheduler }

// OnStateChange registers a listener invoked for every propagated state refresh. Listeners
// are called in registration order, on the goroutine that triggered the refresh, and must
// not block.
func (h *Host) OnStateChange(fn func(StateChange)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.listeners = append(h.listeners, fn)
}

// Add registers the entity and invokes its AddedToHost hook. Entities with a non-empty
// unique id are deduplicated; adding a second entity with the same unique id returns
// ErrDuplicateUniqueID without invoking any hook.
func (h *Host) Add(ctx context.Context, e Entity) error {
	h.mu.Lock()
	if uid := e.UniqueID(); uid != "" {
		if _, exists := h.byUniqueID[uid]; exists {
			h.mu.Unlock()
			return fmt.Errorf("add %q: %w", uid, ErrDuplicateUniqueID)
		}

		h.byUniqueID[uid] = e
	}

	// Snapshot before the lifecycle hook runs so that updates triggered by retained
	// messages during subscription setup are not dropped.
	h.snapshots[e] = snapshot{state: e.StateValue(), available: e.Available()}
	h.mu.Unlock()

	h.log.With(slog.String("entity", e.Name())).Debug("Adding entity")
	if err := e.AddedToHost(ctx, h); err != nil {
		h.mu.Lock()
		delete(h.snapshots, e)
		if uid := e.UniqueID(); uid != "" {
			delete(h.byUniqueID, uid)
		}
		h.mu.Unlock()

		return fmt.Errorf("add %q: %w", e.Name(), err)
	}

	return nil
}

// Remove drops the entity from the registry and invokes its WillRemove hook. Removing an
// entity that was never added (or was already removed) only invokes the hook, which is
// required to be idempotent.
func (h *Host) Remove(ctx context.Context, e Entity) error {
	h.mu.Lock()
	delete(h.snapshots, e)
	if uid := e.UniqueID(); uid != "" && h.byUniqueID[uid] == e {
		delete(h.byUniqueID, uid)
	}
	h.mu.Unlock()

	h.log.With(slog.String("entity", e.Name())).Debug("Removing entity")
	if err := e.WillRemove(ctx); err != nil {
		return fmt.Errorf("remove %q: %w", e.Name(), err)
	}

	return nil
}

// Entity returns the registered entity with the provided unique id.
func (h *Host) Entity(uniqueID string) (Entity, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.byUniqueID[uniqueID]
	return e, ok
}

// ScheduleUpdate records the entity's current state and notifies listeners. Refreshes that
// do not change the displayed state or availability are suppressed unless the entity
// implements ForceUpdater and asks for them. Updates for entities the Host does not know
// about are dropped.
func (h *Host) ScheduleUpdate(e Entity) {
	h.mu.Lock()
	previous, ok := h.snapshots[e]
	if !ok {
		h.mu.Unlock()
		h.log.With(slog.String("entity", e.Name())).Debug("Dropping update for unregistered entity")
		return
	}

	current := snapshot{state: e.StateValue(), available: e.Available()}

	force := false
	if f, isForce := e.(ForceUpdater); isForce {
		force = f.ForceUpdate()
	}

	if current == previous && !force {
		h.mu.Unlock()
		return
	}

	h.snapshots[e] = current
	listeners := make([]func(StateChange), len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.Unlock()

	change := StateChange{
		Entity:    e,
		Previous:  previous.state,
		Current:   current.state,
		Available: current.available,
	}

	for _, fn := range listeners {
		fn(change)
	}
}

// PublishStatus writes the host birth/will payload (hass.Available or hass.Unavailable) to
// the status topic as a retained message.
func (h *Host) PublishStatus(ctx context.Context, availability hass.Availability) error {
	if _, err := h.status.Write(ctx, h.writer, availability); err != nil {
		return fmt.Errorf("publish status: %w", err)
	}

	return nil
}
