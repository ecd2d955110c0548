package discovery

import (
	"cmp"
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/hearthd/hearth"
	"github.com/hearthd/hearth/log"
	"github.com/hearthd/hearth/mqtt"
	"github.com/hearthd/hearth/platform"
)

// Updatable is implemented by entities that can re-apply configuration delivered by a
// discovery update for the same identity.
type Updatable interface {
	hearth.Entity

	UpdateFromDiscovery(ctx context.Context, payload []byte) error
}

// Listener subscribes to the discovery config topics and maintains the set of discovered
// entities: new configs create entities on the host, repeat configs for a known discovery
// key are routed to the existing entity, and empty payloads remove it.
type Listener struct {
	host   *hearth.Host
	prefix string

	mu sync.Mutex
	// ctx is the lifecycle context captured by Subscribe. Transport callbacks carry no
	// context of their own, so host operations triggered by discovery messages run under
	// the listener's lifecycle.
	ctx      context.Context
	entities map[string]Updatable
	topics   []string

	log *slog.Logger
}

// NewListener constructs a Listener for the provided host. An empty prefix defaults to
// DefaultPrefix.
func NewListener(host *hearth.Host, prefix string) *Listener {
	return &Listener{
		host:   host,
		prefix: cmp.Or(prefix, DefaultPrefix),

		entities: map[string]Updatable{},

		log: log.ForComponent("discovery"),
	}
}

// Subscribe registers the discovery config subscriptions for the binary_sensor component,
// covering both the <object>/config and <node>/<object>/config topic layouts.
func (l *Listener) Subscribe(ctx context.Context) error {
	topics := []string{
		mqtt.JoinTopic(l.prefix, "binary_sensor", mqtt.SingleLevelWildcard, "config"),
		mqtt.JoinTopic(l.prefix, "binary_sensor", mqtt.SingleLevelWildcard, mqtt.SingleLevelWildcard, "config"),
	}

	subscriptions := make([]mqtt.Subscription, len(topics))
	for i, topic := range topics {
		subscriptions[i] = mqtt.Subscription{Topic: topic}
	}

	l.mu.Lock()
	l.ctx = ctx
	l.topics = topics
	l.mu.Unlock()

	return l.host.Subscriber().Subscribe(ctx, l, subscriptions...)
}

// Close removes the listener's subscriptions. Entities already discovered stay on the host.
func (l *Listener) Close(ctx context.Context) error {
	l.mu.Lock()
	topics := l.topics
	l.topics = nil
	l.mu.Unlock()

	if len(topics) == 0 {
		return nil
	}

	return l.host.Subscriber().Unsubscribe(ctx, topics...)
}

// ServeMQTT implements mqtt.Handler for discovery config messages.
func (l *Listener) ServeMQTT(_ mqtt.Writer, topic string, payload []byte) {
	component, key, ok := l.parseConfigTopic(topic)
	if !ok || component != "binary_sensor" {
		return
	}

	logger := l.log.With(slog.String("discovery_key", key))

	l.mu.Lock()
	ctx := cmp.Or(l.ctx, context.Background())
	existing, known := l.entities[key]
	l.mu.Unlock()

	// An empty payload removes the entity for this discovery key.
	if len(payload) == 0 {
		if !known {
			return
		}

		l.mu.Lock()
		delete(l.entities, key)
		l.mu.Unlock()

		logger.Info("Removing discovered entity")
		if err := l.host.Remove(ctx, existing); err != nil {
			logger.With(log.Error(err)).Warn("Failed to remove discovered entity")
		}

		return
	}

	expanded, err := ExpandAbbreviations(payload)
	if err != nil {
		logger.With(log.Error(err)).Warn("Ignoring malformed discovery payload")
		return
	}

	if known {
		logger.Debug("Updating discovered entity")
		if err := existing.UpdateFromDiscovery(ctx, expanded); err != nil {
			logger.With(log.Error(err)).Warn("Failed to apply discovery update")
		}

		return
	}

	cfg, err := platform.ParseDiscoveryJSON(expanded)
	if err != nil {
		logger.With(log.Error(err)).Warn("Ignoring invalid discovery config")
		return
	}

	sensor := platform.NewBinarySensor(cfg)

	l.mu.Lock()
	l.entities[key] = sensor
	l.mu.Unlock()

	logger.With(slog.String("entity", cfg.Name)).Info("Discovered new entity")
	if err := l.host.Add(ctx, sensor); err != nil {
		l.mu.Lock()
		delete(l.entities, key)
		l.mu.Unlock()

		logger.With(log.Error(err)).Warn("Failed to add discovered entity")
	}
}

// parseConfigTopic splits a config topic into its component name and discovery key. The
// key is stable for the lifetime of the entity: component plus the node/object ids joined
// with dots, e.g. "binary_sensor.hub1.garden_motion".
func (l *Listener) parseConfigTopic(topic string) (component, key string, ok bool) {
	rest, found := strings.CutPrefix(mqtt.TrimTopic(topic), mqtt.TrimTopic(l.prefix)+mqtt.TopicSeparator)
	if !found {
		return "", "", false
	}

	parts := strings.Split(rest, mqtt.TopicSeparator)

	// component/object/config or component/node/object/config
	if len(parts) < 3 || len(parts) > 4 || parts[len(parts)-1] != "config" {
		return "", "", false
	}

	return parts[0], strings.Join(parts[:len(parts)-1], "."), true
}
