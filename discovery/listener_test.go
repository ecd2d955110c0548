package discovery

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthd/hearth"
	"github.com/hearthd/hearth/hass"
	"github.com/hearthd/hearth/mqtt"
	"github.com/hearthd/hearth/platform"
)

type fakeSubscriber struct {
	mu     sync.Mutex
	active map[string][]mqtt.Handler
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{active: map[string][]mqtt.Handler{}}
}

func (f *fakeSubscriber) Subscribe(_ context.Context, handler mqtt.Handler, subscriptions ...mqtt.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range subscriptions {
		f.active[s.Topic] = append(f.active[s.Topic], handler)
	}

	return nil
}

func (f *fakeSubscriber) Unsubscribe(_ context.Context, topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range topics {
		delete(f.active, t)
	}

	return nil
}

func (f *fakeSubscriber) subscribed(filter string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.active[filter]) > 0
}

func (f *fakeSubscriber) publish(topic, payload string) {
	f.mu.Lock()
	var handlers []mqtt.Handler
	for filter, hs := range f.active {
		if mqtt.MatchTopic(filter, topic) {
			handlers = append(handlers, hs...)
		}
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h.ServeMQTT(nil, topic, []byte(payload))
	}
}

type nopWriter struct{}

func (nopWriter) WriteTopic(context.Context, string, mqtt.WriteOptions, []byte) error { return nil }

func newTestListener(t *testing.T) (*fakeSubscriber, *hearth.Host, *Listener) {
	t.Helper()

	sub := newFakeSubscriber()
	host := hearth.NewHost(sub, nopWriter{}, nil)

	sut := NewListener(host, "")
	require.NoError(t, sut.Subscribe(t.Context()))

	return sub, host, sut
}

func TestListenerSubscribesBothTopicLayouts(t *testing.T) {
	sub, _, _ := newTestListener(t)

	assert.True(t, sub.subscribed("homeassistant/binary_sensor/+/config"))
	assert.True(t, sub.subscribed("homeassistant/binary_sensor/+/+/config"))
}

func TestListenerDiscoversEntity(t *testing.T) {
	sub, host, _ := newTestListener(t)

	sub.publish("homeassistant/binary_sensor/garden_motion/config", `{
		"name": "Garden Motion",
		"state_topic": "garden/motion",
		"unique_id": "garden-motion-1"
	}`)

	e, ok := host.Entity("garden-motion-1")
	require.True(t, ok, "discovered entity should be registered with the host")
	assert.Equal(t, "Garden Motion", e.Name())

	// The discovered sensor is live: state messages reach it.
	sensor := e.(*platform.BinarySensor)
	sub.publish("garden/motion", "ON")
	assert.Equal(t, hass.PowerStateOn, sensor.IsOn())
}

func TestListenerDiscoversWithNodeIDAndAbbreviations(t *testing.T) {
	sub, host, _ := newTestListener(t)

	sub.publish("homeassistant/binary_sensor/hub1/door/config", `{
		"name": "Door",
		"stat_t": "hub1/door/state",
		"pl_on": "open",
		"pl_off": "closed",
		"uniq_id": "hub1-door"
	}`)

	e, ok := host.Entity("hub1-door")
	require.True(t, ok)

	sensor := e.(*platform.BinarySensor)
	sub.publish("hub1/door/state", "open")
	assert.Equal(t, hass.PowerStateOn, sensor.IsOn())
}

func TestListenerRoutesUpdatesToExistingEntity(t *testing.T) {
	sub, host, _ := newTestListener(t)

	sub.publish("homeassistant/binary_sensor/garden_motion/config", `{
		"state_topic": "garden/motion",
		"unique_id": "garden-motion-1"
	}`)

	e, ok := host.Entity("garden-motion-1")
	require.True(t, ok)
	sensor := e.(*platform.BinarySensor)

	sub.publish("garden/motion", "ON")
	require.Equal(t, hass.PowerStateOn, sensor.IsOn())

	// A repeat config for the same discovery key reconfigures in place.
	sub.publish("homeassistant/binary_sensor/garden_motion/config", `{
		"name": "Garden Motion v2",
		"state_topic": "garden/motion2",
		"unique_id": "garden-motion-1"
	}`)

	assert.Equal(t, "Garden Motion v2", sensor.Name())
	assert.Equal(t, hass.PowerStateOn, sensor.IsOn(), "state survives the update")

	sub.publish("garden/motion", "OFF")
	assert.Equal(t, hass.PowerStateOn, sensor.IsOn(), "old topic must be dead after the update")

	sub.publish("garden/motion2", "OFF")
	assert.Equal(t, hass.PowerStateOff, sensor.IsOn())

	_, stillOne := host.Entity("garden-motion-1")
	assert.True(t, stillOne, "update must not create a second entity")
}

func TestListenerRemovesEntityOnEmptyPayload(t *testing.T) {
	sub, host, _ := newTestListener(t)

	sub.publish("homeassistant/binary_sensor/garden_motion/config", `{
		"state_topic": "garden/motion",
		"unique_id": "garden-motion-1"
	}`)
	require.True(t, sub.subscribed("garden/motion"))

	sub.publish("homeassistant/binary_sensor/garden_motion/config", "")

	_, ok := host.Entity("garden-motion-1")
	assert.False(t, ok, "entity should be removed")
	assert.False(t, sub.subscribed("garden/motion"), "removal must unsubscribe the state topic")

	// A second empty payload for the same key is a no-op.
	sub.publish("homeassistant/binary_sensor/garden_motion/config", "")
}

func TestListenerIgnoresGarbage(t *testing.T) {
	sub, host, _ := newTestListener(t)

	sub.publish("homeassistant/binary_sensor/broken/config", "not json")
	sub.publish("homeassistant/binary_sensor/incomplete/config", `{"name": "no state topic"}`)

	_, ok := host.Entity("broken")
	assert.False(t, ok)

	// Unrelated entity still discoverable afterwards.
	sub.publish("homeassistant/binary_sensor/ok/config", `{"state_topic": "a/b", "unique_id": "ok-1"}`)
	_, ok = host.Entity("ok-1")
	assert.True(t, ok)
}

func TestListenerClose(t *testing.T) {
	sub, _, sut := newTestListener(t)

	require.NoError(t, sut.Close(t.Context()))
	assert.False(t, sub.subscribed("homeassistant/binary_sensor/+/config"))
	assert.False(t, sub.subscribed("homeassistant/binary_sensor/+/+/config"))

	require.NoError(t, sut.Close(t.Context()), "close is idempotent")
}

func TestListenerCustomPrefix(t *testing.T) {
	sub := newFakeSubscriber()
	host := hearth.NewHost(sub, nopWriter{}, nil)

	sut := NewListener(host, "custom/prefix")
	require.NoError(t, sut.Subscribe(t.Context()))

	sub.publish("custom/prefix/binary_sensor/garden/config", `{"state_topic": "g/m", "unique_id": "g1"}`)

	_, ok := host.Entity("g1")
	assert.True(t, ok)

	// Payloads under a different prefix are not config messages.
	sub.publish("homeassistant/binary_sensor/garden/config", `{"state_topic": "x/y", "unique_id": "g2"}`)
	_, ok = host.Entity("g2")
	assert.False(t, ok)
}
