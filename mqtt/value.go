package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hearthd/hearth/log"
)

// ErrNoMarshaler is the error returned when a Value does not have an associated
// ValueMarshaler, which is required to write the value to MQTT.
var ErrNoMarshaler = errors.New("no marshaler configured")

// Value holds a value that can be written to an MQTT topic, remembering the last value
// successfully written.
type Value[T any] struct {
	topic     string
	marshaler ValueMarshaler[T]
	opts      WriteOptions

	mu sync.RWMutex

	v           T
	initialized bool
}

// NewValue constructs a Value configured for the provided topic that uses the provided
// marshaler when writing to MQTT with default WriteOptions (QoS 0, no retain).
func NewValue[T any](topic string, marshal ValueMarshaler[T]) *Value[T] {
	return NewValueWithOptions(topic, marshal, WriteOptions{})
}

// NewValueWithOptions constructs a Value configured for the provided topic that uses the
// provided marshaler when writing to MQTT with the provided WriteOptions.
func NewValueWithOptions[T any](topic string, marshal ValueMarshaler[T], opts WriteOptions) *Value[T] {
	return &Value[T]{
		topic:     topic,
		marshaler: marshal,
		opts:      opts,
	}
}

// Topic returns the MQTT topic this value writes to. If the underlying Value (not the value
// it holds) is nil, the empty string is returned.
func (v *Value[T]) Topic() string {
	if v == nil {
		return ""
	}

	return v.topic
}

// Get returns the most recently written value and a bool indicating whether the most recent
// write was successful, which will be false if the value has not yet been written.
func (v *Value[T]) Get() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.v, v.initialized
}

// Write uses the configured marshaler for this value to encode newValue to the configured
// topic. It then updates the held value. After the call to Write succeeds, future calls to
// Get will start returning newValue.
func (v *Value[T]) Write(ctx context.Context, w Writer, newValue T) (T, error) {
	if v.marshaler == nil {
		return newValue, ErrNoMarshaler
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := v.marshaler(newValue)
	if err != nil {
		return v.v, fmt.Errorf("marshal %+v: %w", newValue, err)
	}

	v.v = newValue
	v.initialized = true
	return v.v, w.WriteTopic(ctx, v.topic, v.opts, data)
}

// RemoteValue holds a value that is populated from an MQTT topic subscription.
type RemoteValue[T any] struct {
	topic       string
	unmarshaler ValueUnmarshaler[T]
	opts        ReadOptions

	mu sync.RWMutex

	watchers []func(T)

	v           T
	initialized bool

	log *slog.Logger
}

// NewRemoteValue constructs a RemoteValue for the specified topic. It uses the provided
// ValueUnmarshaler to decode payloads from MQTT and default ReadOptions (QoS 0,
// RetainHandlingDefault).
func NewRemoteValue[T any](topic string, unmarshaler ValueUnmarshaler[T]) *RemoteValue[T] {
	return NewRemoteValueWithOptions(topic, unmarshaler, ReadOptions{})
}

// NewRemoteValueWithOptions constructs a RemoteValue for the specified topic. It uses the
// provided ValueUnmarshaler to decode payloads from MQTT with the provided ReadOptions.
func NewRemoteValueWithOptions[T any](topic string, unmarshaler ValueUnmarshaler[T], opts ReadOptions) *RemoteValue[T] {
	return &RemoteValue[T]{
		topic:       topic,
		unmarshaler: unmarshaler,
		opts:        opts,

		log: log.ForComponent("mqtt.value.remote").With(slog.String("topic", topic)),
	}
}

// ServeMQTT implements Handler for this RemoteValue by unmarshalling a value from the
// provided payload if the topic exactly matches the configured topic for this RemoteValue.
// It then invokes any watcher callbacks. If unmarshalling fails, the watchers are not called
// and a warning is logged. See the log package for details on configuring this logger.
func (v *RemoteValue[T]) ServeMQTT(_ Writer, topic string, payload []byte) {
	if v == nil {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.topic != topic {
		return
	}

	if v.unmarshaler == nil {
		v.unmarshaler = JsonValueUnmarshaler[T]()
	}

	parsed, err := v.unmarshaler(payload)
	if err != nil {
		v.log.With(log.Error(err)).Warn("Failed to unmarshal payload from mqtt")
		return
	}

	v.log.With(slog.Any("v", parsed)).Debug("Received new value from mqtt")
	v.v, v.initialized = parsed, true
	for _, w := range v.watchers {
		w(v.v)
	}
}

// Topic returns the MQTT topic this value is populated from. If the underlying RemoteValue
// (not the value it holds) is nil, the empty string is returned.
func (v *RemoteValue[T]) Topic() string {
	if v == nil {
		return ""
	}

	return v.topic
}

// AppendSubscriptions adds a Subscription for this RemoteValue to the slice of existing
// subscriptions if this RemoteValue is not nil and has a configured topic.
func (v *RemoteValue[T]) AppendSubscriptions(existing []Subscription) []Subscription {
	if v == nil || v.topic == "" {
		return existing
	}

	return append(existing, Subscription{
		Topic:   v.topic,
		Options: v.opts,
	})
}

// Get returns the most recent value received from MQTT. If no value has been received yet,
// the second return value will be false.
func (v *RemoteValue[T]) Get() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.v, v.initialized
}

// Watch registers a callback to execute when receiving new messages from MQTT. After
// receiving a new value, all watchers are called serially with the new value. Watchers
// should not block; any long operations executed in a watcher should start a new goroutine.
// Watchers live for as long as the RemoteValue does.
func (v *RemoteValue[T]) Watch(callback func(T)) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.log.Debug("Adding watcher")
	v.watchers = append(v.watchers, callback)
}
