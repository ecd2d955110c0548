package mqtt

import (
	"fmt"
	"log/slog"
)

// QualityOfService determines what level of guarantee the broker should provide when
// delivering messages. It implements fmt.Stringer and slog.LogValuer.
type QualityOfService uint8

func (q QualityOfService) String() string {
	switch q {
	case QOSAtMostOnce:
		return "at most once (0)"
	case QOSAtLeastOnce:
		return "at least once (1)"
	case QOSExactlyOnce:
		return "exactly once (2)"
	default:
		panic(fmt.Errorf("invalid quality of service value: %d", q))
	}
}

func (q QualityOfService) LogValue() slog.Value {
	return slog.StringValue(q.String())
}

// Valid reports whether q is one of the three QoS levels defined by MQTT.
func (q QualityOfService) Valid() bool {
	return q <= QOSExactlyOnce
}

const (
	// QOSAtMostOnce offers "fire and forget" messaging with no acknowledgment from the
	// receiver. This is the default.
	QOSAtMostOnce QualityOfService = iota
	// QOSAtLeastOnce ensures that messages are delivered at least once by requiring a PUBACK
	// acknowledgment.
	QOSAtLeastOnce
	// QOSExactlyOnce guarantees that each message is delivered exactly once by using a
	// four-step handshake (PUBLISH, PUBREC, PUBREL, PUBCOMP).
	QOSExactlyOnce

	// QOSDefault is the default Quality Of Service, QOSAtMostOnce.
	QOSDefault = QOSAtMostOnce
)

// SubscriptionRetainHandling adjusts how the broker sends retained values to subscribers. It
// implements fmt.Stringer and slog.LogValuer.
type SubscriptionRetainHandling uint8

func (s SubscriptionRetainHandling) String() string {
	switch s {
	case RetainHandlingSendOnSubscribe:
		return "send on subscribe (0)"
	case RetainHandlingSendOnNewSubscribe:
		return "send on new subscribe (1)"
	case RetainHandlingIgnoreRetained:
		return "ignore retained (2)"
	default:
		panic(fmt.Errorf("invalid subscription retain handling value: %d", s))
	}
}

func (s SubscriptionRetainHandling) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

const (
	// RetainHandlingSendOnSubscribe instructs the broker to send retained messages whenever a
	// subscription is established, including resubscribe events.
	RetainHandlingSendOnSubscribe SubscriptionRetainHandling = iota
	// RetainHandlingSendOnNewSubscribe instructs the broker to send retained messages only
	// when a subscription is newly established (excluding resubscribe events).
	RetainHandlingSendOnNewSubscribe
	// RetainHandlingIgnoreRetained instructs the broker to not send retained messages when a
	// subscription is established.
	RetainHandlingIgnoreRetained

	// RetainHandlingDefault is the default behavior for retained messages,
	// RetainHandlingSendOnSubscribe.
	RetainHandlingDefault = RetainHandlingSendOnSubscribe
)

// ReadOptions holds options for configuring MQTT Subscriptions. The zero value uses a QoS of
// 0 with RetainHandlingDefault. It implements slog.LogValuer.
type ReadOptions struct {
	// QoS specifies the maximum Quality of Service this client supports when setting up
	// subscriptions.
	QoS QualityOfService

	// When true, NoLocal indicates that the server must not forward the message to the client
	// that published it.
	NoLocal bool

	// By default, the retain flag is cleared by the broker when forwarding retained messages.
	// Set RetainAsPublished to true to preserve the Retain flag unchanged when forwarding
	// application messages to subscribers.
	RetainAsPublished bool

	RetainHandling SubscriptionRetainHandling
}

func (r ReadOptions) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("qos", r.QoS),
		slog.Bool("no_local", r.NoLocal),
		slog.Bool("retain_as_published", r.RetainAsPublished),
		slog.Any("retain_handling", r.RetainHandling),
	)
}

// WriteOptions holds options for writing to MQTT. The zero value uses a QoS of 0 with no
// retain. It implements slog.LogValuer.
type WriteOptions struct {
	// QoS specifies the Quality of Service to use when writing values to MQTT.
	QoS QualityOfService

	// Retain instructs the broker to persist the last message received for a given topic.
	// When a new subscription is created for the topic, the broker will emit this value
	// automatically, whether or not the publisher is still connected to the broker.
	Retain bool
}

func (w WriteOptions) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("qos", w.QoS),
		slog.Bool("retain", w.Retain),
	)
}
