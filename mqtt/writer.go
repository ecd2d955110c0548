package mqtt

import (
	"context"
)

// Writer is the minimum abstraction around writing values to MQTT.
type Writer interface {
	// WriteTopic writes the provided value to the specified topic with the specified
	// WriteOptions.
	WriteTopic(ctx context.Context, topic string, options WriteOptions, value []byte) error
}
