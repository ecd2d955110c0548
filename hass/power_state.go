// Package hass holds the Home Assistant value domain: the string constants and small value
// types entities exchange over MQTT, together with marshaler/unmarshaler pairs for use with
// the mqtt package.
package hass

import (
	"log/slog"

	"github.com/hearthd/hearth/mqtt"
)

// PowerState represents generic on/off state for entities. This may or may not refer to
// physical power depending on the underlying entity (for example, a motion sensor reports
// PowerStateOn when motion is detected). PowerStateUnknown is the state of a sensor that has
// not received a matching message yet; every consumer has to handle all three values.
type PowerState string

var (
	PowerStateMarshaler mqtt.ValueMarshaler[PowerState] = func(v PowerState) ([]byte, error) {
		return mqtt.StringMarshaler(string(v))
	}

	PowerStateUnmarshaler mqtt.ValueUnmarshaler[PowerState] = func(bytes []byte) (PowerState, error) {
		v, err := mqtt.StringUnmarshaler(bytes)
		return PowerState(v), err
	}
)

const (
	PowerStateOn      PowerState = "ON"
	PowerStateOff     PowerState = "OFF"
	PowerStateUnknown PowerState = "None"
)

func (p PowerState) LogValue() slog.Value {
	return slog.StringValue(string(p))
}
