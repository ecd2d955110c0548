package hearth

import (
	"encoding/json/jsontext"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidDevice is the error returned by DeviceInfo.Valid for device records with no
// identifying value in 'identifiers' or 'connections'.
var ErrInvalidDevice = errors.New("device must have at least one identifying value in 'identifiers' and/or 'connections'")

// IDSep is the separator used between the parts of a calculated device id. It is also the
// replacement for characters that are not allowed in an id.
const IDSep = "__"

var idSanitizer = strings.NewReplacer(
	" ", IDSep,
	":", IDSep,
	".", IDSep,
	"!", IDSep,
	"?", IDSep,
	"/", IDSep,
)

// DeviceConnection maps a device to the outside world, e.g. {"mac", "02:5b:26:a8:dc:12"}.
// On the wire it is a two element array. It implements fmt.Stringer and slog.LogValuer.
type DeviceConnection struct {
	Kind  string
	Value string
}

func (d DeviceConnection) String() string {
	return fmt.Sprintf("[%q,%q]", d.Kind, d.Value)
}

func (d DeviceConnection) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("kind", d.Kind),
		slog.String("value", d.Value),
	)
}

func (d *DeviceConnection) UnmarshalJSONFrom(dec *jsontext.Decoder) error {
	var pair []string
	if err := json.UnmarshalDecode(dec, &pair); err != nil {
		return err
	}

	if len(pair) != 2 {
		return fmt.Errorf("connection must be a [kind, value] pair, got %d elements", len(pair))
	}

	d.Kind, d.Value = pair[0], pair[1]
	return nil
}

func (d *DeviceConnection) UnmarshalYAML(node *yaml.Node) error {
	var pair []string
	if err := node.Decode(&pair); err != nil {
		return err
	}

	if len(pair) != 2 {
		return fmt.Errorf("connection must be a [kind, value] pair, got %d elements", len(pair))
	}

	d.Kind, d.Value = pair[0], pair[1]
	return nil
}

// Identifiers is the list of ids that uniquely identify a device. On the wire it is either
// a single string or a list of strings.
type Identifiers []string

func (i *Identifiers) UnmarshalJSONFrom(dec *jsontext.Decoder) error {
	if dec.PeekKind() == '"' {
		var one string
		if err := json.UnmarshalDecode(dec, &one); err != nil {
			return err
		}

		*i = Identifiers{one}
		return nil
	}

	var list []string
	if err := json.UnmarshalDecode(dec, &list); err != nil {
		return err
	}

	*i = list
	return nil
}

func (i *Identifiers) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var one string
		if err := node.Decode(&one); err != nil {
			return err
		}

		*i = Identifiers{one}
		return nil
	}

	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}

	*i = list
	return nil
}

// DeviceInfo is the device metadata record entities may carry so the host can group
// multiple entities under one physical device. It is parsed straight from discovery
// payloads or static configuration; the host never populates it itself.
type DeviceInfo struct {
	// The name of the device.
	Name string `json:"name" yaml:"name"`

	// The manufacturer of the device.
	Manufacturer string `json:"manufacturer" yaml:"manufacturer"`

	// The model of the device.
	Model string `json:"model" yaml:"model"`

	// The firmware version of the device.
	SWVersion string `json:"sw_version" yaml:"sw_version"`

	// A list of ids that uniquely identify the device, e.g. a serial number.
	Identifiers Identifiers `json:"identifiers" yaml:"identifiers"`

	// A list of connections of the device to the outside world.
	Connections []DeviceConnection `json:"connections" yaml:"connections"`

	// Identifier of a device that routes messages between this device and the host, such as
	// a hub or a parent device. Used to show device topology.
	ViaDevice string `json:"via_device" yaml:"via_device"`
}

// ID calculates an identifier for this device from its identifiers, falling back to the
// sanitized name for devices identified only by connections.
func (d *DeviceInfo) ID() string {
	var result strings.Builder

	for _, ident := range d.Identifiers {
		if result.Len() > 0 {
			result.WriteString(IDSep)
		}

		result.WriteString(idSanitizer.Replace(ident))
	}

	if result.Len() == 0 && d.Name != "" {
		result.WriteString(idSanitizer.Replace(d.Name))
	}

	return result.String()
}

// Valid checks that this device record carries at least one identifying value, which the
// host requires before grouping entities under it.
func (d *DeviceInfo) Valid() error {
	if len(d.Identifiers) == 0 && len(d.Connections) == 0 {
		return ErrInvalidDevice
	}

	return nil
}

func (d *DeviceInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", d.ID()),
		slog.String("name", d.Name),
		slog.String("model", d.Model),
	)
}
