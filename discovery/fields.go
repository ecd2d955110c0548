package discovery

import (
	"encoding/json/jsontext"
	"encoding/json/v2"
	"fmt"
)

const (
	// DefaultPrefix is the MQTT topic prefix discovery payloads are published under.
	DefaultPrefix = "homeassistant"
	// StatusTopic is the topic (under the prefix) the host publishes its own availability
	// to. Devices watch it to replay discovery payloads after a host restart.
	StatusTopic = "status"
)

// Full configuration field names used by binary sensor discovery payloads.
const (
	FieldName                = "name"
	FieldStateTopic          = "state_topic"
	FieldPayloadOn           = "payload_on"
	FieldPayloadOff          = "payload_off"
	FieldDeviceClass         = "device_class"
	FieldQoS                 = "qos"
	FieldForceUpdate         = "force_update"
	FieldOffDelay            = "off_delay"
	FieldUniqueID            = "unique_id"
	FieldValueTemplate       = "value_template"
	FieldAvailabilityTopic   = "availability_topic"
	FieldPayloadAvailable    = "payload_available"
	FieldPayloadNotAvailable = "payload_not_available"
	FieldDevice              = "device"
)

// Abbreviations maps the abbreviated configuration field names publishers may use to their
// full forms. See the supported-abbreviations table in the Home Assistant MQTT docs.
var Abbreviations = map[string]string{
	"stat_t":       FieldStateTopic,
	"pl_on":        FieldPayloadOn,
	"pl_off":       FieldPayloadOff,
	"dev_cla":      FieldDeviceClass,
	"frc_upd":      FieldForceUpdate,
	"off_dly":      FieldOffDelay,
	"uniq_id":      FieldUniqueID,
	"val_tpl":      FieldValueTemplate,
	"avty_t":       FieldAvailabilityTopic,
	"pl_avail":     FieldPayloadAvailable,
	"pl_not_avail": FieldPayloadNotAvailable,
	"dev":          FieldDevice,
}

// DeviceAbbreviations maps abbreviated field names inside the device record.
var DeviceAbbreviations = map[string]string{
	"ids":  "identifiers",
	"cns":  "connections",
	"mf":   "manufacturer",
	"mdl":  "model",
	"sw":   "sw_version",
	"via":  "via_device",
	"name": "name",
}

// ExpandAbbreviations rewrites the top-level (and device-level) abbreviated field names in
// the provided discovery payload to their full forms, leaving everything else untouched.
// Payloads that only use full names pass through unchanged.
func ExpandAbbreviations(payload []byte) ([]byte, error) {
	var fields map[string]jsontext.Value
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("expand discovery abbreviations: %w", err)
	}

	expanded := make(map[string]jsontext.Value, len(fields))
	for key, value := range fields {
		if full, ok := Abbreviations[key]; ok {
			key = full
		}

		if key == FieldDevice {
			device, err := expandDevice(value)
			if err != nil {
				return nil, err
			}
			value = device
		}

		expanded[key] = value
	}

	result, err := json.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("expand discovery abbreviations: %w", err)
	}

	return result, nil
}

func expandDevice(value jsontext.Value) (jsontext.Value, error) {
	var fields map[string]jsontext.Value
	if err := json.Unmarshal(value, &fields); err != nil {
		return nil, fmt.Errorf("expand device abbreviations: %w", err)
	}

	expanded := make(map[string]jsontext.Value, len(fields))
	for key, v := range fields {
		if full, ok := DeviceAbbreviations[key]; ok {
			key = full
		}

		expanded[key] = v
	}

	result, err := json.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("expand device abbreviations: %w", err)
	}

	return jsontext.Value(result), nil
}
