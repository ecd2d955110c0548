package platform

import (
	"encoding/json/v2"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hearthd/hearth"
	"github.com/hearthd/hearth/hass"
	"github.com/hearthd/hearth/mqtt"
	"github.com/hearthd/hearth/template"
)

// Defaults applied by the binary sensor schema.
const (
	DefaultBinarySensorName = "MQTT Binary sensor"
	DefaultPayloadOn        = "ON"
	DefaultPayloadOff       = "OFF"
)

var (
	// ErrStateTopicRequired is the error returned by the schema when state_topic is missing.
	ErrStateTopicRequired = errors.New("state_topic is required")
	// ErrNegativeOffDelay is the error returned by the schema when off_delay is negative.
	ErrNegativeOffDelay = errors.New("off_delay must not be negative")
	// ErrInvalidQoS is the error returned by the schema for QoS levels outside 0..2.
	ErrInvalidQoS = errors.New("qos must be 0, 1 or 2")
)

// BinarySensorConfig is the validated configuration a BinarySensor is constructed from.
// Always obtain one through ParseStaticYAML, ParseStaticYAMLList, or ParseDiscoveryJSON;
// the sensor itself trusts every field.
type BinarySensorConfig struct {
	// Name is the display label.
	Name string

	// StateTopic is the topic state payloads are published to.
	StateTopic string

	// PayloadOn and PayloadOff are the exact-match tokens that map a derived payload to on
	// and off. Comparison is case-sensitive with no trimming.
	PayloadOn  string
	PayloadOff string

	// DeviceClass describes what the sensor measures, or empty.
	DeviceClass hass.BinarySensorDeviceClass

	// QoS is the maximum quality of service for the state subscription, passed through to
	// the transport opaquely.
	QoS mqtt.QualityOfService

	// ForceUpdate propagates state refreshes even when the state has not changed.
	ForceUpdate bool

	// OffDelay, when set, auto-clears the state to off this long after it becomes on.
	OffDelay *time.Duration

	// UniqueID is a stable identity for host-side deduplication, or empty.
	UniqueID string

	// ValueTemplate derives the payload used for comparison from the raw payload. Nil means
	// the raw payload is compared directly.
	ValueTemplate template.Transform

	// Availability configures device reachability tracking.
	Availability hearth.AvailabilityConfig

	// Device is the optional device metadata record this sensor belongs to.
	Device *hearth.DeviceInfo
}

// rawBinarySensorConfig is the wire form shared by the YAML and discovery JSON schemas.
// Pointer fields distinguish "absent" from zero so defaults only fill missing values.
type rawBinarySensorConfig struct {
	Name                *string            `json:"name" yaml:"name"`
	StateTopic          string             `json:"state_topic" yaml:"state_topic"`
	PayloadOn           *string            `json:"payload_on" yaml:"payload_on"`
	PayloadOff          *string            `json:"payload_off" yaml:"payload_off"`
	DeviceClass         string             `json:"device_class" yaml:"device_class"`
	QoS                 *uint8             `json:"qos" yaml:"qos"`
	ForceUpdate         bool               `json:"force_update" yaml:"force_update"`
	OffDelay            *int               `json:"off_delay" yaml:"off_delay"`
	UniqueID            string             `json:"unique_id" yaml:"unique_id"`
	ValueTemplate       string             `json:"value_template" yaml:"value_template"`
	AvailabilityTopic   string             `json:"availability_topic" yaml:"availability_topic"`
	PayloadAvailable    string             `json:"payload_available" yaml:"payload_available"`
	PayloadNotAvailable string             `json:"payload_not_available" yaml:"payload_not_available"`
	Device              *hearth.DeviceInfo `json:"device" yaml:"device"`
}

// build applies defaults and validates, reporting every failing field at once.
func (r rawBinarySensorConfig) build() (BinarySensorConfig, error) {
	cfg := BinarySensorConfig{
		Name:        DefaultBinarySensorName,
		StateTopic:  r.StateTopic,
		PayloadOn:   DefaultPayloadOn,
		PayloadOff:  DefaultPayloadOff,
		DeviceClass: hass.BinarySensorDeviceClass(r.DeviceClass),
		QoS:         mqtt.QOSDefault,
		ForceUpdate: r.ForceUpdate,
		UniqueID:    r.UniqueID,
		Device:      r.Device,
	}

	if r.Name != nil {
		cfg.Name = *r.Name
	}
	if r.PayloadOn != nil {
		cfg.PayloadOn = *r.PayloadOn
	}
	if r.PayloadOff != nil {
		cfg.PayloadOff = *r.PayloadOff
	}

	var errs []error

	if r.StateTopic == "" {
		errs = append(errs, ErrStateTopicRequired)
	}

	if r.QoS != nil {
		cfg.QoS = mqtt.QualityOfService(*r.QoS)
		if !cfg.QoS.Valid() {
			errs = append(errs, fmt.Errorf("%w, got %d", ErrInvalidQoS, *r.QoS))
		}
	}

	if r.OffDelay != nil {
		if *r.OffDelay < 0 {
			errs = append(errs, fmt.Errorf("%w, got %d", ErrNegativeOffDelay, *r.OffDelay))
		} else {
			d := time.Duration(*r.OffDelay) * time.Second
			cfg.OffDelay = &d
		}
	}

	if err := cfg.DeviceClass.Valid(); err != nil {
		errs = append(errs, fmt.Errorf("device_class: %w", err))
	}

	if r.ValueTemplate != "" {
		transform, err := template.Compile(r.ValueTemplate)
		if err != nil {
			errs = append(errs, fmt.Errorf("value_template: %w", err))
		} else {
			cfg.ValueTemplate = transform
		}
	}

	cfg.Availability = hearth.AvailabilityConfig{
		Topic: r.AvailabilityTopic,
		Custom: hass.CustomAvailability{
			Available:   hass.Availability(r.PayloadAvailable),
			Unavailable: hass.Availability(r.PayloadNotAvailable),
		},
		QoS: cfg.QoS,
	}

	if r.Device != nil {
		if err := r.Device.Valid(); err != nil {
			errs = append(errs, fmt.Errorf("device: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return BinarySensorConfig{}, err
	}

	return cfg, nil
}

// ParseStaticYAML parses and validates one binary sensor configuration from YAML, the form
// used by statically configured sensors.
func ParseStaticYAML(data []byte) (BinarySensorConfig, error) {
	var raw rawBinarySensorConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return BinarySensorConfig{}, fmt.Errorf("parse binary_sensor config: %w", err)
	}

	return raw.build()
}

// ParseStaticYAMLList parses and validates a YAML list of binary sensor configurations.
func ParseStaticYAMLList(data []byte) ([]BinarySensorConfig, error) {
	var raws []rawBinarySensorConfig
	if err := yaml.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("parse binary_sensor config list: %w", err)
	}

	configs := make([]BinarySensorConfig, len(raws))
	for i, raw := range raws {
		cfg, err := raw.build()
		if err != nil {
			return nil, fmt.Errorf("binary_sensor %d: %w", i, err)
		}

		configs[i] = cfg
	}

	return configs, nil
}

// ParseDiscoveryJSON parses and validates one binary sensor configuration from a discovery
// payload. Abbreviated field names must already be expanded (see the discovery package).
func ParseDiscoveryJSON(payload []byte) (BinarySensorConfig, error) {
	var raw rawBinarySensorConfig
	if err := json.Unmarshal(payload, &raw); err != nil {
		return BinarySensorConfig{}, fmt.Errorf("parse binary_sensor discovery config: %w", err)
	}

	return raw.build()
}
