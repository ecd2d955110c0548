package hearth

import (
	"encoding/json/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDeviceInfoID(t *testing.T) {
	tests := []struct {
		name     string
		device   DeviceInfo
		expected string
	}{
		{
			name:     "single identifier",
			device:   DeviceInfo{Identifiers: Identifiers{"abc123"}},
			expected: "abc123",
		},
		{
			name:     "multiple identifiers joined",
			device:   DeviceInfo{Identifiers: Identifiers{"vendor", "abc123"}},
			expected: "vendor__abc123",
		},
		{
			name:     "identifiers sanitized",
			device:   DeviceInfo{Identifiers: Identifiers{"ab:c1.23"}},
			expected: "ab__c1__23",
		},
		{
			name: "falls back to name",
			device: DeviceInfo{
				Name:        "Garden Hub",
				Connections: []DeviceConnection{{Kind: "mac", Value: "02:5b:26:a8:dc:12"}},
			},
			expected: "Garden__Hub",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.device.ID())
		})
	}
}

func TestDeviceInfoValid(t *testing.T) {
	assert.ErrorIs(t, (&DeviceInfo{Name: "no ids"}).Valid(), ErrInvalidDevice)

	valid := &DeviceInfo{Identifiers: Identifiers{"abc123"}}
	assert.NoError(t, valid.Valid())

	byConnection := &DeviceInfo{Connections: []DeviceConnection{{Kind: "mac", Value: "02:5b:26:a8:dc:12"}}}
	assert.NoError(t, byConnection.Valid())
}

func TestDeviceInfoUnmarshalJSON(t *testing.T) {
	var sut DeviceInfo
	require.NoError(t, json.Unmarshal([]byte(`{
		"name": "Garden Hub",
		"manufacturer": "ACME",
		"model": "Hub 2",
		"sw_version": "1.4.0",
		"identifiers": ["vendor", "abc123"],
		"connections": [["mac", "02:5b:26:a8:dc:12"]],
		"via_device": "bridge-1"
	}`), &sut))

	assert.Equal(t, "Garden Hub", sut.Name)
	assert.Equal(t, "ACME", sut.Manufacturer)
	assert.Equal(t, "Hub 2", sut.Model)
	assert.Equal(t, "1.4.0", sut.SWVersion)
	assert.Equal(t, Identifiers{"vendor", "abc123"}, sut.Identifiers)
	require.Len(t, sut.Connections, 1)
	assert.Equal(t, DeviceConnection{Kind: "mac", Value: "02:5b:26:a8:dc:12"}, sut.Connections[0])
	assert.Equal(t, "bridge-1", sut.ViaDevice)
}

func TestDeviceInfoUnmarshalJSONScalarIdentifiers(t *testing.T) {
	var sut DeviceInfo
	require.NoError(t, json.Unmarshal([]byte(`{"identifiers": "abc123"}`), &sut))

	assert.Equal(t, Identifiers{"abc123"}, sut.Identifiers)
}

func TestDeviceInfoUnmarshalJSONBadConnection(t *testing.T) {
	var sut DeviceInfo
	err := json.Unmarshal([]byte(`{"connections": [["mac"]]}`), &sut)
	assert.ErrorContains(t, err, "pair")
}

func TestDeviceInfoUnmarshalYAML(t *testing.T) {
	var sut DeviceInfo
	require.NoError(t, yaml.Unmarshal([]byte(`
name: Garden Hub
identifiers:
  - vendor
  - abc123
connections:
  - [mac, "02:5b:26:a8:dc:12"]
`), &sut))

	assert.Equal(t, "Garden Hub", sut.Name)
	assert.Equal(t, Identifiers{"vendor", "abc123"}, sut.Identifiers)
	require.Len(t, sut.Connections, 1)
	assert.Equal(t, DeviceConnection{Kind: "mac", Value: "02:5b:26:a8:dc:12"}, sut.Connections[0])
}

func TestDeviceInfoUnmarshalYAMLScalarIdentifiers(t *testing.T) {
	var sut DeviceInfo
	require.NoError(t, yaml.Unmarshal([]byte(`identifiers: abc123`), &sut))

	assert.Equal(t, Identifiers{"abc123"}, sut.Identifiers)
}

func TestDeviceInfoUnmarshalYAMLBadConnection(t *testing.T) {
	var sut DeviceInfo
	err := yaml.Unmarshal([]byte(`connections: [[mac, a, b]]`), &sut)
	assert.ErrorContains(t, err, "pair")
}
