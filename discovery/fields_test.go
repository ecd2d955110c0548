package discovery

import (
	"encoding/json/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandAbbreviations(t *testing.T) {
	t.Run("Full Names Pass Through", func(t *testing.T) {
		in := []byte(`{"name":"x","state_topic":"a/b","payload_on":"ON"}`)

		out, err := ExpandAbbreviations(in)
		require.NoError(t, err)

		var fields map[string]any
		require.NoError(t, json.Unmarshal(out, &fields))
		assert.Equal(t, "a/b", fields["state_topic"])
		assert.Equal(t, "ON", fields["payload_on"])
	})

	t.Run("Abbreviated Names Are Expanded", func(t *testing.T) {
		in := []byte(`{
			"name": "x",
			"stat_t": "a/b",
			"pl_on": "open",
			"pl_off": "closed",
			"dev_cla": "door",
			"off_dly": 5,
			"uniq_id": "x1",
			"val_tpl": "{{ value }}",
			"avty_t": "a/avail",
			"dev": {"ids": "abc", "mf": "ACME", "mdl": "Mk1"}
		}`)

		out, err := ExpandAbbreviations(in)
		require.NoError(t, err)

		var fields map[string]any
		require.NoError(t, json.Unmarshal(out, &fields))

		assert.Equal(t, "a/b", fields[FieldStateTopic])
		assert.Equal(t, "open", fields[FieldPayloadOn])
		assert.Equal(t, "closed", fields[FieldPayloadOff])
		assert.Equal(t, "door", fields[FieldDeviceClass])
		assert.EqualValues(t, 5, fields[FieldOffDelay])
		assert.Equal(t, "x1", fields[FieldUniqueID])
		assert.Equal(t, "{{ value }}", fields[FieldValueTemplate])
		assert.Equal(t, "a/avail", fields[FieldAvailabilityTopic])

		device, ok := fields[FieldDevice].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "abc", device["identifiers"])
		assert.Equal(t, "ACME", device["manufacturer"])
		assert.Equal(t, "Mk1", device["model"])
	})

	t.Run("Malformed Payload", func(t *testing.T) {
		_, err := ExpandAbbreviations([]byte("nope"))
		require.Error(t, err)
	})
}
