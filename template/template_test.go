package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	t.Run("Empty Is Passthrough", func(t *testing.T) {
		sut, err := Compile("")
		require.NoError(t, err)

		got, err := sut([]byte("ON"))
		require.NoError(t, err)
		assert.Equal(t, []byte("ON"), got)
	})

	t.Run("Identity", func(t *testing.T) {
		sut, err := Compile("{{ value }}")
		require.NoError(t, err)

		got, err := sut([]byte("anything at all"))
		require.NoError(t, err)
		assert.Equal(t, []byte("anything at all"), got)
	})

	t.Run("Unsupported", func(t *testing.T) {
		for _, expr := range []string{
			"{{ value | upper }}",
			"{% if value %}ON{% endif %}",
			"value_json.occupancy",
			"{{ value_json. }}",
			"{{ states('sensor.foo') }}",
		} {
			t.Run(expr, func(t *testing.T) {
				_, err := Compile(expr)
				require.ErrorIs(t, err, ErrUnsupportedExpression)
			})
		}
	})
}

func TestJSONField(t *testing.T) {
	payload := []byte(`{
		"occupancy": true,
		"battery": 97,
		"voltage": 3.21,
		"state": "ON",
		"nested": {"contact": false},
		"nothing": null
	}`)

	for _, tt := range []struct {
		expr string
		want string
	}{
		{expr: "{{ value_json.state }}", want: "ON"},
		{expr: "{{ value_json.occupancy }}", want: "True"},
		{expr: "{{ value_json.nested.contact }}", want: "False"},
		{expr: "{{ value_json.battery }}", want: "97"},
		{expr: "{{ value_json.voltage }}", want: "3.21"},
		{expr: "{{ value_json.nothing }}", want: "None"},
	} {
		t.Run(tt.expr, func(t *testing.T) {
			sut, err := Compile(tt.expr)
			require.NoError(t, err)

			got, err := sut(payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	t.Run("Missing Field", func(t *testing.T) {
		sut := JSONField("missing")

		_, err := sut(payload)
		require.ErrorIs(t, err, ErrNoSuchField)
	})

	t.Run("Path Through Scalar", func(t *testing.T) {
		sut := JSONField("battery", "level")

		_, err := sut(payload)
		require.ErrorIs(t, err, ErrNotAnObject)
	})

	t.Run("Invalid Json", func(t *testing.T) {
		sut := JSONField("state")

		_, err := sut([]byte("not json"))
		require.Error(t, err)
	})
}
