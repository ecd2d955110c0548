package hass

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinarySensorDeviceClassValid(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		require.NoError(t, BinarySensorDeviceClass("").Valid())
	})

	t.Run("Known", func(t *testing.T) {
		require.NoError(t, DeviceClassMotion.Valid())
		require.NoError(t, DeviceClassGarageDoor.Valid())
	})

	t.Run("Unknown", func(t *testing.T) {
		require.ErrorIs(t, BinarySensorDeviceClass("sentience").Valid(), ErrUnknownDeviceClass)
	})
}
