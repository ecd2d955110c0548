package hass

import (
	"errors"
	"fmt"
)

// ErrUnknownDeviceClass is the error returned by BinarySensorDeviceClass.Valid for values
// outside the fixed set Home Assistant defines for binary sensors.
var ErrUnknownDeviceClass = errors.New("unknown binary sensor device class")

// BinarySensorDeviceClass describes what a binary sensor measures, which controls how the
// frontend renders its state (e.g. a "door" shows Open/Closed instead of On/Off). The empty
// string means no device class.
//
// See https://www.home-assistant.io/integrations/binary_sensor/#device-class.
type BinarySensorDeviceClass string

const (
	DeviceClassBattery      BinarySensorDeviceClass = "battery"
	DeviceClassCold         BinarySensorDeviceClass = "cold"
	DeviceClassConnectivity BinarySensorDeviceClass = "connectivity"
	DeviceClassDoor         BinarySensorDeviceClass = "door"
	DeviceClassGarageDoor   BinarySensorDeviceClass = "garage_door"
	DeviceClassGas          BinarySensorDeviceClass = "gas"
	DeviceClassHeat         BinarySensorDeviceClass = "heat"
	DeviceClassLight        BinarySensorDeviceClass = "light"
	DeviceClassLock         BinarySensorDeviceClass = "lock"
	DeviceClassMoisture     BinarySensorDeviceClass = "moisture"
	DeviceClassMotion       BinarySensorDeviceClass = "motion"
	DeviceClassMoving       BinarySensorDeviceClass = "moving"
	DeviceClassOccupancy    BinarySensorDeviceClass = "occupancy"
	DeviceClassOpening      BinarySensorDeviceClass = "opening"
	DeviceClassPlug         BinarySensorDeviceClass = "plug"
	DeviceClassPower        BinarySensorDeviceClass = "power"
	DeviceClassPresence     BinarySensorDeviceClass = "presence"
	DeviceClassProblem      BinarySensorDeviceClass = "problem"
	DeviceClassSafety       BinarySensorDeviceClass = "safety"
	DeviceClassSmoke        BinarySensorDeviceClass = "smoke"
	DeviceClassSound        BinarySensorDeviceClass = "sound"
	DeviceClassVibration    BinarySensorDeviceClass = "vibration"
	DeviceClassWindow       BinarySensorDeviceClass = "window"
)

var binarySensorDeviceClasses = map[BinarySensorDeviceClass]struct{}{
	DeviceClassBattery:      {},
	DeviceClassCold:         {},
	DeviceClassConnectivity: {},
	DeviceClassDoor:         {},
	DeviceClassGarageDoor:   {},
	DeviceClassGas:          {},
	DeviceClassHeat:         {},
	DeviceClassLight:        {},
	DeviceClassLock:         {},
	DeviceClassMoisture:     {},
	DeviceClassMotion:       {},
	DeviceClassMoving:       {},
	DeviceClassOccupancy:    {},
	DeviceClassOpening:      {},
	DeviceClassPlug:         {},
	DeviceClassPower:        {},
	DeviceClassPresence:     {},
	DeviceClassProblem:      {},
	DeviceClassSafety:       {},
	DeviceClassSmoke:        {},
	DeviceClassSound:        {},
	DeviceClassVibration:    {},
	DeviceClassWindow:       {},
}

// Valid reports whether this device class is a member of the fixed set. The empty string is
// valid and means the entity has no device class.
func (d BinarySensorDeviceClass) Valid() error {
	if d == "" {
		return nil
	}

	if _, ok := binarySensorDeviceClasses[d]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDeviceClass, string(d))
	}

	return nil
}
