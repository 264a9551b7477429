package networkmanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceTypeFromNM(t *testing.T) {
	assert.Equal(t, DeviceTypeEthernet, deviceTypeFromNM(1))
	assert.Equal(t, DeviceTypeWiFi, deviceTypeFromNM(2))
	assert.Equal(t, DeviceTypeBridge, deviceTypeFromNM(13))
	assert.Equal(t, DeviceTypeGeneric, deviceTypeFromNM(14))
	// modem, bluetooth, etc. fold into unknown
	assert.Equal(t, DeviceTypeUnknown, deviceTypeFromNM(8))
	assert.Equal(t, DeviceTypeUnknown, deviceTypeFromNM(99))
}

func TestDeviceStateFromNM(t *testing.T) {
	assert.Equal(t, DeviceStateActivated, deviceStateFromNM(100))
	assert.Equal(t, DeviceStateDisconnected, deviceStateFromNM(30))
	assert.Equal(t, DeviceStateFailed, deviceStateFromNM(120))
	// NM only emits multiples of ten; anything else is unknown
	assert.Equal(t, DeviceStateUnknown, deviceStateFromNM(35))
	assert.Equal(t, DeviceStateUnknown, deviceStateFromNM(130))
}

func TestDeviceStateString(t *testing.T) {
	assert.Equal(t, "activated", DeviceStateActivated.String())
	assert.Equal(t, "need-auth", DeviceStateNeedAuth.String())
	assert.Equal(t, "unknown", DeviceState(7).String())
}
