package dbusapi

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariantUint32Coercion(t *testing.T) {
	// Strength is y on the wire, State is u; both must decode.
	tests := []interface{}{byte(70), uint16(70), int32(70), uint32(70), int64(70)}
	for _, raw := range tests {
		n, err := VariantUint32(dbus.MakeVariant(raw))
		require.NoError(t, err, "%T", raw)
		assert.Equal(t, uint32(70), n)
	}

	_, err := VariantUint32(dbus.MakeVariant("70"))
	assert.Error(t, err)
}

func TestVariantString(t *testing.T) {
	s, err := VariantString(dbus.MakeVariant("wlan0"))
	require.NoError(t, err)
	assert.Equal(t, "wlan0", s)

	_, err = VariantString(dbus.MakeVariant(uint32(1)))
	assert.Error(t, err)
}

func TestVariantObjectPaths(t *testing.T) {
	paths := []dbus.ObjectPath{"/org/freedesktop/NetworkManager/Devices/1"}
	out, err := VariantObjectPaths(dbus.MakeVariant(paths))
	require.NoError(t, err)
	assert.Equal(t, paths, out)

	_, err = VariantObjectPaths(dbus.MakeVariant([]string{"/not/typed"}))
	assert.Error(t, err)
}

func TestVariantBytes(t *testing.T) {
	b, err := VariantBytes(dbus.MakeVariant([]byte("ssid")))
	require.NoError(t, err)
	assert.Equal(t, []byte("ssid"), b)

	_, err = VariantBytes(dbus.MakeVariant("ssid"))
	assert.Error(t, err)
}
