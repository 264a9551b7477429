package networkmanager

import (
	"sort"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
)

func TestConnectionStateFromNM(t *testing.T) {
	assert.Equal(t, ConnectionStateActivated, connectionStateFromNM(2))
	assert.Equal(t, ConnectionStateDeactivated, connectionStateFromNM(4))
	assert.Equal(t, ConnectionStateUnknown, connectionStateFromNM(5))
}

func TestPathIndexOrdering(t *testing.T) {
	paths := []dbus.ObjectPath{
		"/org/freedesktop/NetworkManager/Settings/12",
		"/org/freedesktop/NetworkManager/Settings/3",
		"/org/freedesktop/NetworkManager/Settings/badsuffix",
		"/org/freedesktop/NetworkManager/Settings/1",
	}

	sort.Slice(paths, func(i, j int) bool {
		return pathIndex(paths[i]) < pathIndex(paths[j])
	})

	assert.Equal(t, dbus.ObjectPath("/org/freedesktop/NetworkManager/Settings/1"), paths[0])
	assert.Equal(t, dbus.ObjectPath("/org/freedesktop/NetworkManager/Settings/3"), paths[1])
	assert.Equal(t, dbus.ObjectPath("/org/freedesktop/NetworkManager/Settings/12"), paths[2])
	// non-numeric suffix sorts last
	assert.Equal(t, dbus.ObjectPath("/org/freedesktop/NetworkManager/Settings/badsuffix"), paths[3])
}

func TestDecodeConnectionSettings(t *testing.T) {
	raw := map[string]map[string]dbus.Variant{
		"connection": {
			"id":   dbus.MakeVariant("Home WiFi"),
			"uuid": dbus.MakeVariant("5c8f92f7-0f1f-4b63-9a6d-2f5d3b1b6a01"),
			"type": dbus.MakeVariant("802-11-wireless"),
		},
		"802-11-wireless": {
			"ssid": dbus.MakeVariant([]byte("home")),
		},
	}

	settings := decodeConnectionSettings(raw)
	assert.Equal(t, "Home WiFi", settings.ID)
	assert.Equal(t, "5c8f92f7-0f1f-4b63-9a6d-2f5d3b1b6a01", settings.UUID)
	assert.Equal(t, "802-11-wireless", settings.Kind)
	assert.Equal(t, "home", settings.Ssid.String())
}

func TestDecodeConnectionSettingsWired(t *testing.T) {
	raw := map[string]map[string]dbus.Variant{
		"connection": {
			"id":   dbus.MakeVariant("eth0-static"),
			"type": dbus.MakeVariant("802-3-ethernet"),
		},
	}

	settings := decodeConnectionSettings(raw)
	assert.Equal(t, "eth0-static", settings.ID)
	assert.Equal(t, "802-3-ethernet", settings.Kind)
	assert.Empty(t, settings.Ssid)
}
