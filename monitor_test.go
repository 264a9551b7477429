package networkmanager

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor() *Monitor {
	return &Monitor{
		deviceStates: make(map[dbus.ObjectPath]DeviceState),
		subscribers:  make(map[string]chan Event),
	}
}

func propertiesChangedSignal(path dbus.ObjectPath, iface string, changed map[string]dbus.Variant) *dbus.Signal {
	return &dbus.Signal{
		Path: path,
		Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
		Body: []interface{}{iface, changed, []string{}},
	}
}

func TestDecodePropertiesChanged(t *testing.T) {
	sig := propertiesChangedSignal(nmPath, nmInterface, map[string]dbus.Variant{
		"State": dbus.MakeVariant(uint32(70)),
	})

	iface, changed, ok := decodePropertiesChanged(sig)
	require.True(t, ok)
	assert.Equal(t, nmInterface, iface)
	assert.Contains(t, changed, "State")
}

func TestDecodePropertiesChangedRejectsMalformed(t *testing.T) {
	_, _, ok := decodePropertiesChanged(nil)
	assert.False(t, ok)

	_, _, ok = decodePropertiesChanged(&dbus.Signal{Name: "org.freedesktop.NetworkManager.StateChanged"})
	assert.False(t, ok)

	_, _, ok = decodePropertiesChanged(&dbus.Signal{
		Name: "org.freedesktop.DBus.Properties.PropertiesChanged",
		Body: []interface{}{42, "not a map"},
	})
	assert.False(t, ok)
}

func TestMonitorManagerStateChange(t *testing.T) {
	m := newTestMonitor()
	events := m.Subscribe("test")

	m.handleSignal(propertiesChangedSignal(nmPath, nmInterface, map[string]dbus.Variant{
		"State": dbus.MakeVariant(uint32(70)),
	}))

	ev := <-events
	assert.Equal(t, EventStateChanged, ev.Kind)
	assert.Equal(t, NmStateConnectedGlobal, ev.Status.State)
	assert.Equal(t, NmStateConnectedGlobal, m.Status().State)
}

func TestMonitorRadioSwitchChange(t *testing.T) {
	m := newTestMonitor()
	m.status.WirelessEnabled = true
	events := m.Subscribe("test")

	m.handleSignal(propertiesChangedSignal(nmPath, nmInterface, map[string]dbus.Variant{
		"WirelessEnabled": dbus.MakeVariant(false),
	}))

	ev := <-events
	assert.Equal(t, EventWirelessEnabledChanged, ev.Kind)
	assert.False(t, ev.Status.WirelessEnabled)
}

func TestMonitorDeviceStateChange(t *testing.T) {
	m := newTestMonitor()
	events := m.Subscribe("test")

	devicePath := dbus.ObjectPath("/org/freedesktop/NetworkManager/Devices/2")
	m.handleSignal(propertiesChangedSignal(devicePath, deviceInterface, map[string]dbus.Variant{
		"State": dbus.MakeVariant(uint32(100)),
	}))

	ev := <-events
	assert.Equal(t, EventDeviceStateChanged, ev.Kind)
	assert.Equal(t, devicePath, ev.Path)
	assert.Equal(t, DeviceStateActivated, ev.DeviceState)

	cached, ok := m.DeviceState(devicePath)
	require.True(t, ok)
	assert.Equal(t, DeviceStateActivated, cached)
}

func TestMonitorAccessPointsChange(t *testing.T) {
	m := newTestMonitor()
	events := m.Subscribe("test")

	devicePath := dbus.ObjectPath("/org/freedesktop/NetworkManager/Devices/2")
	m.handleSignal(propertiesChangedSignal(devicePath, wirelessInterface, map[string]dbus.Variant{
		"LastScan": dbus.MakeVariant(int64(123456)),
	}))

	ev := <-events
	assert.Equal(t, EventAccessPointsChanged, ev.Kind)
}

func TestMonitorIgnoresUnrelatedInterface(t *testing.T) {
	m := newTestMonitor()
	events := m.Subscribe("test")

	m.handleSignal(propertiesChangedSignal(nmPath, "org.freedesktop.UPower", map[string]dbus.Variant{
		"OnBattery": dbus.MakeVariant(true),
	}))

	select {
	case ev := <-events:
		t.Fatalf("unexpected event %v", ev.Kind)
	default:
	}
}

func TestMonitorDropsWhenSubscriberFull(t *testing.T) {
	m := newTestMonitor()
	m.Subscribe("slow")

	// 32 buffered + overflow must not block the pump
	for i := 0; i < 40; i++ {
		m.handleSignal(propertiesChangedSignal(nmPath, nmInterface, map[string]dbus.Variant{
			"State": dbus.MakeVariant(uint32(40)),
		}))
	}
}

func TestMonitorResubscribeReplaces(t *testing.T) {
	m := newTestMonitor()
	first := m.Subscribe("id")
	second := m.Subscribe("id")

	_, open := <-first
	assert.False(t, open)

	m.publish(Event{Kind: EventStateChanged})
	assert.Len(t, second, 1)
}

func TestMonitorUnsubscribe(t *testing.T) {
	m := newTestMonitor()
	events := m.Subscribe("id")
	m.Unsubscribe("id")

	_, open := <-events
	assert.False(t, open)

	// publishing after unsubscribe is a no-op
	m.publish(Event{Kind: EventStateChanged})
}
