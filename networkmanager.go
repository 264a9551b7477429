// Package networkmanager provides typed client bindings for the Linux
// NetworkManager D-Bus service. Every remote object (manager, device,
// connection profile, active connection, access point) is wrapped in a proxy
// that owns its object path and decodes properties into Go types.
package networkmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/netbind/networkmanager/internal/dbusapi"
)

const (
	nmService = "org.freedesktop.NetworkManager"

	nmPath         dbus.ObjectPath = "/org/freedesktop/NetworkManager"
	nmSettingsPath dbus.ObjectPath = "/org/freedesktop/NetworkManager/Settings"

	nmInterface          = "org.freedesktop.NetworkManager"
	settingsInterface    = "org.freedesktop.NetworkManager.Settings"
	connectionInterface  = "org.freedesktop.NetworkManager.Settings.Connection"
	activeInterface      = "org.freedesktop.NetworkManager.Connection.Active"
	deviceInterface      = "org.freedesktop.NetworkManager.Device"
	wirelessInterface    = "org.freedesktop.NetworkManager.Device.Wireless"
	accessPointInterface = "org.freedesktop.NetworkManager.AccessPoint"

	// NetworkManager answers UnknownConnection for a short window after a
	// profile is added; the transport layer retries those calls.
	errUnknownConnection = "org.freedesktop.NetworkManager.UnknownConnection"
)

// Settings configures a NetworkManager client.
type Settings struct {
	// Timeout bounds each D-Bus method call and is the default wait budget
	// for state transitions. Zero means 15 seconds.
	Timeout time.Duration
}

// NetworkManager is the client-side proxy for the NetworkManager root object.
// It is safe for concurrent use; all methods issue bus calls, so they take a
// context.
type NetworkManager struct {
	dbus *dbusapi.Client
}

// New connects to NetworkManager on the system bus with default settings.
func New() (*NetworkManager, error) {
	return NewWithSettings(Settings{})
}

// NewWithSettings connects to NetworkManager on the system bus.
func NewWithSettings(s Settings) (*NetworkManager, error) {
	client, err := dbusapi.Connect(nmService, s.Timeout, errUnknownConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NetworkManager: %w", err)
	}
	return &NetworkManager{dbus: client}, nil
}

// Close releases the underlying bus connection. Proxies handed out by this
// client are unusable afterwards.
func (nm *NetworkManager) Close() error {
	return nm.dbus.Close()
}

// State reports the overall NetworkManager state.
func (nm *NetworkManager) State(ctx context.Context) (NmState, error) {
	var state uint32
	if err := nm.dbus.Call(ctx, nmPath, nmInterface+".state", []interface{}{&state}); err != nil {
		return NmStateUnknown, err
	}
	return NmState(state), nil
}

// CheckConnectivity asks NetworkManager to re-probe connectivity and returns
// the result.
func (nm *NetworkManager) CheckConnectivity(ctx context.Context) (Connectivity, error) {
	var connectivity uint32
	if err := nm.dbus.Call(ctx, nmPath, nmInterface+".CheckConnectivity", []interface{}{&connectivity}); err != nil {
		return ConnectivityUnknown, err
	}
	return Connectivity(connectivity), nil
}

// WirelessEnabled reports whether the wireless radio switch is on.
func (nm *NetworkManager) WirelessEnabled(ctx context.Context) (bool, error) {
	v, err := nm.dbus.Property(ctx, nmPath, nmInterface, "WirelessEnabled")
	if err != nil {
		return false, err
	}
	return dbusapi.VariantBool(v)
}

// SetWirelessEnabled flips the wireless radio switch.
func (nm *NetworkManager) SetWirelessEnabled(ctx context.Context, enabled bool) error {
	return nm.dbus.SetProperty(ctx, nmPath, nmInterface, "WirelessEnabled", enabled)
}

// NetworkingEnabled reports whether networking as a whole is enabled.
func (nm *NetworkManager) NetworkingEnabled(ctx context.Context) (bool, error) {
	v, err := nm.dbus.Property(ctx, nmPath, nmInterface, "NetworkingEnabled")
	if err != nil {
		return false, err
	}
	return dbusapi.VariantBool(v)
}

func (nm *NetworkManager) pathListProperty(ctx context.Context, path dbus.ObjectPath, iface, name string) ([]dbus.ObjectPath, error) {
	v, err := nm.dbus.Property(ctx, path, iface, name)
	if err != nil {
		return nil, err
	}
	return dbusapi.VariantObjectPaths(v)
}
