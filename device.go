package networkmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/netbind/networkmanager/errdefs"
	"github.com/netbind/networkmanager/internal/dbusapi"
)

// DeviceType mirrors the NMDeviceType enumeration for the device kinds this
// library works with; everything else reports DeviceTypeUnknown.
type DeviceType uint32

const (
	DeviceTypeUnknown  DeviceType = 0
	DeviceTypeEthernet DeviceType = 1
	DeviceTypeWiFi     DeviceType = 2
	DeviceTypeBridge   DeviceType = 13
	DeviceTypeGeneric  DeviceType = 14
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeEthernet:
		return "ethernet"
	case DeviceTypeWiFi:
		return "wifi"
	case DeviceTypeBridge:
		return "bridge"
	case DeviceTypeGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

func deviceTypeFromNM(value uint32) DeviceType {
	switch DeviceType(value) {
	case DeviceTypeEthernet, DeviceTypeWiFi, DeviceTypeBridge, DeviceTypeGeneric:
		return DeviceType(value)
	default:
		return DeviceTypeUnknown
	}
}

// DeviceState mirrors the NMDeviceState enumeration.
type DeviceState uint32

const (
	DeviceStateUnknown      DeviceState = 0
	DeviceStateUnmanaged    DeviceState = 10
	DeviceStateUnavailable  DeviceState = 20
	DeviceStateDisconnected DeviceState = 30
	DeviceStatePrepare      DeviceState = 40
	DeviceStateConfig       DeviceState = 50
	DeviceStateNeedAuth     DeviceState = 60
	DeviceStateIPConfig     DeviceState = 70
	DeviceStateIPCheck      DeviceState = 80
	DeviceStateSecondaries  DeviceState = 90
	DeviceStateActivated    DeviceState = 100
	DeviceStateDeactivating DeviceState = 110
	DeviceStateFailed       DeviceState = 120
)

func (s DeviceState) String() string {
	switch s {
	case DeviceStateUnmanaged:
		return "unmanaged"
	case DeviceStateUnavailable:
		return "unavailable"
	case DeviceStateDisconnected:
		return "disconnected"
	case DeviceStatePrepare:
		return "prepare"
	case DeviceStateConfig:
		return "config"
	case DeviceStateNeedAuth:
		return "need-auth"
	case DeviceStateIPConfig:
		return "ip-config"
	case DeviceStateIPCheck:
		return "ip-check"
	case DeviceStateSecondaries:
		return "secondaries"
	case DeviceStateActivated:
		return "activated"
	case DeviceStateDeactivating:
		return "deactivating"
	case DeviceStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func deviceStateFromNM(value uint32) DeviceState {
	switch DeviceState(value) {
	case DeviceStateUnmanaged, DeviceStateUnavailable, DeviceStateDisconnected,
		DeviceStatePrepare, DeviceStateConfig, DeviceStateNeedAuth,
		DeviceStateIPConfig, DeviceStateIPCheck, DeviceStateSecondaries,
		DeviceStateActivated, DeviceStateDeactivating, DeviceStateFailed:
		return DeviceState(value)
	default:
		return DeviceStateUnknown
	}
}

// Device is a proxy for one org.freedesktop.NetworkManager.Device object.
// The interface name and device type are fixed for the lifetime of a device,
// so they are read once; state is always fetched fresh.
type Device struct {
	nm         *NetworkManager
	path       dbus.ObjectPath
	iface      string
	deviceType DeviceType
}

func (nm *NetworkManager) newDevice(ctx context.Context, path dbus.ObjectPath) (*Device, error) {
	v, err := nm.dbus.Property(ctx, path, deviceInterface, "Interface")
	if err != nil {
		return nil, err
	}
	iface, err := dbusapi.VariantString(v)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", path, err)
	}

	v, err = nm.dbus.Property(ctx, path, deviceInterface, "DeviceType")
	if err != nil {
		return nil, err
	}
	devType, err := dbusapi.VariantUint32(v)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", path, err)
	}

	return &Device{
		nm:         nm,
		path:       path,
		iface:      iface,
		deviceType: deviceTypeFromNM(devType),
	}, nil
}

// Devices lists all devices known to NetworkManager.
func (nm *NetworkManager) Devices(ctx context.Context) ([]*Device, error) {
	paths, err := nm.pathListProperty(ctx, nmPath, nmInterface, "Devices")
	if err != nil {
		return nil, err
	}

	devices := make([]*Device, 0, len(paths))
	for _, path := range paths {
		device, err := nm.newDevice(ctx, path)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}

	return devices, nil
}

// DeviceByInterface resolves a device by its kernel interface name.
func (nm *NetworkManager) DeviceByInterface(ctx context.Context, iface string) (*Device, error) {
	var path dbus.ObjectPath
	err := nm.dbus.Call(ctx, nmPath, nmInterface+".GetDeviceByIpIface", []interface{}{&path}, iface)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errdefs.ErrDeviceGone, iface)
	}
	return nm.newDevice(ctx, path)
}

// Path returns the device's object path.
func (d *Device) Path() dbus.ObjectPath {
	return d.path
}

// Interface returns the kernel interface name, e.g. "wlan0".
func (d *Device) Interface() string {
	return d.iface
}

// Type returns the device type.
func (d *Device) Type() DeviceType {
	return d.deviceType
}

// State fetches the current device state.
func (d *Device) State(ctx context.Context) (DeviceState, error) {
	v, err := d.nm.dbus.Property(ctx, d.path, deviceInterface, "State")
	if err != nil {
		return DeviceStateUnknown, err
	}
	state, err := dbusapi.VariantUint32(v)
	if err != nil {
		return DeviceStateUnknown, fmt.Errorf("device %s: %w", d.path, err)
	}
	return deviceStateFromNM(state), nil
}

// Real reports whether the device is backed by real hardware (as opposed to
// a placeholder NetworkManager keeps for software devices it could create).
func (d *Device) Real(ctx context.Context) (bool, error) {
	v, err := d.nm.dbus.Property(ctx, d.path, deviceInterface, "Real")
	if err != nil {
		return false, err
	}
	return dbusapi.VariantBool(v)
}

// AsWiFiDevice returns a wireless view of the device, or nil when the device
// is not a WiFi device.
func (d *Device) AsWiFiDevice() *WiFiDevice {
	if d.deviceType != DeviceTypeWiFi {
		return nil
	}
	return &WiFiDevice{device: d}
}

// AsEthernetDevice returns a wired view of the device, or nil when the device
// is not an ethernet device.
func (d *Device) AsEthernetDevice() *EthernetDevice {
	if d.deviceType != DeviceTypeEthernet {
		return nil
	}
	return &EthernetDevice{device: d}
}

// Connect activates the best available connection on the device and waits
// until the device reports Activated or ctx expires.
func (d *Device) Connect(ctx context.Context) (DeviceState, error) {
	state, err := d.State(ctx)
	if err != nil {
		return DeviceStateUnknown, err
	}
	if state == DeviceStateActivated {
		return state, nil
	}

	err = d.nm.dbus.Call(ctx, nmPath, nmInterface+".ActivateConnection", nil,
		dbus.ObjectPath("/"), d.path, dbus.ObjectPath("/"))
	if err != nil {
		return DeviceStateUnknown, err
	}

	return d.waitState(ctx, DeviceStateActivated)
}

// Disconnect tears down the device's active connection and waits until the
// device reports Disconnected or ctx expires.
func (d *Device) Disconnect(ctx context.Context) (DeviceState, error) {
	state, err := d.State(ctx)
	if err != nil {
		return DeviceStateUnknown, err
	}
	if state == DeviceStateDisconnected {
		return state, nil
	}

	if err := d.nm.dbus.Call(ctx, d.path, deviceInterface+".Disconnect", nil); err != nil {
		return DeviceStateUnknown, err
	}

	return d.waitState(ctx, DeviceStateDisconnected)
}

func (d *Device) waitState(ctx context.Context, target DeviceState) (DeviceState, error) {
	ctx, cancel := d.nm.waitContext(ctx)
	defer cancel()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			state, err := d.State(context.Background())
			if err != nil {
				return DeviceStateUnknown, err
			}
			if state == target {
				return state, nil
			}
			return state, fmt.Errorf("%w: device %s is %s, wanted %s",
				errdefs.ErrTimeout, d.iface, state, target)
		case <-ticker.C:
			state, err := d.State(ctx)
			if err != nil {
				return DeviceStateUnknown, err
			}
			if state == target {
				return state, nil
			}
		}
	}
}

// waitContext applies the client timeout to wait loops whose caller did not
// bound the context.
func (nm *NetworkManager) waitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, nm.dbus.Timeout())
}
