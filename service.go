package networkmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/netbind/networkmanager/errdefs"
	"github.com/netbind/networkmanager/internal/dbusapi"
)

const (
	systemdService = "org.freedesktop.systemd1"

	systemdPath dbus.ObjectPath = "/org/freedesktop/systemd1"

	systemdManagerInterface = "org.freedesktop.systemd1.Manager"
	systemdUnitInterface    = "org.freedesktop.systemd1.Unit"

	nmUnit = "NetworkManager.service"
)

// ServiceState is the systemd ActiveState of the NetworkManager unit.
type ServiceState int

const (
	ServiceStateUnknown ServiceState = iota
	ServiceStateActive
	ServiceStateReloading
	ServiceStateInactive
	ServiceStateFailed
	ServiceStateActivating
	ServiceStateDeactivating
)

func (s ServiceState) String() string {
	switch s {
	case ServiceStateActive:
		return "active"
	case ServiceStateReloading:
		return "reloading"
	case ServiceStateInactive:
		return "inactive"
	case ServiceStateFailed:
		return "failed"
	case ServiceStateActivating:
		return "activating"
	case ServiceStateDeactivating:
		return "deactivating"
	default:
		return "unknown"
	}
}

func serviceStateFromString(s string) (ServiceState, error) {
	switch s {
	case "active":
		return ServiceStateActive, nil
	case "reloading":
		return ServiceStateReloading, nil
	case "inactive":
		return ServiceStateInactive, nil
	case "failed":
		return ServiceStateFailed, nil
	case "activating":
		return ServiceStateActivating, nil
	case "deactivating":
		return ServiceStateDeactivating, nil
	default:
		return ServiceStateUnknown, fmt.Errorf("unrecognized systemd unit state %q", s)
	}
}

// ServiceState reports the systemd state of NetworkManager.service. Unlike the
// other methods on NetworkManager this talks to systemd, so it works even when
// NetworkManager itself is down.
func (nm *NetworkManager) ServiceState(ctx context.Context) (ServiceState, error) {
	unitPath, err := nm.unitPath(ctx)
	if err != nil {
		return ServiceStateUnknown, err
	}

	v, err := nm.dbus.PropertyOn(ctx, systemdService, unitPath, systemdUnitInterface, "ActiveState")
	if err != nil {
		return ServiceStateUnknown, err
	}
	raw, err := dbusapi.VariantString(v)
	if err != nil {
		return ServiceStateUnknown, err
	}
	return serviceStateFromString(raw)
}

// StartService starts NetworkManager.service and waits until it is active.
func (nm *NetworkManager) StartService(ctx context.Context) (ServiceState, error) {
	state, err := nm.ServiceState(ctx)
	if err == nil && state == ServiceStateActive {
		return state, nil
	}

	var job dbus.ObjectPath
	err = nm.dbus.CallOn(ctx, systemdService, systemdPath, systemdManagerInterface+".StartUnit",
		[]interface{}{&job}, nmUnit, "fail")
	if err != nil {
		return ServiceStateUnknown, fmt.Errorf("%w: start: %v", errdefs.ErrServiceFailed, err)
	}

	return nm.waitServiceState(ctx, ServiceStateActive)
}

// StopService stops NetworkManager.service and waits until it is inactive.
func (nm *NetworkManager) StopService(ctx context.Context) (ServiceState, error) {
	state, err := nm.ServiceState(ctx)
	if err == nil && state == ServiceStateInactive {
		return state, nil
	}

	var job dbus.ObjectPath
	err = nm.dbus.CallOn(ctx, systemdService, systemdPath, systemdManagerInterface+".StopUnit",
		[]interface{}{&job}, nmUnit, "fail")
	if err != nil {
		return ServiceStateUnknown, fmt.Errorf("%w: stop: %v", errdefs.ErrServiceFailed, err)
	}

	return nm.waitServiceState(ctx, ServiceStateInactive)
}

func (nm *NetworkManager) unitPath(ctx context.Context) (dbus.ObjectPath, error) {
	var path dbus.ObjectPath
	err := nm.dbus.CallOn(ctx, systemdService, systemdPath, systemdManagerInterface+".GetUnit",
		[]interface{}{&path}, nmUnit)
	if err != nil {
		// GetUnit fails for units systemd has garbage collected; LoadUnit
		// always answers.
		err = nm.dbus.CallOn(ctx, systemdService, systemdPath, systemdManagerInterface+".LoadUnit",
			[]interface{}{&path}, nmUnit)
		if err != nil {
			return "", fmt.Errorf("%w: resolve unit: %v", errdefs.ErrServiceFailed, err)
		}
	}
	return path, nil
}

func (nm *NetworkManager) waitServiceState(ctx context.Context, target ServiceState) (ServiceState, error) {
	ctx, cancel := nm.waitContext(ctx)
	defer cancel()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		state, err := nm.ServiceState(ctx)
		if err == nil && state == target {
			return state, nil
		}

		select {
		case <-ctx.Done():
			if err != nil {
				return ServiceStateUnknown, err
			}
			return state, fmt.Errorf("%w: %s is %s, wanted %s",
				errdefs.ErrTimeout, nmUnit, state, target)
		case <-ticker.C:
		}
	}
}
