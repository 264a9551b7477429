package networkmanager

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/netbind/networkmanager/errdefs"
	"github.com/netbind/networkmanager/internal/dbusapi"
)

// ConnectionState mirrors the NMActiveConnectionState enumeration. A settings
// profile with no matching active connection reports Deactivated.
type ConnectionState uint32

const (
	ConnectionStateUnknown ConnectionState = iota
	ConnectionStateActivating
	ConnectionStateActivated
	ConnectionStateDeactivating
	ConnectionStateDeactivated
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionStateActivating:
		return "activating"
	case ConnectionStateActivated:
		return "activated"
	case ConnectionStateDeactivating:
		return "deactivating"
	case ConnectionStateDeactivated:
		return "deactivated"
	default:
		return "unknown"
	}
}

func connectionStateFromNM(value uint32) ConnectionState {
	if value > uint32(ConnectionStateDeactivated) {
		return ConnectionStateUnknown
	}
	return ConnectionState(value)
}

// SettingsMap is the a{sa{sv}} shape NetworkManager uses for connection
// profiles. godbus marshals the interface{} values as variants.
type SettingsMap map[string]map[string]interface{}

// ConnectionSettings is the decoded subset of a profile this library works
// with. Kind is the "connection.type" value ("802-11-wireless",
// "802-3-ethernet", "vpn", ...).
type ConnectionSettings struct {
	ID   string
	UUID string
	Kind string
	Ssid Ssid
}

// Connection is a proxy for one Settings.Connection profile object.
type Connection struct {
	nm       *NetworkManager
	path     dbus.ObjectPath
	settings ConnectionSettings
}

func (nm *NetworkManager) newConnection(ctx context.Context, path dbus.ObjectPath) (*Connection, error) {
	var raw map[string]map[string]dbus.Variant
	err := nm.dbus.Call(ctx, path, connectionInterface+".GetSettings", []interface{}{&raw})
	if err != nil {
		return nil, err
	}

	return &Connection{
		nm:       nm,
		path:     path,
		settings: decodeConnectionSettings(raw),
	}, nil
}

func decodeConnectionSettings(raw map[string]map[string]dbus.Variant) ConnectionSettings {
	var settings ConnectionSettings

	if section, ok := raw["connection"]; ok {
		if v, ok := section["id"]; ok {
			settings.ID, _ = dbusapi.VariantString(v)
		}
		if v, ok := section["uuid"]; ok {
			settings.UUID, _ = dbusapi.VariantString(v)
		}
		if v, ok := section["type"]; ok {
			settings.Kind, _ = dbusapi.VariantString(v)
		}
	}

	if section, ok := raw["802-11-wireless"]; ok {
		if v, ok := section["ssid"]; ok {
			if bytes, err := dbusapi.VariantBytes(v); err == nil {
				settings.Ssid = Ssid(bytes)
			}
		}
	}

	return settings
}

// Connections lists all saved connection profiles, sorted by the numeric
// suffix of their settings path so the order is stable across calls.
func (nm *NetworkManager) Connections(ctx context.Context) ([]*Connection, error) {
	var paths []dbus.ObjectPath
	err := nm.dbus.Call(ctx, nmSettingsPath, settingsInterface+".ListConnections", []interface{}{&paths})
	if err != nil {
		return nil, err
	}

	connections := make([]*Connection, 0, len(paths))
	for _, path := range paths {
		conn, err := nm.newConnection(ctx, path)
		if err != nil {
			return nil, err
		}
		connections = append(connections, conn)
	}

	sort.Slice(connections, func(i, j int) bool {
		return pathIndex(connections[i].path) < pathIndex(connections[j].path)
	})

	return connections, nil
}

// ConnectionByUUID resolves a saved profile by its connection.uuid value.
func (nm *NetworkManager) ConnectionByUUID(ctx context.Context, uuid string) (*Connection, error) {
	connections, err := nm.Connections(ctx)
	if err != nil {
		return nil, err
	}
	for _, conn := range connections {
		if conn.settings.UUID == uuid {
			return conn, nil
		}
	}
	return nil, fmt.Errorf("%w: uuid %s", errdefs.ErrConnectionGone, uuid)
}

// AddConnection saves a new profile without activating it.
func (nm *NetworkManager) AddConnection(ctx context.Context, settings SettingsMap) (*Connection, error) {
	var path dbus.ObjectPath
	err := nm.dbus.Call(ctx, nmSettingsPath, settingsInterface+".AddConnection", []interface{}{&path},
		map[string]map[string]interface{}(settings))
	if err != nil {
		return nil, err
	}
	return nm.newConnection(ctx, path)
}

// pathIndex extracts the trailing numeric element of a settings path.
// Non-numeric paths sort last.
func pathIndex(path dbus.ObjectPath) int {
	s := string(path)
	idx := strings.LastIndex(s, "/")
	if idx < 0 || idx == len(s)-1 {
		return int(^uint(0) >> 1)
	}
	n, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}

// Path returns the profile's settings object path.
func (c *Connection) Path() dbus.ObjectPath {
	return c.path
}

// Settings returns the decoded profile settings.
func (c *Connection) Settings() ConnectionSettings {
	return c.settings
}

// Delete removes the saved profile.
func (c *Connection) Delete(ctx context.Context) error {
	return c.nm.dbus.Call(ctx, c.path, connectionInterface+".Delete", nil)
}

// State reports the profile's activation state by matching it against the
// manager's active connection list.
func (c *Connection) State(ctx context.Context) (ConnectionState, error) {
	activePath, active, err := c.activePath(ctx)
	if err != nil {
		return ConnectionStateUnknown, err
	}
	if !active {
		return ConnectionStateDeactivated, nil
	}
	return c.nm.activeConnectionState(ctx, activePath)
}

// activePath finds the active connection backed by this profile, if any.
func (c *Connection) activePath(ctx context.Context) (dbus.ObjectPath, bool, error) {
	activePaths, err := c.nm.pathListProperty(ctx, nmPath, nmInterface, "ActiveConnections")
	if err != nil {
		return "", false, err
	}

	for _, activePath := range activePaths {
		v, err := c.nm.dbus.Property(ctx, activePath, activeInterface, "Connection")
		if err != nil {
			// The active connection can disappear between the list call
			// and the property read.
			continue
		}
		settingsPath, err := dbusapi.VariantObjectPath(v)
		if err != nil {
			continue
		}
		if settingsPath == c.path {
			return activePath, true, nil
		}
	}

	return "", false, nil
}

func (nm *NetworkManager) activeConnectionState(ctx context.Context, path dbus.ObjectPath) (ConnectionState, error) {
	v, err := nm.dbus.Property(ctx, path, activeInterface, "State")
	if err != nil {
		// Active connections vanish mid-read during teardown.
		return ConnectionStateUnknown, nil
	}
	state, err := dbusapi.VariantUint32(v)
	if err != nil {
		return ConnectionStateUnknown, fmt.Errorf("active connection %s: %w", path, err)
	}
	return connectionStateFromNM(state), nil
}

// Activate enables the profile and waits for it to reach Activated, or until
// ctx expires. Already-activated profiles return immediately.
func (c *Connection) Activate(ctx context.Context) (ConnectionState, error) {
	state, err := c.State(ctx)
	if err != nil {
		return ConnectionStateUnknown, err
	}

	switch state {
	case ConnectionStateActivated:
		return state, nil
	case ConnectionStateActivating:
		return c.waitState(ctx, ConnectionStateActivated)
	default:
		err = c.nm.dbus.Call(ctx, nmPath, nmInterface+".ActivateConnection", nil,
			c.path, dbus.ObjectPath("/"), dbus.ObjectPath("/"))
		if err != nil {
			return ConnectionStateUnknown, err
		}
		return c.waitState(ctx, ConnectionStateActivated)
	}
}

// Deactivate disables the profile and waits for it to reach Deactivated, or
// until ctx expires.
func (c *Connection) Deactivate(ctx context.Context) (ConnectionState, error) {
	state, err := c.State(ctx)
	if err != nil {
		return ConnectionStateUnknown, err
	}

	switch state {
	case ConnectionStateDeactivated:
		return state, nil
	case ConnectionStateDeactivating:
		return c.waitState(ctx, ConnectionStateDeactivated)
	default:
		activePath, active, err := c.activePath(ctx)
		if err != nil {
			return ConnectionStateUnknown, err
		}
		if !active {
			return ConnectionStateDeactivated, nil
		}
		err = c.nm.dbus.Call(ctx, nmPath, nmInterface+".DeactivateConnection", nil, activePath)
		if err != nil {
			return ConnectionStateUnknown, err
		}
		return c.waitState(ctx, ConnectionStateDeactivated)
	}
}

func (c *Connection) waitState(ctx context.Context, target ConnectionState) (ConnectionState, error) {
	ctx, cancel := c.nm.waitContext(ctx)
	defer cancel()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			state, err := c.State(context.Background())
			if err != nil {
				return ConnectionStateUnknown, err
			}
			if state == target {
				return state, nil
			}
			return state, fmt.Errorf("%w: connection %q is %s, wanted %s",
				errdefs.ErrTimeout, c.settings.ID, state, target)
		case <-ticker.C:
			state, err := c.State(ctx)
			if err != nil {
				return ConnectionStateUnknown, err
			}
			if state == target {
				return state, nil
			}
		}
	}
}

// ActiveConnection is a proxy for one Connection.Active object.
type ActiveConnection struct {
	nm   *NetworkManager
	path dbus.ObjectPath
}

// ActiveConnections lists the currently active connections.
func (nm *NetworkManager) ActiveConnections(ctx context.Context) ([]*ActiveConnection, error) {
	paths, err := nm.pathListProperty(ctx, nmPath, nmInterface, "ActiveConnections")
	if err != nil {
		return nil, err
	}

	active := make([]*ActiveConnection, 0, len(paths))
	for _, path := range paths {
		active = append(active, &ActiveConnection{nm: nm, path: path})
	}
	return active, nil
}

// Path returns the active connection's object path.
func (a *ActiveConnection) Path() dbus.ObjectPath {
	return a.path
}

// ID returns the profile name backing this active connection.
func (a *ActiveConnection) ID(ctx context.Context) (string, error) {
	v, err := a.nm.dbus.Property(ctx, a.path, activeInterface, "Id")
	if err != nil {
		return "", err
	}
	return dbusapi.VariantString(v)
}

// UUID returns the backing profile's uuid.
func (a *ActiveConnection) UUID(ctx context.Context) (string, error) {
	v, err := a.nm.dbus.Property(ctx, a.path, activeInterface, "Uuid")
	if err != nil {
		return "", err
	}
	return dbusapi.VariantString(v)
}

// Kind returns the backing profile's connection.type value.
func (a *ActiveConnection) Kind(ctx context.Context) (string, error) {
	v, err := a.nm.dbus.Property(ctx, a.path, activeInterface, "Type")
	if err != nil {
		return "", err
	}
	return dbusapi.VariantString(v)
}

// State reports the active connection's state.
func (a *ActiveConnection) State(ctx context.Context) (ConnectionState, error) {
	return a.nm.activeConnectionState(ctx, a.path)
}

// Connection resolves the settings profile backing this active connection.
func (a *ActiveConnection) Connection(ctx context.Context) (*Connection, error) {
	v, err := a.nm.dbus.Property(ctx, a.path, activeInterface, "Connection")
	if err != nil {
		return nil, err
	}
	settingsPath, err := dbusapi.VariantObjectPath(v)
	if err != nil {
		return nil, fmt.Errorf("active connection %s: %w", a.path, err)
	}
	return a.nm.newConnection(ctx, settingsPath)
}

// Devices lists the devices this active connection is using.
func (a *ActiveConnection) Devices(ctx context.Context) ([]*Device, error) {
	paths, err := a.nm.pathListProperty(ctx, a.path, activeInterface, "Devices")
	if err != nil {
		return nil, err
	}

	devices := make([]*Device, 0, len(paths))
	for _, path := range paths {
		device, err := a.nm.newDevice(ctx, path)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, nil
}
