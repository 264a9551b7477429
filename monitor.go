package networkmanager

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/netbind/networkmanager/internal/dbusapi"
	"github.com/netbind/networkmanager/internal/log"
)

// EventKind identifies what changed in a Monitor event.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventConnectivityChanged
	EventWirelessEnabledChanged
	EventNetworkingEnabledChanged
	EventActiveConnectionsChanged
	EventDeviceStateChanged
	EventAccessPointsChanged
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state"
	case EventConnectivityChanged:
		return "connectivity"
	case EventWirelessEnabledChanged:
		return "wireless-enabled"
	case EventNetworkingEnabledChanged:
		return "networking-enabled"
	case EventActiveConnectionsChanged:
		return "active-connections"
	case EventDeviceStateChanged:
		return "device-state"
	case EventAccessPointsChanged:
		return "access-points"
	default:
		return "unknown"
	}
}

// Event is one observed change. Status is the manager snapshot after the
// change was folded in. DeviceState is only meaningful for
// EventDeviceStateChanged, where Path names the device.
type Event struct {
	Kind        EventKind
	Path        dbus.ObjectPath
	Status      Status
	DeviceState DeviceState
}

// refreshInterval bounds how stale the cached status can get when a change
// slips past the signal match.
const refreshInterval = 30 * time.Second

// Monitor watches NetworkManager's PropertiesChanged signals, keeps a cached
// Status in sync and fans events out to subscribers. Subscriber channels are
// buffered; a subscriber that stops draining loses events rather than
// stalling the pump.
type Monitor struct {
	nm      *NetworkManager
	signals chan *dbus.Signal
	stop    chan struct{}
	done    chan struct{}

	mu           sync.RWMutex
	status       Status
	deviceStates map[dbus.ObjectPath]DeviceState

	subMu       sync.RWMutex
	subscribers map[string]chan Event
}

// NewMonitor starts a monitor. It reads the initial status, registers the
// signal match and launches the pump. Call Stop when done.
func (nm *NetworkManager) NewMonitor(ctx context.Context) (*Monitor, error) {
	status, err := nm.Status(ctx)
	if err != nil {
		return nil, err
	}

	m := &Monitor{
		nm:           nm,
		signals:      make(chan *dbus.Signal, 64),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		status:       status,
		deviceStates: make(map[dbus.ObjectPath]DeviceState),
		subscribers:  make(map[string]chan Event),
	}

	err = nm.dbus.Subscribe(m.signals,
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchPathNamespace(nmPath),
	)
	if err != nil {
		return nil, err
	}

	go m.pump()
	return m, nil
}

// Status returns the cached snapshot.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// DeviceState returns the last state observed for the device at path. The
// second return is false until the device has emitted a state change since
// the monitor started.
func (m *Monitor) DeviceState(path dbus.ObjectPath) (DeviceState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.deviceStates[path]
	return state, ok
}

// Subscribe registers a named subscriber and returns its event channel. A
// second Subscribe with the same id replaces the first.
func (m *Monitor) Subscribe(id string) <-chan Event {
	ch := make(chan Event, 32)

	m.subMu.Lock()
	if old, ok := m.subscribers[id]; ok {
		close(old)
	}
	m.subscribers[id] = ch
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (m *Monitor) Unsubscribe(id string) {
	m.subMu.Lock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
	m.subMu.Unlock()
}

// Stop tears down the signal match and the pump. Subscriber channels are
// closed.
func (m *Monitor) Stop() {
	close(m.stop)
	<-m.done

	if err := m.nm.dbus.Unsubscribe(m.signals,
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchPathNamespace(nmPath),
	); err != nil {
		log.Debugf("monitor: remove match: %v", err)
	}

	m.subMu.Lock()
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	m.subMu.Unlock()
}

func (m *Monitor) pump() {
	defer close(m.done)

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case sig, ok := <-m.signals:
			if !ok {
				return
			}
			m.handleSignal(sig)
		case <-ticker.C:
			m.refresh()
		}
	}
}

// refresh re-reads the full status so the cache recovers from any signal the
// match missed.
func (m *Monitor) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), m.nm.dbus.Timeout())
	defer cancel()

	status, err := m.nm.Status(ctx)
	if err != nil {
		log.Debugf("monitor: status refresh: %v", err)
		return
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

func (m *Monitor) handleSignal(sig *dbus.Signal) {
	iface, changed, ok := decodePropertiesChanged(sig)
	if !ok {
		return
	}

	switch iface {
	case nmInterface:
		m.handleManagerChange(sig.Path, changed)
	case deviceInterface:
		m.handleDeviceChange(sig.Path, changed)
	case wirelessInterface:
		m.handleWirelessChange(sig.Path, changed)
	}
}

func (m *Monitor) handleManagerChange(path dbus.ObjectPath, changed map[string]dbus.Variant) {
	for key, value := range changed {
		switch key {
		case "State":
			state, err := dbusapi.VariantUint32(value)
			if err != nil {
				continue
			}
			m.mu.Lock()
			m.status.State = NmState(state)
			m.mu.Unlock()
			m.publish(Event{Kind: EventStateChanged, Path: path, Status: m.Status()})
		case "Connectivity":
			conn, err := dbusapi.VariantUint32(value)
			if err != nil {
				continue
			}
			m.mu.Lock()
			m.status.Connectivity = Connectivity(conn)
			m.mu.Unlock()
			m.publish(Event{Kind: EventConnectivityChanged, Path: path, Status: m.Status()})
		case "WirelessEnabled":
			enabled, err := dbusapi.VariantBool(value)
			if err != nil {
				continue
			}
			m.mu.Lock()
			m.status.WirelessEnabled = enabled
			m.mu.Unlock()
			m.publish(Event{Kind: EventWirelessEnabledChanged, Path: path, Status: m.Status()})
		case "NetworkingEnabled":
			enabled, err := dbusapi.VariantBool(value)
			if err != nil {
				continue
			}
			m.mu.Lock()
			m.status.NetworkingEnabled = enabled
			m.mu.Unlock()
			m.publish(Event{Kind: EventNetworkingEnabledChanged, Path: path, Status: m.Status()})
		case "ActiveConnections":
			m.publish(Event{Kind: EventActiveConnectionsChanged, Path: path, Status: m.Status()})
		}
	}
}

func (m *Monitor) handleDeviceChange(path dbus.ObjectPath, changed map[string]dbus.Variant) {
	value, ok := changed["State"]
	if !ok {
		return
	}
	state, err := dbusapi.VariantUint32(value)
	if err != nil {
		return
	}
	m.mu.Lock()
	m.deviceStates[path] = deviceStateFromNM(state)
	m.mu.Unlock()
	m.publish(Event{
		Kind:        EventDeviceStateChanged,
		Path:        path,
		Status:      m.Status(),
		DeviceState: deviceStateFromNM(state),
	})
}

func (m *Monitor) handleWirelessChange(path dbus.ObjectPath, changed map[string]dbus.Variant) {
	for key := range changed {
		switch key {
		case "AccessPoints", "ActiveAccessPoint", "LastScan":
			m.publish(Event{Kind: EventAccessPointsChanged, Path: path, Status: m.Status()})
			return
		}
	}
}

func (m *Monitor) publish(ev Event) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for id, ch := range m.subscribers {
		select {
		case ch <- ev:
		default:
			log.Warnf("monitor: subscriber %s is not draining, dropping %s event", id, ev.Kind)
		}
	}
}

// decodePropertiesChanged unpacks the (s, a{sv}, as) body of a
// PropertiesChanged signal. Signals from other members or with unexpected
// bodies are ignored.
func decodePropertiesChanged(sig *dbus.Signal) (string, map[string]dbus.Variant, bool) {
	if sig == nil || !strings.HasSuffix(sig.Name, ".PropertiesChanged") {
		return "", nil, false
	}
	if len(sig.Body) < 2 {
		return "", nil, false
	}
	iface, ok := sig.Body[0].(string)
	if !ok {
		return "", nil, false
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return "", nil, false
	}
	return iface, changed, true
}
