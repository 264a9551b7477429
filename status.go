package networkmanager

import "context"

// NmState mirrors the NMState enumeration.
type NmState uint32

const (
	NmStateUnknown         NmState = 0
	NmStateAsleep          NmState = 10
	NmStateDisconnected    NmState = 20
	NmStateDisconnecting   NmState = 30
	NmStateConnecting      NmState = 40
	NmStateConnectedLocal  NmState = 50
	NmStateConnectedSite   NmState = 60
	NmStateConnectedGlobal NmState = 70
)

func (s NmState) String() string {
	switch s {
	case NmStateAsleep:
		return "asleep"
	case NmStateDisconnected:
		return "disconnected"
	case NmStateDisconnecting:
		return "disconnecting"
	case NmStateConnecting:
		return "connecting"
	case NmStateConnectedLocal:
		return "connected (local)"
	case NmStateConnectedSite:
		return "connected (site)"
	case NmStateConnectedGlobal:
		return "connected"
	default:
		return "unknown"
	}
}

// Connectivity mirrors the NMConnectivityState enumeration.
type Connectivity uint32

const (
	ConnectivityUnknown Connectivity = iota
	ConnectivityNone
	ConnectivityPortal
	ConnectivityLimited
	ConnectivityFull
)

func (c Connectivity) String() string {
	switch c {
	case ConnectivityNone:
		return "none"
	case ConnectivityPortal:
		return "portal"
	case ConnectivityLimited:
		return "limited"
	case ConnectivityFull:
		return "full"
	default:
		return "unknown"
	}
}

// Status is an aggregate snapshot of the manager-level switches and state.
type Status struct {
	State             NmState
	Connectivity      Connectivity
	WirelessEnabled   bool
	NetworkingEnabled bool
}

// Status gathers the manager state, connectivity and radio switches in one
// round of calls.
func (nm *NetworkManager) Status(ctx context.Context) (Status, error) {
	var status Status
	var err error

	if status.State, err = nm.State(ctx); err != nil {
		return status, err
	}
	if status.Connectivity, err = nm.CheckConnectivity(ctx); err != nil {
		return status, err
	}
	if status.WirelessEnabled, err = nm.WirelessEnabled(ctx); err != nil {
		return status, err
	}
	if status.NetworkingEnabled, err = nm.NetworkingEnabled(ctx); err != nil {
		return status, err
	}

	return status, nil
}
