package networkmanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests talk to the real NetworkManager on the system bus and skip
// everywhere else (CI, containers, machines without NM).

func newTestClient(t *testing.T) *NetworkManager {
	t.Helper()

	nm, err := New()
	if err != nil {
		t.Skipf("system bus not available: %v", err)
	}
	t.Cleanup(func() { _ = nm.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := nm.State(ctx); err != nil {
		t.Skipf("NetworkManager not available: %v", err)
	}

	return nm
}

func TestSystemStatus(t *testing.T) {
	nm := newTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status, err := nm.Status(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, "unknown", status.State.String())
}

func TestSystemDevices(t *testing.T) {
	nm := newTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	devices, err := nm.Devices(ctx)
	require.NoError(t, err)

	for _, device := range devices {
		assert.NotEmpty(t, device.Interface())
		assert.NotEmpty(t, device.Path())

		state, err := device.State(ctx)
		require.NoError(t, err)
		t.Logf("%s (%s): %s", device.Interface(), device.Type(), state)
	}
}

func TestSystemConnections(t *testing.T) {
	nm := newTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	connections, err := nm.Connections(ctx)
	require.NoError(t, err)

	for _, conn := range connections {
		s := conn.Settings()
		assert.NotEmpty(t, s.UUID)

		byUUID, err := nm.ConnectionByUUID(ctx, s.UUID)
		require.NoError(t, err)
		assert.Equal(t, conn.Path(), byUUID.Path())
	}
}

func TestSystemMonitor(t *testing.T) {
	nm := newTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	monitor, err := nm.NewMonitor(ctx)
	require.NoError(t, err)
	defer monitor.Stop()

	status := monitor.Status()
	assert.NotEqual(t, NmStateUnknown, status.State)
}
