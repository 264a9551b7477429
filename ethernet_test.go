package networkmanager

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildWiredStaticSettings(t *testing.T) {
	cfg := StaticConfig{
		Address: netip.MustParsePrefix("192.168.1.50/24"),
		Gateway: netip.MustParseAddr("192.168.1.1"),
		DNS: []netip.Addr{
			netip.MustParseAddr("1.1.1.1"),
			netip.MustParseAddr("8.8.8.8"),
		},
	}

	settings, err := buildWiredStaticSettings("eth0", cfg)
	require.NoError(t, err)

	assert.Equal(t, "802-3-ethernet", settings["connection"]["type"])
	assert.Equal(t, "eth0", settings["connection"]["interface-name"])
	assert.Equal(t, "eth0-static", settings["connection"]["id"])
	assert.NotEmpty(t, settings["connection"]["uuid"])

	ipv4 := settings["ipv4"]
	assert.Equal(t, "manual", ipv4["method"])

	addrs := ipv4["address-data"].([]map[string]interface{})
	require.Len(t, addrs, 1)
	assert.Equal(t, "192.168.1.50", addrs[0]["address"])
	assert.Equal(t, uint32(24), addrs[0]["prefix"])

	assert.Equal(t, "192.168.1.1", ipv4["gateway"])
	assert.Equal(t, []uint32{0x01010101, 0x08080808}, ipv4["dns"])
}

func TestBuildWiredStaticSettingsDistinctUUIDs(t *testing.T) {
	cfg := StaticConfig{Address: netip.MustParsePrefix("10.0.0.2/8")}

	first, err := buildWiredStaticSettings("eth0", cfg)
	require.NoError(t, err)
	second, err := buildWiredStaticSettings("eth0", cfg)
	require.NoError(t, err)

	assert.NotEqual(t, first["connection"]["uuid"], second["connection"]["uuid"])
}

func TestBuildWiredStaticSettingsRejectsIPv6(t *testing.T) {
	_, err := buildWiredStaticSettings("eth0", StaticConfig{
		Address: netip.MustParsePrefix("fd00::2/64"),
	})
	assert.Error(t, err)

	_, err = buildWiredStaticSettings("eth0", StaticConfig{
		Address: netip.MustParsePrefix("10.0.0.2/8"),
		Gateway: netip.MustParseAddr("fd00::1"),
	})
	assert.Error(t, err)

	_, err = buildWiredStaticSettings("eth0", StaticConfig{})
	assert.Error(t, err)
}

func TestIPv4ToNetworkOrder(t *testing.T) {
	assert.Equal(t, uint32(0x04030201), ipv4ToNetworkOrder(netip.MustParseAddr("1.2.3.4")))
	assert.Equal(t, uint32(0x0100007f), ipv4ToNetworkOrder(netip.MustParseAddr("127.0.0.1")))
}
