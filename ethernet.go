package networkmanager

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
)

// EthernetDevice is the wired view of a Device.
type EthernetDevice struct {
	device *Device
}

// Device returns the underlying device proxy.
func (e *EthernetDevice) Device() *Device {
	return e.device
}

// StaticConfig describes a static IPv4 configuration for a wired profile.
type StaticConfig struct {
	ID      string
	Address netip.Prefix
	Gateway netip.Addr
	DNS     []netip.Addr
}

// SetStaticAddress writes a wired profile with a static IPv4 address, binds it
// to this device, activates it and waits for activation. The profile gets a
// fresh UUID so repeated calls create distinct profiles.
func (e *EthernetDevice) SetStaticAddress(ctx context.Context, cfg StaticConfig) (*Connection, error) {
	settings, err := buildWiredStaticSettings(e.device.iface, cfg)
	if err != nil {
		return nil, err
	}

	var connPath, activePath dbus.ObjectPath
	err = e.device.nm.dbus.Call(ctx, nmPath, nmInterface+".AddAndActivateConnection",
		[]interface{}{&connPath, &activePath},
		map[string]map[string]interface{}(settings), e.device.path, dbus.ObjectPath("/"))
	if err != nil {
		return nil, err
	}

	conn, err := e.device.nm.newConnection(ctx, connPath)
	if err != nil {
		return nil, err
	}

	if _, err := conn.waitState(ctx, ConnectionStateActivated); err != nil {
		return conn, err
	}
	return conn, nil
}

// buildWiredStaticSettings assembles an 802-3-ethernet profile with a manual
// IPv4 method. NM wants the prefixed address as ["a.b.c.d/len"] in
// address-data plus a plain gateway string.
func buildWiredStaticSettings(iface string, cfg StaticConfig) (SettingsMap, error) {
	if !cfg.Address.IsValid() || !cfg.Address.Addr().Is4() {
		return nil, fmt.Errorf("static config needs a valid IPv4 prefix, got %q", cfg.Address)
	}

	id := cfg.ID
	if id == "" {
		id = iface + "-static"
	}

	ipv4 := map[string]interface{}{
		"method": "manual",
		"address-data": []map[string]interface{}{
			{
				"address": cfg.Address.Addr().String(),
				"prefix":  uint32(cfg.Address.Bits()),
			},
		},
	}
	if cfg.Gateway.IsValid() {
		if !cfg.Gateway.Is4() {
			return nil, fmt.Errorf("gateway must be IPv4, got %q", cfg.Gateway)
		}
		ipv4["gateway"] = cfg.Gateway.String()
	}
	if len(cfg.DNS) > 0 {
		dns := make([]uint32, 0, len(cfg.DNS))
		for _, addr := range cfg.DNS {
			if !addr.Is4() {
				return nil, fmt.Errorf("DNS server must be IPv4, got %q", addr)
			}
			dns = append(dns, ipv4ToNetworkOrder(addr))
		}
		ipv4["dns"] = dns
	}

	return SettingsMap{
		"connection": {
			"id":             id,
			"uuid":           uuid.NewString(),
			"type":           "802-3-ethernet",
			"interface-name": iface,
		},
		"802-3-ethernet": {},
		"ipv4":           ipv4,
		"ipv6":           {"method": "ignore"},
	}, nil
}

// ipv4ToNetworkOrder packs an IPv4 address into the little-endian uint32
// layout NM's legacy dns property expects.
func ipv4ToNetworkOrder(addr netip.Addr) uint32 {
	b := addr.As4()
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
