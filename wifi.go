package networkmanager

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/netbind/networkmanager/errdefs"
	"github.com/netbind/networkmanager/internal/dbusapi"
	"github.com/netbind/networkmanager/internal/log"
)

// ApFlags mirrors NM80211ApFlags.
type ApFlags uint32

const ApFlagsPrivacy ApFlags = 0x1

// ApSecurityFlags mirrors NM80211ApSecurityFlags.
type ApSecurityFlags uint32

const (
	ApSecPairWEP40    ApSecurityFlags = 0x1
	ApSecPairWEP104   ApSecurityFlags = 0x2
	ApSecPairTKIP     ApSecurityFlags = 0x4
	ApSecPairCCMP     ApSecurityFlags = 0x8
	ApSecGroupWEP40   ApSecurityFlags = 0x10
	ApSecGroupWEP104  ApSecurityFlags = 0x20
	ApSecGroupTKIP    ApSecurityFlags = 0x40
	ApSecGroupCCMP    ApSecurityFlags = 0x80
	ApSecKeyMgmtPSK   ApSecurityFlags = 0x100
	ApSecKeyMgmt8021X ApSecurityFlags = 0x200
	ApSecKeyMgmtSAE   ApSecurityFlags = 0x400
)

// Security is the summarized security capability set of an access point,
// derived from the raw Flags/WpaFlags/RsnFlags triple.
type Security uint32

const (
	SecurityNone       Security = 0
	SecurityWEP        Security = 1 << 0
	SecurityWPA        Security = 1 << 1
	SecurityWPA2       Security = 1 << 2
	SecurityWPA3       Security = 1 << 3
	SecurityEnterprise Security = 1 << 4
)

func (s Security) String() string {
	if s == SecurityNone {
		return "open"
	}

	var parts []string
	if s&SecurityWEP != 0 {
		parts = append(parts, "wep")
	}
	if s&SecurityWPA != 0 {
		parts = append(parts, "wpa")
	}
	if s&SecurityWPA2 != 0 {
		parts = append(parts, "wpa2")
	}
	if s&SecurityWPA3 != 0 {
		parts = append(parts, "wpa3")
	}
	if s&SecurityEnterprise != 0 {
		parts = append(parts, "enterprise")
	}
	return strings.Join(parts, "+")
}

// classifySecurity folds the three AP flag words into a Security set.
func classifySecurity(flags ApFlags, wpaFlags, rsnFlags ApSecurityFlags) Security {
	security := SecurityNone

	if flags&ApFlagsPrivacy != 0 && wpaFlags == 0 && rsnFlags == 0 {
		security |= SecurityWEP
	}
	if wpaFlags != 0 {
		security |= SecurityWPA
	}
	if rsnFlags != 0 {
		security |= SecurityWPA2
	}
	if rsnFlags&ApSecKeyMgmtSAE != 0 {
		security |= SecurityWPA3
	}
	if wpaFlags&ApSecKeyMgmt8021X != 0 || rsnFlags&ApSecKeyMgmt8021X != 0 {
		security |= SecurityEnterprise
	}

	return security
}

// AccessPoint is a snapshot of one visible access point. Snapshots go stale
// as soon as NetworkManager rescans; Connect tolerates that by falling back
// to SSID-based association.
type AccessPoint struct {
	Path      dbus.ObjectPath
	Ssid      Ssid
	Strength  uint8
	Frequency uint32
	HwAddress string
	Security  Security
}

// WiFiDevice is the wireless view of a Device.
type WiFiDevice struct {
	device *Device
}

// Device returns the underlying device proxy.
func (w *WiFiDevice) Device() *Device {
	return w.device
}

// RequestScan asks the supplicant for a fresh scan. Results arrive
// asynchronously; watch the AccessPoints property through a Monitor or poll
// AccessPoints.
func (w *WiFiDevice) RequestScan(ctx context.Context) error {
	err := w.device.nm.dbus.Call(ctx, w.device.path, wirelessInterface+".RequestScan", nil,
		map[string]dbus.Variant{})
	if err != nil {
		return fmt.Errorf("scan request failed: %w", err)
	}
	return nil
}

// AccessPoints lists the currently visible access points, strongest first.
// Access points that disappear while being read are skipped.
func (w *WiFiDevice) AccessPoints(ctx context.Context) ([]*AccessPoint, error) {
	paths, err := w.device.nm.pathListProperty(ctx, w.device.path, wirelessInterface, "AccessPoints")
	if err != nil {
		return nil, err
	}

	accessPoints := make([]*AccessPoint, 0, len(paths))
	for _, path := range paths {
		ap, err := w.device.nm.newAccessPoint(ctx, path)
		if err != nil {
			log.Debugf("skipping access point %s: %v", path, err)
			continue
		}
		accessPoints = append(accessPoints, ap)
	}

	sort.Slice(accessPoints, func(i, j int) bool {
		return accessPoints[i].Strength > accessPoints[j].Strength
	})

	return accessPoints, nil
}

func (nm *NetworkManager) newAccessPoint(ctx context.Context, path dbus.ObjectPath) (*AccessPoint, error) {
	v, err := nm.dbus.Property(ctx, path, accessPointInterface, "Ssid")
	if err != nil {
		return nil, err
	}
	ssidBytes, err := dbusapi.VariantBytes(v)
	if err != nil {
		return nil, fmt.Errorf("access point %s: %w", path, err)
	}
	ssid, err := NewSsid(ssidBytes)
	if err != nil {
		return nil, fmt.Errorf("access point %s: %w", path, err)
	}

	ap := &AccessPoint{Path: path, Ssid: ssid}

	if v, err = nm.dbus.Property(ctx, path, accessPointInterface, "Strength"); err != nil {
		return nil, err
	}
	strength, err := dbusapi.VariantUint32(v)
	if err != nil {
		return nil, fmt.Errorf("access point %s: %w", path, err)
	}
	ap.Strength = uint8(strength)

	if v, err = nm.dbus.Property(ctx, path, accessPointInterface, "Frequency"); err == nil {
		ap.Frequency, _ = dbusapi.VariantUint32(v)
	}
	if v, err = nm.dbus.Property(ctx, path, accessPointInterface, "HwAddress"); err == nil {
		ap.HwAddress, _ = dbusapi.VariantString(v)
	}

	var flags, wpaFlags, rsnFlags uint32
	if v, err = nm.dbus.Property(ctx, path, accessPointInterface, "Flags"); err != nil {
		return nil, err
	}
	flags, _ = dbusapi.VariantUint32(v)
	if v, err = nm.dbus.Property(ctx, path, accessPointInterface, "WpaFlags"); err != nil {
		return nil, err
	}
	wpaFlags, _ = dbusapi.VariantUint32(v)
	if v, err = nm.dbus.Property(ctx, path, accessPointInterface, "RsnFlags"); err != nil {
		return nil, err
	}
	rsnFlags, _ = dbusapi.VariantUint32(v)

	ap.Security = classifySecurity(ApFlags(flags), ApSecurityFlags(wpaFlags), ApSecurityFlags(rsnFlags))

	return ap, nil
}

// Connect creates a profile for the access point with the given credentials,
// activates it on this device and waits for activation.
func (w *WiFiDevice) Connect(ctx context.Context, ap *AccessPoint, creds Credentials) (*Connection, error) {
	settings, err := buildWirelessSettings(ap.Ssid, creds)
	if err != nil {
		return nil, err
	}

	return w.addAndActivate(ctx, settings, ap.Path)
}

// CreateHotspot brings up an AP-mode network with IPv4 sharing. An empty
// password creates an open hotspot.
func (w *WiFiDevice) CreateHotspot(ctx context.Context, ssid Ssid, password string) (*Connection, error) {
	settings, err := buildHotspotSettings(ssid, w.device.iface, password)
	if err != nil {
		return nil, err
	}

	return w.addAndActivate(ctx, settings, dbus.ObjectPath("/"))
}

func (w *WiFiDevice) addAndActivate(ctx context.Context, settings SettingsMap, specificObject dbus.ObjectPath) (*Connection, error) {
	var connPath, activePath dbus.ObjectPath
	err := w.device.nm.dbus.Call(ctx, nmPath, nmInterface+".AddAndActivateConnection",
		[]interface{}{&connPath, &activePath},
		map[string]map[string]interface{}(settings), w.device.path, specificObject)
	if err != nil {
		return nil, err
	}

	conn, err := w.device.nm.newConnection(ctx, connPath)
	if err != nil {
		return nil, err
	}

	if _, err := conn.waitState(ctx, ConnectionStateActivated); err != nil {
		return conn, err
	}
	return conn, nil
}

// Credentials selects and parameterizes the security settings written into a
// new wireless profile.
type Credentials interface {
	securitySettings() (map[string]map[string]interface{}, error)
}

// NoCredentials connects to an open network.
type NoCredentials struct{}

func (NoCredentials) securitySettings() (map[string]map[string]interface{}, error) {
	return nil, nil
}

// WEPCredentials carries a WEP passphrase (wep-key-type passphrase).
type WEPCredentials struct {
	Passphrase string
}

// nmWEPKeyTypePassphrase is NM_WEP_KEY_TYPE_PASSPHRASE.
const nmWEPKeyTypePassphrase = uint32(2)

func (c WEPCredentials) securitySettings() (map[string]map[string]interface{}, error) {
	return map[string]map[string]interface{}{
		"802-11-wireless-security": {
			"wep-key-type": nmWEPKeyTypePassphrase,
			"wep-key0":     c.Passphrase,
		},
	}, nil
}

// WPACredentials carries a WPA/WPA2/WPA3-personal pre-shared key.
type WPACredentials struct {
	Passphrase string
}

func (c WPACredentials) securitySettings() (map[string]map[string]interface{}, error) {
	if err := validatePSK(c.Passphrase); err != nil {
		return nil, err
	}
	return map[string]map[string]interface{}{
		"802-11-wireless-security": {
			"key-mgmt": "wpa-psk",
			"psk":      c.Passphrase,
		},
	}, nil
}

// EnterpriseCredentials carries WPA-EAP (802.1x) credentials. The profile is
// built for PEAP with MSCHAPv2 inner auth, the common corporate setup.
type EnterpriseCredentials struct {
	Identity   string
	Passphrase string
}

func (c EnterpriseCredentials) securitySettings() (map[string]map[string]interface{}, error) {
	if c.Identity == "" {
		return nil, fmt.Errorf("enterprise network requires an identity")
	}
	return map[string]map[string]interface{}{
		"802-11-wireless-security": {
			"key-mgmt": "wpa-eap",
		},
		"802-1x": {
			"eap":             []string{"peap"},
			"phase2-auth":     "mschapv2",
			"identity":        c.Identity,
			"password":        c.Passphrase,
			"system-ca-certs": true,
		},
	}, nil
}

// validatePSK enforces the 802.11 passphrase rules: 8 to 63 printable ASCII
// characters, or exactly 64 hex digits.
func validatePSK(psk string) error {
	switch {
	case len(psk) == 64:
		for _, c := range psk {
			if !isHexDigit(c) {
				return fmt.Errorf("%w: 64-character key must be hex", errdefs.ErrInvalidPassphrase)
			}
		}
		return nil
	case len(psk) < 8 || len(psk) > 63:
		return fmt.Errorf("%w: length %d outside 8..63", errdefs.ErrInvalidPassphrase, len(psk))
	default:
		for _, c := range psk {
			if c < 0x20 || c > 0x7e {
				return fmt.Errorf("%w: non-printable character", errdefs.ErrInvalidPassphrase)
			}
		}
		return nil
	}
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// buildWirelessSettings assembles the profile map for an infrastructure
// connection to ssid with the given credentials.
func buildWirelessSettings(ssid Ssid, creds Credentials) (SettingsMap, error) {
	if creds == nil {
		creds = NoCredentials{}
	}

	settings := SettingsMap{
		"802-11-wireless": {
			"ssid": ssid.Bytes(),
			"mode": "infrastructure",
		},
		"ipv4": {"method": "auto"},
		"ipv6": {"method": "auto"},
	}

	security, err := creds.securitySettings()
	if err != nil {
		return nil, err
	}
	for section, values := range security {
		settings[section] = values
	}
	if len(security) > 0 {
		settings["802-11-wireless"]["security"] = "802-11-wireless-security"
	}

	return settings, nil
}

// buildHotspotSettings assembles an AP-mode profile with shared IPv4.
func buildHotspotSettings(ssid Ssid, iface, password string) (SettingsMap, error) {
	settings := SettingsMap{
		"connection": {
			"id":             ssid.String(),
			"interface-name": iface,
			"type":           "802-11-wireless",
			"autoconnect":    false,
		},
		"802-11-wireless": {
			"ssid":   ssid.Bytes(),
			"band":   "bg",
			"hidden": false,
			"mode":   "ap",
		},
		"ipv4": {"method": "shared"},
	}

	if password != "" {
		if err := validatePSK(password); err != nil {
			return nil, err
		}
		settings["802-11-wireless"]["security"] = "802-11-wireless-security"
		settings["802-11-wireless-security"] = map[string]interface{}{
			"key-mgmt": "wpa-psk",
			"psk":      password,
		}
	}

	return settings, nil
}
