package networkmanager

import (
	"fmt"
	"unicode/utf8"

	"github.com/netbind/networkmanager/errdefs"
)

// ssidMaxLen is the 802.11 limit on SSID length in bytes.
const ssidMaxLen = 32

// Ssid is a raw 802.11 SSID. SSIDs are byte strings on the wire and are not
// required to be valid UTF-8, which is why access points do not expose them
// as plain Go strings.
type Ssid []byte

// NewSsid validates bytes as an SSID.
func NewSsid(bytes []byte) (Ssid, error) {
	if len(bytes) > ssidMaxLen {
		return nil, fmt.Errorf("%w: got %d", errdefs.ErrSSIDTooLong, len(bytes))
	}
	ssid := make(Ssid, len(bytes))
	copy(ssid, bytes)
	return ssid, nil
}

// SsidFromString validates s as an SSID.
func SsidFromString(s string) (Ssid, error) {
	return NewSsid([]byte(s))
}

// Bytes returns the raw SSID bytes.
func (s Ssid) Bytes() []byte {
	return []byte(s)
}

// String renders the SSID for display. Non-UTF-8 SSIDs are shown as hex so
// they stay printable.
func (s Ssid) String() string {
	if utf8.Valid(s) {
		return string(s)
	}
	return fmt.Sprintf("0x%x", []byte(s))
}
