package networkmanager

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbind/networkmanager/errdefs"
)

func TestNewSsid(t *testing.T) {
	ssid, err := NewSsid([]byte("home-network"))
	require.NoError(t, err)
	assert.Equal(t, "home-network", ssid.String())

	_, err = NewSsid(bytes.Repeat([]byte("a"), 33))
	assert.ErrorIs(t, err, errdefs.ErrSSIDTooLong)

	ssid, err = NewSsid(bytes.Repeat([]byte("a"), 32))
	require.NoError(t, err)
	assert.Len(t, ssid.Bytes(), 32)
}

func TestNewSsidCopiesInput(t *testing.T) {
	raw := []byte("mutable")
	ssid, err := NewSsid(raw)
	require.NoError(t, err)

	raw[0] = 'X'
	assert.Equal(t, "mutable", ssid.String())
}

func TestSsidStringNonUTF8(t *testing.T) {
	ssid, err := NewSsid([]byte{0xff, 0xfe, 0x01})
	require.NoError(t, err)
	assert.Equal(t, "0xfffe01", ssid.String())
}
