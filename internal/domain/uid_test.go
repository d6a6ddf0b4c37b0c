package domain

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestUIDFromAddrPort(t *testing.T) {
	cases := []struct {
		name string
		in   netip.AddrPort
		want UID
	}{
		{"ipv4", netip.MustParseAddrPort("127.0.0.1:5000"), "127.0.0.1:5000"},
		{"ipv6 bracketed", netip.MustParseAddrPort("[::1]:5000"), "[::1]:5000"},
		{"v4-mapped unmapped", netip.MustParseAddrPort("[::ffff:10.0.0.1]:7"), "10.0.0.1:7"},
		{"zero port", netip.MustParseAddrPort("127.0.0.1:0"), ""},
		{"invalid", netip.AddrPort{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, UIDFromAddrPort(tc.in))
		})
	}
}

func TestUIDFromRemoteAddr(t *testing.T) {
	assert.Equal(t, UID("192.168.1.2:443"), UIDFromRemoteAddr("192.168.1.2:443"))
	assert.Equal(t, UID(""), UIDFromRemoteAddr("pipe"))
	assert.Equal(t, UID(""), UIDFromRemoteAddr(""))
}

func TestUIDValid(t *testing.T) {
	assert.True(t, UID("10.0.0.1:1").Valid())
	assert.True(t, UID("[fe80::1]:9").Valid())
	assert.False(t, UID("10.0.0.1").Valid())
	assert.False(t, UID("10.0.0.1:0").Valid())
	assert.False(t, UID("bogus").Valid())

	_, err := UID("x:y").AddrPort()
	assert.ErrorIs(t, err, ErrMalformedUID)
}

func TestUIDAddrPortRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var addr netip.Addr
		if rapid.Bool().Draw(t, "v6") {
			addr = netip.AddrFrom16([16]byte(rapid.SliceOfN(rapid.Byte(), 16, 16).Draw(t, "a16")))
		} else {
			addr = netip.AddrFrom4([4]byte(rapid.SliceOfN(rapid.Byte(), 4, 4).Draw(t, "a4")))
		}
		port := rapid.Uint16Range(1, 65535).Draw(t, "port")

		uid := UIDFromAddrPort(netip.AddrPortFrom(addr, port))
		require.NotEmpty(t, uid)
		ap, err := uid.AddrPort()
		require.NoError(t, err)
		assert.Equal(t, addr.Unmap(), ap.Addr())
		assert.Equal(t, port, ap.Port())
	})
}
