// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"net/netip"
)

var ErrMalformedUID = errors.New("malformed uid")

// UID identifies a peer by its network address, "ip:port".
type UID string

// UIDFromAddrPort returns "" when either the address or the port is missing.
func UIDFromAddrPort(ap netip.AddrPort) UID {
	addr := ap.Addr().Unmap()
	if !addr.IsValid() || ap.Port() == 0 {
		return ""
	}
	return UID(netip.AddrPortFrom(addr, ap.Port()).String())
}

// UIDFromRemoteAddr derives a UID from a net/http style RemoteAddr.
func UIDFromRemoteAddr(remote string) UID {
	ap, err := netip.ParseAddrPort(remote)
	if err != nil {
		return ""
	}
	return UIDFromAddrPort(ap)
}

// AddrPort parses the UID back into the address it was derived from.
func (u UID) AddrPort() (netip.AddrPort, error) {
	ap, err := netip.ParseAddrPort(string(u))
	if err != nil || !ap.Addr().IsValid() || ap.Port() == 0 {
		return netip.AddrPort{}, ErrMalformedUID
	}
	return ap, nil
}

func (u UID) Valid() bool {
	_, err := u.AddrPort()
	return err == nil
}
