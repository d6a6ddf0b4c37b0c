package domain

import (
	"errors"
	"strings"
)

var ErrUnsupportedTransport = errors.New("unsupported transport")

// TransportKind is fixed at construction and decides codec and delivery
// capabilities of a server.
type TransportKind string

const (
	TransportUDP      TransportKind = "udp"
	TransportWS       TransportKind = "ws"
	TransportWSBinary TransportKind = "ws-binary"
)

func ParseTransportKind(s string) (TransportKind, error) {
	switch k := TransportKind(strings.ToLower(strings.TrimSpace(s))); k {
	case TransportUDP, TransportWS, TransportWSBinary:
		return k, nil
	default:
		return "", ErrUnsupportedTransport
	}
}

// Unsolicited reports whether the server can push to a peer that did
// not just send something, i.e. whether a live handle is kept per uid.
func (k TransportKind) Unsolicited() bool {
	return k == TransportWS || k == TransportWSBinary
}

func (k TransportKind) BinaryCodec() bool {
	return k == TransportWSBinary
}
