// Package codec holds the interchangeable wire encodings of an envelope.
package codec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

var ErrMalformed = errors.New("malformed payload")

const (
	FormatProtobuf = "protobuf"
	FormatCBOR     = "cbor"
)

// ForTransport returns the ready-to-use codec for a transport kind.
// binaryFormat only matters for binary transports.
func ForTransport(kind domain.TransportKind, binaryFormat string) (core.Codec, error) {
	switch kind {
	case domain.TransportUDP, domain.TransportWS:
		return JSON{}, nil
	case domain.TransportWSBinary:
		switch strings.ToLower(binaryFormat) {
		case "", FormatProtobuf:
			return Protobuf{}, nil
		case FormatCBOR:
			return NewCBOR()
		default:
			return nil, fmt.Errorf("unknown binary format %q", binaryFormat)
		}
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedTransport, kind)
	}
}
