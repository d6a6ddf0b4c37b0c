package codec

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

// Field numbers of
//
//	message Message {
//	  int32  type    = 1;
//	  string content = 2;
//	  string uid     = 3;
//	  string roomId  = 4;
//	}
const (
	fieldType    protowire.Number = 1
	fieldContent protowire.Number = 2
	fieldUID     protowire.Number = 3
	fieldRoomID  protowire.Number = 4
)

// Protobuf is the binary codec, proto3 wire format of Message.
type Protobuf struct{}

func (Protobuf) Name() string { return FormatProtobuf }
func (Protobuf) Binary() bool { return true }

func (Protobuf) Encode(env domain.Envelope) (core.Frame, error) {
	var b []byte
	if env.Type != 0 {
		b = protowire.AppendTag(b, fieldType, protowire.VarintType)
		// int32 is sign-extended to 64 bits on the wire.
		b = protowire.AppendVarint(b, uint64(int64(env.Type)))
	}
	b = appendString(b, fieldContent, env.Content)
	b = appendString(b, fieldUID, string(env.UID))
	b = appendString(b, fieldRoomID, string(env.RoomID))
	return b, nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func (Protobuf) Decode(b []byte) (domain.Envelope, error) {
	var env domain.Envelope
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return domain.Envelope{}, malformed(protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return domain.Envelope{}, malformed(protowire.ParseError(n))
			}
			t := int64(v)
			if t < math.MinInt32 || t > math.MaxInt32 {
				return domain.Envelope{}, fmt.Errorf("%w: type out of range", ErrMalformed)
			}
			env.Type = domain.MessageType(t)
			b = b[n:]
		case (num == fieldContent || num == fieldUID || num == fieldRoomID) && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return domain.Envelope{}, malformed(protowire.ParseError(n))
			}
			switch num {
			case fieldContent:
				env.Content = v
			case fieldUID:
				env.UID = domain.UID(v)
			case fieldRoomID:
				env.RoomID = domain.RoomName(v)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return domain.Envelope{}, malformed(protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return env, nil
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}
