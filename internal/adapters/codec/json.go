package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

// JSON is the text codec. Inbound payloads may be a JSON envelope or any
// other text; anything that is not exactly an envelope is relayed as the
// content of a room message, byte for byte.
type JSON struct{}

func (JSON) Name() string { return "json" }
func (JSON) Binary() bool { return false }

func (JSON) Encode(env domain.Envelope) (core.Frame, error) {
	return json.Marshal(env)
}

// Decode only fails on invalid UTF-8.
func (JSON) Decode(b []byte) (domain.Envelope, error) {
	if !utf8.Valid(b) {
		return domain.Envelope{}, fmt.Errorf("%w: invalid utf-8", ErrMalformed)
	}
	if env, ok := decodeEnvelope(b); ok {
		return env, nil
	}
	return domain.Envelope{Type: domain.MessageRoom, Content: string(b)}, nil
}

// decodeEnvelope accepts a single JSON object with a string content and
// no keys beyond the envelope's own.
func decodeEnvelope(b []byte) (domain.Envelope, bool) {
	if len(b) == 0 || b[0] != '{' {
		return domain.Envelope{}, false
	}
	var wire struct {
		Type    domain.MessageType `json:"type"`
		Content *string            `json:"content"`
		UID     domain.UID         `json:"uid"`
		RoomID  domain.RoomName    `json:"roomId"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wire); err != nil || wire.Content == nil {
		return domain.Envelope{}, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return domain.Envelope{}, false
	}
	return domain.Envelope{
		Type:    wire.Type,
		Content: *wire.Content,
		UID:     wire.UID,
		RoomID:  wire.RoomID,
	}, true
}
