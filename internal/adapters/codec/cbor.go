package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

// CBOR is a binary codec using Core Deterministic Encoding, keyed the same
// way as the JSON codec.
type CBOR struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func NewCBOR() (*CBOR, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	dec, err := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		MaxMapPairs: 16,
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor decoder: %w", err)
	}
	return &CBOR{enc: enc, dec: dec}, nil
}

func (c *CBOR) Name() string { return FormatCBOR }
func (c *CBOR) Binary() bool { return true }

func (c *CBOR) Encode(env domain.Envelope) (core.Frame, error) {
	return c.enc.Marshal(env)
}

func (c *CBOR) Decode(b []byte) (domain.Envelope, error) {
	var env domain.Envelope
	if err := c.dec.Unmarshal(b, &env); err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return env, nil
}
