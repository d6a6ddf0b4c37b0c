package core

import "github.com/dkeye/Relay/internal/domain"

// Codec turns envelopes into wire bytes and back. One codec is chosen per
// server and never changes while it runs.
type Codec interface {
	Name() string
	// Binary reports whether frames must be sent as binary messages.
	Binary() bool
	Encode(domain.Envelope) (Frame, error)
	Decode([]byte) (domain.Envelope, error)
}

// Peer is the connection a message arrived on. Replies go back through it.
type Peer interface {
	UID() domain.UID
	// Handle is the connection to retain for unsolicited sends, nil when
	// the transport has none.
	Handle() SignalConnection
	Reply(domain.Envelope) error
}

// PublishResult reports delivery stats of a fan-out.
type PublishResult struct {
	SendTo  int
	Dropped []domain.UID
}

// Transport is what the dispatcher relays through. Adapters never look at
// rooms themselves.
type Transport interface {
	Kind() domain.TransportKind
	SendTo(uid domain.UID, env domain.Envelope) error
	BroadcastToRoom(members []domain.UID, env domain.Envelope, from domain.UID) PublishResult
}

// Handler receives decoded traffic from an adapter. Calls for one peer
// arrive in the order the peer sent them.
type Handler interface {
	OnMessage(peer Peer, msg domain.Envelope)
	// OnMalformed is called when a payload could not be decoded.
	OnMalformed(peer Peer, err error)
}
