package core

// Frame is an encoded envelope as it goes on the wire.
type Frame []byte

// SignalConnection abstracts a live connection the server can push to.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
