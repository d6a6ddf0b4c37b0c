package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// Conn is one accepted WebSocket. Its uid is fixed at accept time from
// the peer address and used for every frame it carries.
type Conn struct {
	uid   domain.UID
	conn  *websocket.Conn
	codec core.Codec
	send  chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newConn(uid domain.UID, ws *websocket.Conn, codec core.Codec, buffer int) *Conn {
	return &Conn{
		uid:   uid,
		conn:  ws,
		codec: codec,
		send:  make(chan core.Frame, buffer),
	}
}

func (c *Conn) UID() domain.UID { return c.uid }

func (c *Conn) Handle() core.SignalConnection { return c }

func (c *Conn) Reply(env domain.Envelope) error {
	frame, err := c.codec.Encode(env)
	if err != nil {
		return err
	}
	return c.TrySend(frame)
}

// TrySend queues f for the write pump without blocking; a full queue is
// reported as ErrBackpressure.
func (c *Conn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}
