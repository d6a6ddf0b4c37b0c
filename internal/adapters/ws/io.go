package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/core"
)

const writeWait = 5 * time.Second

func (s *Server) writePump(ctx context.Context, c *Conn) {
	defer c.Close()

	var ping <-chan time.Time
	if s.opts.PingPeriod > 0 {
		t := time.NewTicker(s.opts.PingPeriod)
		defer t.Stop()
		ping = t.C
	}
	msgType := websocket.TextMessage
	if s.codec.Binary() {
		msgType = websocket.BinaryMessage
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "adapters.ws").Str("uid", string(c.uid)).Msg("ping failed")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Str("uid", string(c.uid)).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(msgType, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Str("uid", string(c.uid)).Msg("writePump write error")
				return
			}
		}
	}
}

// readPump hands frames to h in arrival order. Membership is left alone
// when the socket goes away; idle eviction reclaims it.
func (s *Server) readPump(ctx context.Context, cancel context.CancelFunc, c *Conn, h core.Handler) {
	defer func() {
		log.Info().Str("module", "adapters.ws").Str("uid", string(c.uid)).Msg("readPump closing")
		cancel()
		c.Close()
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "adapters.ws").Str("uid", string(c.uid)).Msg("readPump read error")
			}
			return
		}
		env, err := s.codec.Decode(data)
		if err != nil {
			h.OnMalformed(c, err)
			continue
		}
		h.OnMessage(c, env)
	}
}
