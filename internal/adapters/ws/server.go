// Package ws is the socket transport: WebSockets accepted on the HTTP
// listener, one long-lived connection per peer.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

const sendBuffer = 64

// HandleLookup finds the connection retained for a uid at join time.
type HandleLookup interface {
	Handle(uid domain.UID) (core.SignalConnection, bool)
}

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
}

type Server struct {
	kind    domain.TransportKind
	codec   core.Codec
	handles HandleLookup
	opts    Options
	upgrade websocket.Upgrader
}

func NewServer(kind domain.TransportKind, codec core.Codec, handles HandleLookup, opts Options) *Server {
	return &Server{
		kind:    kind,
		codec:   codec,
		handles: handles,
		opts:    opts,
		upgrade: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Kind() domain.TransportKind { return s.kind }

// Handler upgrades the request and runs the connection pumps until the
// peer goes away or ctx is done.
func (s *Server) Handler(ctx context.Context, h core.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := domain.UIDFromRemoteAddr(c.Request.RemoteAddr)
		if uid == "" {
			log.Warn().Str("module", "adapters.ws").Str("remote", c.Request.RemoteAddr).Msg("refusing peer without address")
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		wsConn, err := s.upgrade.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.ws").Msg("ws upgrade")
			return
		}
		if s.opts.ReadLimit > 0 {
			wsConn.SetReadLimit(s.opts.ReadLimit)
		}
		conn := newConn(uid, wsConn, s.codec, sendBuffer)
		log.Info().Str("module", "adapters.ws").Str("uid", string(uid)).Msg("new WS connection")

		connCtx, cancel := context.WithCancel(ctx)
		go s.writePump(connCtx, conn)
		go s.readPump(connCtx, cancel, conn, h)
	}
}

func (s *Server) SendTo(uid domain.UID, env domain.Envelope) error {
	frame, err := s.codec.Encode(env)
	if err != nil {
		return err
	}
	return s.send(uid, frame)
}

func (s *Server) send(uid domain.UID, frame core.Frame) error {
	h, ok := s.handles.Handle(uid)
	if !ok {
		return ErrClosed
	}
	return h.TrySend(frame)
}

// BroadcastToRoom encodes env once and queues it on every member's
// connection except from's. Each queue is independent, so one slow peer
// only drops its own frames.
func (s *Server) BroadcastToRoom(members []domain.UID, env domain.Envelope, from domain.UID) core.PublishResult {
	res := core.PublishResult{}
	frame, err := s.codec.Encode(env)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("encode broadcast")
		return res
	}
	for _, uid := range members {
		if uid == from {
			continue
		}
		if err := s.send(uid, frame); err != nil {
			log.Warn().Err(err).Str("module", "adapters.ws").Str("uid", string(uid)).Msg("send failed")
			res.Dropped = append(res.Dropped, uid)
			continue
		}
		res.SendTo++
	}
	return res
}
