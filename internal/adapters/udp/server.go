// Package udp is the datagram transport: one socket, peers identified by
// their source address.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

const maxDatagram = 64 * 1024

type Server struct {
	conn  *net.UDPConn
	codec core.Codec
}

// Listen binds addr right away so the port is known before Serve runs.
func Listen(addr string, codec core.Codec) (*Server, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}
	return &Server{conn: conn, codec: codec}, nil
}

func (s *Server) Kind() domain.TransportKind { return domain.TransportUDP }

func (s *Server) Addr() net.Addr { return s.conn.LocalAddr() }

// Serve reads datagrams and hands them to h one at a time until ctx is
// done. The socket is closed on return.
func (s *Server) Serve(ctx context.Context, h core.Handler) error {
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()
	defer s.conn.Close()

	log.Info().Str("module", "adapters.udp").Str("addr", s.Addr().String()).Msg("datagram server started")
	buf := make([]byte, maxDatagram)
	for {
		n, src, err := s.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Info().Str("module", "adapters.udp").Msg("datagram server stopped")
				return nil
			}
			log.Error().Err(err).Str("module", "adapters.udp").Msg("read error")
			continue
		}
		uid := domain.UIDFromAddrPort(src)
		if uid == "" {
			log.Debug().Str("module", "adapters.udp").Str("src", src.String()).Msg("dropping packet without source")
			continue
		}
		p := &peer{server: s, uid: uid}
		env, err := s.codec.Decode(buf[:n])
		if err != nil {
			h.OnMalformed(p, err)
			continue
		}
		h.OnMessage(p, env)
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
	dst, err := uid.AddrPort()
	if err != nil {
		return err
	}
	if _, err := s.conn.WriteToUDPAddrPort(frame, dst); err != nil {
		return fmt.Errorf("send to %s: %w", uid, err)
	}
	return nil
}

// BroadcastToRoom encodes env once and sends one datagram per member
// other than from. A failed send is logged and skipped.
func (s *Server) BroadcastToRoom(members []domain.UID, env domain.Envelope, from domain.UID) core.PublishResult {
	res := core.PublishResult{}
	frame, err := s.codec.Encode(env)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.udp").Msg("encode broadcast")
		return res
	}
	for _, uid := range members {
		if uid == from {
			continue
		}
		if err := s.send(uid, frame); err != nil {
			log.Warn().Err(err).Str("module", "adapters.udp").Str("uid", string(uid)).Msg("send failed")
			res.Dropped = append(res.Dropped, uid)
			continue
		}
		res.SendTo++
	}
	return res
}

// peer is the sender of one datagram.
type peer struct {
	server *Server
	uid    domain.UID
}

func (p *peer) UID() domain.UID { return p.uid }

// Datagram peers keep no connection handle.
func (p *peer) Handle() core.SignalConnection { return nil }

func (p *peer) Reply(env domain.Envelope) error { return p.server.SendTo(p.uid, env) }
