package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

func (o *Orchestrator) join(peer core.Peer, token string) func() {
	uid := peer.UID()
	var handle core.SignalConnection
	if o.Transport.Kind().Unsolicited() {
		handle = peer.Handle()
	}
	room, err := o.Store.Join(uid, token, handle)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("uid", string(uid)).Msg("join rejected")
		return func() {
			o.reply(peer, domain.Envelope{Type: domain.MessageServerError, Content: domain.InvalidJoin})
		}
	}
	log.Info().Str("module", "orch").Str("uid", string(uid)).Str("room", string(room)).Msg("joined room")
	ack := domain.Envelope{
		Type:    domain.MessageJoinRoom,
		Content: domain.JoinedMessage(room, uid),
		UID:     uid,
		RoomID:  room,
	}
	return func() {
		if err := o.Transport.SendTo(uid, ack); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("uid", string(uid)).Msg("join ack failed")
		}
	}
}

func (o *Orchestrator) broadcast(room domain.RoomName, members []domain.UID, from domain.UID, content string) {
	env := domain.Envelope{Type: domain.MessageRoom, Content: domain.BroadcastContent(from, content)}
	res := o.Transport.BroadcastToRoom(members, env, from)
	ev := log.Debug()
	if len(res.Dropped) > 0 {
		ev = log.Warn()
	}
	ev.Str("module", "orch").Str("room", string(room)).Str("from", string(from)).
		Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
}
