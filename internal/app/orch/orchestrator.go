package orch

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

// credentialMinLen is the length a payload must exceed before it is
// looked up as a join credential.
const credentialMinLen = 30

// Orchestrator is the room relay state machine. mu is the single
// serialization point for classification and sweeps; sends happen after
// it is released.
type Orchestrator struct {
	Store     *app.Store
	Transport core.Transport
	Codec     core.Codec

	IdleTimeout       time.Duration
	IdleCheckInterval time.Duration

	mu  sync.Mutex
	now func() time.Time
}

func New(store *app.Store, transport core.Transport, codec core.Codec, idleTimeout, idleCheck time.Duration) *Orchestrator {
	return &Orchestrator{
		Store:             store,
		Transport:         transport,
		Codec:             codec,
		IdleTimeout:       idleTimeout,
		IdleCheckInterval: idleCheck,
		now:               time.Now,
	}
}

func (o *Orchestrator) OnMessage(peer core.Peer, msg domain.Envelope) {
	o.mu.Lock()
	send := o.route(peer, msg.Content)
	o.mu.Unlock()
	send()
}

func (o *Orchestrator) OnMalformed(peer core.Peer, err error) {
	log.Debug().Err(err).Str("module", "orch").Str("uid", string(peer.UID())).Msg("undecodable payload")
	o.heartbeat(peer)()
}

func (o *Orchestrator) route(peer core.Peer, content string) func() {
	uid := peer.UID()
	if room, ok := o.Store.RoomOf(uid); ok {
		o.Store.Touch(uid)
		members := o.Store.MembersOf(room)
		return func() { o.broadcast(room, members, uid, content) }
	}
	if len(content) > credentialMinLen && o.Store.IsPending(content) {
		return o.join(peer, content)
	}
	return o.heartbeat(peer)
}

func (o *Orchestrator) heartbeat(peer core.Peer) func() {
	return func() {
		o.reply(peer, domain.Envelope{Type: domain.MessageServerInfo, Content: domain.VoidMessage})
	}
}

func (o *Orchestrator) reply(peer core.Peer, env domain.Envelope) {
	if err := peer.Reply(env); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("uid", string(peer.UID())).Str("type", env.Type.String()).Msg("reply failed")
	}
}
