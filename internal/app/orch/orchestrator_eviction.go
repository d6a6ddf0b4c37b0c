package orch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

// RunEviction sweeps idle connections every IdleCheckInterval until ctx
// is done.
func (o *Orchestrator) RunEviction(ctx context.Context) {
	ticker := time.NewTicker(o.IdleCheckInterval)
	defer ticker.Stop()
	log.Info().Str("module", "orch").Dur("idle_timeout", o.IdleTimeout).Dur("interval", o.IdleCheckInterval).Msg("eviction started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "orch").Msg("eviction stopped")
			return
		case <-ticker.C:
			o.Sweep(o.now())
		}
	}
}

// Sweep evicts every uid idle since before now-IdleTimeout and returns
// how many were removed. Socket peers get a timeout notice, datagram
// peers are dropped silently.
func (o *Orchestrator) Sweep(now time.Time) int {
	cutoff := now.Add(-o.IdleTimeout)

	type notice struct {
		uid    domain.UID
		handle core.SignalConnection
	}
	var notices []notice

	o.mu.Lock()
	evicted := 0
	for _, uid := range o.Store.Idle(cutoff) {
		room, h, ok := o.Store.EvictIfIdle(uid, cutoff)
		if !ok {
			continue
		}
		evicted++
		log.Info().Str("module", "orch").Str("uid", string(uid)).Str("room", string(room)).Msg("evicted idle connection")
		if h != nil && o.Transport.Kind().Unsolicited() {
			notices = append(notices, notice{uid: uid, handle: h})
		}
	}
	pruned := o.Store.PruneCredentials(now)
	o.mu.Unlock()

	if pruned > 0 {
		log.Debug().Str("module", "orch").Int("pruned", pruned).Msg("expired credentials dropped")
	}
	if len(notices) == 0 {
		return evicted
	}
	frame, err := o.Codec.Encode(domain.Envelope{Type: domain.MessageServerInfo, Content: domain.TimeoutMessage})
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode timeout notice")
		return evicted
	}
	for _, n := range notices {
		if err := n.handle.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("uid", string(n.uid)).Msg("timeout notice failed")
		}
	}
	return evicted
}
