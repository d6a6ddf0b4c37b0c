package app

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/app/credential"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

var ErrUnknownCredential = errors.New("credential is not pending")

// Store holds the process-wide relay tables: membership in both
// directions, pending join credentials, liveness and retained handles.
// Every method is atomic; no caller sees a half-updated mapping.
type Store struct {
	issuer *credential.Issuer
	now    func() time.Time

	mu          sync.RWMutex
	clientsRoom map[domain.UID]domain.RoomName
	roomMembers map[domain.RoomName][]domain.UID
	pending     map[string]pendingCredential
	lastSeen    map[domain.UID]time.Time
	handles     map[domain.UID]core.SignalConnection
}

type pendingCredential struct {
	Room      domain.RoomName
	ExpiresAt time.Time
}

func NewStore(issuer *credential.Issuer) *Store {
	return &Store{
		issuer:      issuer,
		now:         time.Now,
		clientsRoom: make(map[domain.UID]domain.RoomName),
		roomMembers: make(map[domain.RoomName][]domain.UID),
		pending:     make(map[string]pendingCredential),
		lastSeen:    make(map[domain.UID]time.Time),
		handles:     make(map[domain.UID]core.SignalConnection),
	}
}

func (s *Store) Bind(uid domain.UID, room domain.RoomName) error {
	if !uid.Valid() || room == "" {
		return domain.ErrMalformedUID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindLocked(uid, room)
	return nil
}

func (s *Store) bindLocked(uid domain.UID, room domain.RoomName) {
	if old, ok := s.clientsRoom[uid]; ok {
		if old == room {
			return
		}
		s.removeMemberLocked(uid, old)
	}
	s.roomMembers[room] = append(s.roomMembers[room], uid)
	s.clientsRoom[uid] = room
	log.Info().Str("module", "app.store").Str("uid", string(uid)).Str("room", string(room)).Msg("bound")
}

// Unbind drops uid from its room, deleting the room once empty, and
// forgets its liveness record. The retained handle, if any, is returned
// so the caller can say goodbye on it.
func (s *Store) Unbind(uid domain.UID) (domain.RoomName, core.SignalConnection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unbindLocked(uid)
}

func (s *Store) unbindLocked(uid domain.UID) (domain.RoomName, core.SignalConnection, bool) {
	room, ok := s.clientsRoom[uid]
	if !ok {
		return "", nil, false
	}
	s.removeMemberLocked(uid, room)
	h := s.handles[uid]
	delete(s.handles, uid)
	delete(s.lastSeen, uid)
	log.Info().Str("module", "app.store").Str("uid", string(uid)).Str("room", string(room)).Msg("unbound")
	return room, h, true
}

func (s *Store) removeMemberLocked(uid domain.UID, room domain.RoomName) {
	members := slices.DeleteFunc(s.roomMembers[room], func(m domain.UID) bool { return m == uid })
	if len(members) == 0 {
		delete(s.roomMembers, room)
		log.Info().Str("module", "app.store").Str("room", string(room)).Msg("room closed")
	} else {
		s.roomMembers[room] = members
	}
	delete(s.clientsRoom, uid)
}

// MembersOf returns a copy; callers may use it after the lock is gone.
func (s *Store) MembersOf(room domain.RoomName) []domain.UID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.roomMembers[room])
}

func (s *Store) RoomOf(uid domain.UID) (domain.RoomName, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.clientsRoom[uid]
	return room, ok
}

// Rooms lists the names of rooms that currently have members.
func (s *Store) Rooms() []domain.RoomName {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RoomName, 0, len(s.roomMembers))
	for name := range s.roomMembers {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// RoomExists is true for rooms with members and for rooms an unconsumed
// credential still points at, so a freshly created room can be joined
// before its creator connects.
func (s *Store) RoomExists(room domain.RoomName) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.roomMembers[room]) > 0 {
		return true
	}
	now := s.now()
	for _, p := range s.pending {
		if p.Room == room && now.Before(p.ExpiresAt) {
			return true
		}
	}
	return false
}

func (s *Store) IssueCredential(room domain.RoomName) (string, error) {
	token, exp, err := s.issuer.Issue(room)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.pending[token] = pendingCredential{Room: room, ExpiresAt: exp}
	s.mu.Unlock()
	log.Debug().Str("module", "app.store").Str("room", string(room)).Time("expires", exp).Msg("credential issued")
	return token, nil
}

func (s *Store) IsPending(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pending[token]
	return ok
}

// ConsumeCredential verifies token and removes it from the pending set.
// A failed verification leaves the pending set as it was.
func (s *Store) ConsumeCredential(token string) (domain.RoomName, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, err := s.verifyLocked(token)
	if err != nil {
		return "", err
	}
	delete(s.pending, token)
	return room, nil
}

func (s *Store) verifyLocked(token string) (domain.RoomName, error) {
	if _, ok := s.pending[token]; !ok {
		return "", ErrUnknownCredential
	}
	return s.issuer.Verify(token)
}

// Join consumes token and binds uid to the room it names in one step.
// handle is retained for unsolicited sends when non-nil. On error no
// table is touched.
func (s *Store) Join(uid domain.UID, token string, handle core.SignalConnection) (domain.RoomName, error) {
	if !uid.Valid() {
		return "", domain.ErrMalformedUID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	room, err := s.verifyLocked(token)
	if err != nil {
		return "", err
	}
	delete(s.pending, token)
	s.bindLocked(uid, room)
	s.lastSeen[uid] = s.now()
	if handle != nil {
		s.handles[uid] = handle
	}
	return room, nil
}

func (s *Store) Touch(uid domain.UID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clientsRoom[uid]; ok {
		s.lastSeen[uid] = s.now()
	}
}

func (s *Store) LastActivity(uid domain.UID) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.lastSeen[uid]
	return t, ok
}

func (s *Store) Handle(uid domain.UID) (core.SignalConnection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[uid]
	return h, ok
}

// Idle lists uids whose last activity is before cutoff.
func (s *Store) Idle(cutoff time.Time) []domain.UID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.UID
	for uid, seen := range s.lastSeen {
		if seen.Before(cutoff) {
			out = append(out, uid)
		}
	}
	return out
}

// EvictIfIdle unbinds uid only if its last activity, read now, is still
// before cutoff.
func (s *Store) EvictIfIdle(uid domain.UID, cutoff time.Time) (domain.RoomName, core.SignalConnection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen, ok := s.lastSeen[uid]
	if !ok || !seen.Before(cutoff) {
		return "", nil, false
	}
	room, h, ok := s.unbindLocked(uid)
	if !ok {
		// liveness record without membership
		delete(s.lastSeen, uid)
	}
	return room, h, ok
}

// PruneCredentials drops pending credentials that have expired.
func (s *Store) PruneCredentials(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for token, p := range s.pending {
		if !now.Before(p.ExpiresAt) {
			delete(s.pending, token)
			n++
		}
	}
	return n
}
