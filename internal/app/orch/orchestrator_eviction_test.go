package orch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Relay/internal/adapters/codec"
	"github.com/dkeye/Relay/internal/domain"
)

func TestSweepEvictsIdlePeerOnly(t *testing.T) {
	f := newFixture(domain.TransportUDP)
	f.orch.IdleTimeout = 50 * time.Millisecond
	p1 := &fakePeer{uid: "10.0.0.1:5000"}
	p2 := &fakePeer{uid: "10.0.0.2:5001"}
	f.join(t, p1, "abc")
	f.join(t, p2, "abc")

	time.Sleep(80 * time.Millisecond)
	f.orch.OnMessage(p2, domain.Envelope{Content: "still here"})

	assert.Equal(t, 1, f.orch.Sweep(time.Now()))
	_, ok := f.store.RoomOf(p1.uid)
	assert.False(t, ok)
	assert.Equal(t, []domain.UID{p2.uid}, f.store.MembersOf("abc"))
}

func TestSweepDeletesEmptiedRoom(t *testing.T) {
	f := newFixture(domain.TransportUDP)
	p1 := &fakePeer{uid: "10.0.0.1:5000"}
	f.join(t, p1, "abc")
	f.join(t, &fakePeer{uid: "10.0.0.5:5000"}, "other")

	evicted := f.orch.Sweep(time.Now().Add(2 * f.orch.IdleTimeout))
	assert.Equal(t, 2, evicted)
	assert.Empty(t, f.store.Rooms())
	assert.Empty(t, f.store.MembersOf("abc"))
}

func TestSweepKeepsActivePeers(t *testing.T) {
	f := newFixture(domain.TransportUDP)
	f.join(t, &fakePeer{uid: "10.0.0.1:5000"}, "abc")
	assert.Equal(t, 0, f.orch.Sweep(time.Now()))
	assert.Len(t, f.store.MembersOf("abc"), 1)
}

func TestSweepNotifiesSocketPeers(t *testing.T) {
	f := newFixture(domain.TransportWS)
	conn := &fakeConn{}
	p := &fakePeer{uid: "10.0.0.1:5000", conn: conn}
	f.join(t, p, "abc")

	require.Equal(t, 1, f.orch.Sweep(time.Now().Add(2*f.orch.IdleTimeout)))

	require.Len(t, conn.frames, 1)
	env, err := codec.JSON{}.Decode(conn.frames[0])
	require.NoError(t, err)
	assert.Equal(t, domain.Envelope{Type: domain.MessageServerInfo, Content: domain.TimeoutMessage}, env)
	_, ok := f.store.Handle(p.uid)
	assert.False(t, ok)
}

func TestSweepDoesNotNotifyDatagramPeers(t *testing.T) {
	f := newFixture(domain.TransportUDP)
	conn := &fakeConn{}
	p := &fakePeer{uid: "10.0.0.1:5000", conn: conn}
	f.join(t, p, "abc")
	f.transport.sent = nil

	require.Equal(t, 1, f.orch.Sweep(time.Now().Add(2*f.orch.IdleTimeout)))
	assert.Empty(t, conn.frames)
	assert.Empty(t, f.transport.sent)
}

func TestSweepPrunesExpiredCredentials(t *testing.T) {
	f := newFixture(domain.TransportUDP)
	token, err := f.store.IssueCredential("abc")
	require.NoError(t, err)

	f.orch.Sweep(time.Now().Add(2 * time.Minute))
	assert.False(t, f.store.IsPending(token))
}

func TestRunEvictionStopsOnCancel(t *testing.T) {
	f := newFixture(domain.TransportUDP)
	f.orch.IdleTimeout = 10 * time.Millisecond
	f.orch.IdleCheckInterval = 5 * time.Millisecond
	f.join(t, &fakePeer{uid: "10.0.0.1:5000"}, "abc")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.orch.RunEviction(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, ok := f.store.RoomOf("10.0.0.1:5000")
		return !ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunEviction did not return after cancel")
	}
}
