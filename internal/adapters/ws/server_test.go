package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Relay/internal/adapters/codec"
	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/credential"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

type harness struct {
	store *app.Store
	orch  *orch.Orchestrator
	codec core.Codec
	url   string
}

func newHarness(t *testing.T, kind domain.TransportKind, c core.Codec) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := app.NewStore(credential.NewIssuer("test-secret", time.Minute))
	srv := NewServer(kind, c, store, Options{ReadLimit: 32768})
	o := orch.New(store, srv, c, time.Minute, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/ws", srv.Handler(ctx, o))
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	return &harness{
		store: store,
		orch:  o,
		codec: c,
		url:   "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(h.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func (h *harness) send(t *testing.T, c *websocket.Conn, content string) {
	t.Helper()
	msgType := websocket.TextMessage
	payload := []byte(content)
	if h.codec.Binary() {
		msgType = websocket.BinaryMessage
		var err error
		payload, err = h.codec.Encode(domain.Envelope{Type: domain.MessageRoom, Content: content})
		require.NoError(t, err)
	}
	require.NoError(t, c.WriteMessage(msgType, payload))
}

func (h *harness) read(t *testing.T, c *websocket.Conn) domain.Envelope {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, data, err := c.ReadMessage()
	require.NoError(t, err)
	if h.codec.Binary() {
		assert.Equal(t, websocket.BinaryMessage, mt)
	} else {
		assert.Equal(t, websocket.TextMessage, mt)
	}
	env, err := h.codec.Decode(data)
	require.NoError(t, err)
	return env
}

func expectSilence(t *testing.T, c *websocket.Conn) {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := c.ReadMessage()
	require.Error(t, err)
}

func (h *harness) join(t *testing.T, c *websocket.Conn, room domain.RoomName) domain.Envelope {
	t.Helper()
	token, err := h.store.IssueCredential(room)
	require.NoError(t, err)
	h.send(t, c, token)
	ack := h.read(t, c)
	require.Equal(t, domain.MessageJoinRoom, ack.Type)
	return ack
}

func runScenario(t *testing.T, kind domain.TransportKind, c core.Codec) {
	h := newHarness(t, kind, c)
	p1, p2 := h.dial(t), h.dial(t)

	h.send(t, p1, "ping")
	assert.Equal(t, domain.Envelope{Type: domain.MessageServerInfo, Content: domain.VoidMessage}, h.read(t, p1))

	ack1 := h.join(t, p1, "abc")
	assert.Equal(t, domain.UID(p1.LocalAddr().String()), ack1.UID)
	assert.Equal(t, domain.RoomName("abc"), ack1.RoomID)
	ack2 := h.join(t, p2, "abc")

	h.send(t, p2, "hello")
	assert.Equal(t, domain.Envelope{
		Type:    domain.MessageRoom,
		Content: string(ack2.UID) + ";#hello",
	}, h.read(t, p1))
	expectSilence(t, p2)

	require.Equal(t, 2, h.orch.Sweep(time.Now().Add(2*time.Minute)))
	assert.Equal(t, domain.Envelope{Type: domain.MessageServerInfo, Content: domain.TimeoutMessage}, h.read(t, p1))
	assert.Empty(t, h.store.Rooms())
}

func TestRelayScenarioText(t *testing.T) {
	runScenario(t, domain.TransportWS, codec.JSON{})
}

func TestRelayScenarioProtobuf(t *testing.T) {
	runScenario(t, domain.TransportWSBinary, codec.Protobuf{})
}

func TestRelayScenarioCBOR(t *testing.T) {
	c, err := codec.NewCBOR()
	require.NoError(t, err)
	runScenario(t, domain.TransportWSBinary, c)
}

func TestRelayKeepsJSONPayloadVerbatim(t *testing.T) {
	h := newHarness(t, domain.TransportWS, codec.JSON{})
	p1, p2 := h.dial(t), h.dial(t)
	h.join(t, p1, "abc")
	ack2 := h.join(t, p2, "abc")

	for _, payload := range []string{`{"x":1,"y":2}`, `{"content":5}`} {
		h.send(t, p2, payload)
		assert.Equal(t, domain.Envelope{
			Type:    domain.MessageRoom,
			Content: string(ack2.UID) + ";#" + payload,
		}, h.read(t, p1))
		expectSilence(t, p2)
	}
}

func TestMalformedBinaryGetsHeartbeat(t *testing.T) {
	h := newHarness(t, domain.TransportWSBinary, codec.Protobuf{})
	c := h.dial(t)
	require.NoError(t, c.WriteMessage(websocket.BinaryMessage, []byte{0x12, 0x05, 'h'}))
	assert.Equal(t, domain.VoidMessage, h.read(t, c).Content)
}

func TestMembershipSurvivesSocketClose(t *testing.T) {
	h := newHarness(t, domain.TransportWS, codec.JSON{})
	c := h.dial(t)
	ack := h.join(t, c, "abc")
	require.NoError(t, c.Close())

	time.Sleep(50 * time.Millisecond)
	room, ok := h.store.RoomOf(ack.UID)
	assert.True(t, ok)
	assert.Equal(t, domain.RoomName("abc"), room)
}

func TestTrySendBackpressure(t *testing.T) {
	c := &Conn{send: make(chan core.Frame, 1)}
	require.NoError(t, c.TrySend(core.Frame("a")))
	assert.ErrorIs(t, c.TrySend(core.Frame("b")), ErrBackpressure)
}

func TestSendToUnknownUID(t *testing.T) {
	store := app.NewStore(credential.NewIssuer("test-secret", time.Minute))
	srv := NewServer(domain.TransportWS, codec.JSON{}, store, Options{})
	assert.ErrorIs(t, srv.SendTo("10.0.0.1:5000", domain.Envelope{}), ErrClosed)

	res := srv.BroadcastToRoom([]domain.UID{"10.0.0.1:5000", "10.0.0.2:5000"}, domain.Envelope{}, "10.0.0.2:5000")
	assert.Equal(t, 0, res.SendTo)
	assert.Equal(t, []domain.UID{"10.0.0.1:5000"}, res.Dropped)
}
