package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/studyroom/internal/app/orch"
	"github.com/dkeye/studyroom/internal/domain"
	"github.com/dkeye/studyroom/internal/metrics"
	"github.com/dkeye/studyroom/internal/protocol"
)

const testSDP = "v=0\r\n" +
	"o=- 4611731400430051336 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:0\r\n"

type testServer struct {
	url    string
	orch   *orch.Orchestrator
	ctl    *SignalWSController
	m      *metrics.Metrics
	counts *countLog
	stop   context.CancelFunc
}

// countLog records scheduled participant counts per room.
type countLog struct {
	mu   sync.Mutex
	last map[domain.RoomID]int
}

func (c *countLog) Schedule(id domain.RoomID, count int) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		c.last = make(map[domain.RoomID]int)
	}
	c.last[id] = count
	return 0
}

func (c *countLog) get(id domain.RoomID) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.last[id]
	return n, ok
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := metrics.New(prometheus.NewRegistry())
	counts := &countLog{}
	o := orch.New(nil, counts, m)
	ctl := NewSignalWSController(o, opts, m)

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/api/ws/signal", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testServer{
		url:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal",
		orch:   o,
		ctl:    ctl,
		m:      m,
		counts: counts,
		stop:   cancel,
	}
}

type client struct {
	t  *testing.T
	ws *websocket.Conn
	id domain.ConnID
}

type event struct {
	Type         string               `json:"type"`
	ID           domain.ConnID        `json:"id"`
	UserID       domain.ConnID        `json:"userId"`
	From         domain.ConnID        `json:"from"`
	Participants []domain.Participant `json:"participants"`
	Offer        json.RawMessage      `json:"offer"`
	Candidate    json.RawMessage      `json:"candidate"`
	Message      json.RawMessage      `json:"message"`
}

func (s *testServer) dial(t *testing.T) *client {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	c := &client{t: t, ws: ws}
	ev := c.read()
	require.Equal(t, protocol.TypeConnected, ev.Type)
	require.NotEmpty(t, ev.ID)
	c.id = ev.ID
	return c
}

func (c *client) send(v any) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteJSON(v))
}

func (c *client) sendRaw(s string) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteMessage(websocket.TextMessage, []byte(s)))
}

func (c *client) read() event {
	c.t.Helper()
	require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev event
	require.NoError(c.t, c.ws.ReadJSON(&ev))
	return ev
}

func (c *client) join(room string, name string) event {
	c.t.Helper()
	c.send(map[string]any{
		"type":     "join-room",
		"roomId":   room,
		"userData": map[string]any{"name": name},
	})
	ev := c.read()
	require.Equal(c.t, protocol.TypeRoomParticipants, ev.Type)
	return ev
}

func TestSignal_JoinRelayAndDisconnect(t *testing.T) {
	s := newTestServer(t, Options{})
	c1 := s.dial(t)
	c2 := s.dial(t)
	assert.NotEqual(t, c1.id, c2.id)

	snap := c1.join("R1", "Ada")
	assert.Empty(t, snap.Participants)

	snap = c2.join("R1", "Grace")
	require.Len(t, snap.Participants, 1)
	assert.Equal(t, c1.id, snap.Participants[0].ID)

	ev := c1.read()
	assert.Equal(t, protocol.TypeUserJoined, ev.Type)
	assert.Equal(t, c2.id, ev.UserID)

	offer := `{"type":"offer","sdp":` + mustJSON(t, testSDP) + `}`
	c1.sendRaw(`{"type":"offer","to":"` + string(c2.id) + `","offer":` + offer + `}`)
	ev = c2.read()
	assert.Equal(t, protocol.TypeOffer, ev.Type)
	assert.Equal(t, c1.id, ev.From)
	assert.JSONEq(t, offer, string(ev.Offer))

	require.NoError(t, c1.ws.Close())
	ev = c2.read()
	assert.Equal(t, protocol.TypeUserLeft, ev.Type)
	assert.Equal(t, c1.id, ev.UserID)

	require.Eventually(t, func() bool {
		ms := s.orch.Members("R1")
		return len(ms) == 1 && ms[0].ID == c2.id
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSignal_InvalidMessagesAreIgnored(t *testing.T) {
	s := newTestServer(t, Options{})
	c := s.dial(t)

	c.sendRaw(`not json`)
	c.sendRaw(`{"type":"teleport"}`)
	c.sendRaw(`{"type":"join-room"}`)
	c.sendRaw(`{"type":"offer","to":"x","offer":{"type":"offer","sdp":"garbage"}}`)
	c.send(map[string]any{"type": "ping"})

	ev := c.read()
	assert.Equal(t, protocol.TypePong, ev.Type, "no error events, next frame is the pong")
	assert.Equal(t, 4.0, testutil.ToFloat64(s.m.Dropped.WithLabelValues(metrics.DropInvalid)))
	assert.False(t, s.orch.HasRoom(""))
}

func TestSignal_ChatAndRelayRateLimit(t *testing.T) {
	s := newTestServer(t, Options{RelayLimit: 1, RelayInterval: time.Minute})
	c1 := s.dial(t)
	c2 := s.dial(t)
	c1.join("R", "a")
	c2.join("R", "b")
	require.Equal(t, protocol.TypeUserJoined, c1.read().Type)

	cand := func() map[string]any {
		return map[string]any{
			"type": "ice-candidate",
			"to":   c2.id,
			"candidate": map[string]any{
				"candidate":     "candidate:1 1 udp 2122260223 10.0.0.1 54321 typ host",
				"sdpMid":        "0",
				"sdpMLineIndex": 0,
			},
		}
	}
	c1.send(cand())
	c1.send(cand())
	c1.send(map[string]any{"type": "send-message", "roomId": "R", "message": map[string]any{"text": "hi"}})

	ev := c2.read()
	assert.Equal(t, protocol.TypeICECandidate, ev.Type)
	ev = c2.read()
	assert.Equal(t, protocol.TypeNewMessage, ev.Type, "second candidate was rate limited")
	assert.JSONEq(t, `{"text":"hi"}`, string(ev.Message))

	ev = c1.read()
	assert.Equal(t, protocol.TypeNewMessage, ev.Type, "sender gets its own message")
	assert.Equal(t, 1.0, testutil.ToFloat64(s.m.Dropped.WithLabelValues(metrics.DropRateLimited)))
}

func TestSignal_LeaveKeepsConnectionOpen(t *testing.T) {
	s := newTestServer(t, Options{})
	c1 := s.dial(t)
	c2 := s.dial(t)
	c1.join("R", "a")
	c2.join("R", "b")
	require.Equal(t, protocol.TypeUserJoined, c1.read().Type)

	c2.send(map[string]any{"type": "leave-room", "roomId": "R"})
	ev := c1.read()
	assert.Equal(t, protocol.TypeUserLeft, ev.Type)
	assert.Equal(t, c2.id, ev.UserID)

	c2.send(map[string]any{"type": "ping"})
	assert.Equal(t, protocol.TypePong, c2.read().Type)
}

func TestSignal_WaitCoversDisconnects(t *testing.T) {
	s := newTestServer(t, Options{})
	c1 := s.dial(t)
	c2 := s.dial(t)
	c1.join("A", "a")
	c2.join("B", "b")

	s.stop()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.ctl.Wait(ctx))

	// every disconnect has reached the orchestrator once Wait returns
	assert.Empty(t, s.orch.LiveRooms())
	for _, room := range []domain.RoomID{"A", "B"} {
		n, ok := s.counts.get(room)
		require.True(t, ok)
		assert.Equal(t, 0, n, "room %s", room)
	}
}

func TestSignal_WaitHonoursContext(t *testing.T) {
	s := newTestServer(t, Options{})
	s.dial(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.ctl.Wait(ctx), context.DeadlineExceeded)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
