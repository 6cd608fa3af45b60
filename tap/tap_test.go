package tap

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/opd-ai/rtcevent/dispatch"
	"github.com/opd-ai/rtcevent/event"
	"github.com/opd-ai/rtcevent/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func envelope(seq uint64, ev event.Event) dispatch.Envelope {
	return dispatch.Envelope{ID: "env", Seq: seq, Produced: time.Unix(1700000000, 0), Event: ev}
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestTapStreamsEvents(t *testing.T) {
	tp := New(Options{Mode: "test"})
	srv := httptest.NewServer(tp.Router())
	defer srv.Close()
	defer tp.Close()

	conn := dial(t, srv, "")
	assert.Eventually(t, func() bool { return tp.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	tp.HandleEnvelope(envelope(7, event.RoomStateUpdate{
		RoomID:       "room-1",
		State:        event.RoomStateConnected,
		ExtendedData: event.EmptyDocument(),
	}))

	msg := readMessage(t, conn)
	assert.Equal(t, "room_state_update", msg["kind"])
	assert.Equal(t, "room", msg["scope"])
	assert.Equal(t, "room-1", msg["key"])
	assert.Equal(t, float64(7), msg["seq"])
	body, ok := msg["event"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "room-1", body["room_id"])
}

func TestTapFiltersByKindAndScope(t *testing.T) {
	tp := New(Options{Mode: "test"})
	srv := httptest.NewServer(tp.Router())
	defer srv.Close()
	defer tp.Close()

	players := dial(t, srv, "?scopes=player")
	engine := dial(t, srv, "?kinds=engine_state_update")
	assert.Eventually(t, func() bool { return tp.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	tp.HandleEnvelope(envelope(1, event.EngineStateUpdate{State: event.EngineStateStart}))
	tp.HandleEnvelope(envelope(2, event.PlayerRecvAudioFirstFrame{StreamID: "s1"}))

	assert.Equal(t, "player_recv_audio_first_frame", readMessage(t, players)["kind"])
	assert.Equal(t, "engine_state_update", readMessage(t, engine)["kind"])
}

func TestTapDropsOldestForSlowClient(t *testing.T) {
	tp := New(Options{Mode: "test", ClientBuffer: 1})
	cl := &client{filter: parseFilter("", "")}
	cl.box = relay.NewMailbox[[]byte](1)
	tp.clients["slow"] = cl

	for i := uint64(1); i <= 3; i++ {
		tp.HandleEnvelope(envelope(i, event.EngineStateUpdate{State: event.EngineStateStart}))
	}
	assert.Equal(t, 1, cl.box.Len())
	assert.Equal(t, uint64(2), cl.box.Dropped())

	var msg Message
	require.NoError(t, json.Unmarshal(<-cl.box.C(), &msg))
	assert.Equal(t, uint64(3), msg.Seq)
}

func TestTapStatsAndHealth(t *testing.T) {
	tp := New(Options{Mode: "test", Stats: func() dispatch.Stats {
		return dispatch.Stats{Published: 5, Delivered: 4, Observers: 2}
	}})
	router := tp.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, float64(5), stats["published"])
	assert.Equal(t, float64(0), stats["clients"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTapClosedRefusesClients(t *testing.T) {
	tp := New(Options{Mode: "test"})
	srv := httptest.NewServer(tp.Router())
	defer srv.Close()

	conn := dial(t, srv, "")
	assert.Eventually(t, func() bool { return tp.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	tp.Close()
	assert.Zero(t, tp.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	assert.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	}
}

func TestParseFilter(t *testing.T) {
	f := parseFilter("a, b,,", "")
	assert.True(t, f.accepts(&Message{Kind: "a", Scope: "room"}))
	assert.False(t, f.accepts(&Message{Kind: "c", Scope: "room"}))

	f = parseFilter("", "")
	assert.True(t, f.accepts(&Message{Kind: "anything"}))
}
