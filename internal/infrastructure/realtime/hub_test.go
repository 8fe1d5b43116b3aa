package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	hub    *Hub
	srv    *httptest.Server
	conns  chan *Conn
	mu     sync.Mutex
	frames []Frame
	exited chan error
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	ts := &testServer{
		hub:    NewHub(opts, zerolog.Nop()),
		conns:  make(chan *Conn, 8),
		exited: make(chan error, 8),
	}
	upgrader := websocket.Upgrader{}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := ts.hub.Register(r.URL.Query().Get("id"), r.URL.Query().Get("user"), ws)
		ts.conns <- c
		err = c.ReadLoop(func(f Frame) {
			ts.mu.Lock()
			ts.frames = append(ts.frames, f)
			ts.mu.Unlock()
		})
		ts.hub.Unregister(c)
		ts.exited <- err
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) dial(t *testing.T, id, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/?id=" + id + "&user=" + user
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	select {
	case <-ts.conns:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not registered")
	}
	return ws
}

func (ts *testServer) received() []Frame {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]Frame(nil), ts.frames...)
}

func readFrame(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f map[string]any
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

func TestHub_BroadcastReachesEveryConnection(t *testing.T) {
	ts := newTestServer(t, Options{})
	a := ts.dial(t, "c1", "alice")
	b := ts.dial(t, "c2", "bob")
	require.Equal(t, 2, ts.hub.Len())

	ts.hub.Broadcast("peer-online", "alice")

	for _, ws := range []*websocket.Conn{a, b} {
		f := readFrame(t, ws)
		assert.Equal(t, "peer-online", f["event"])
		assert.Equal(t, "alice", f["data"])
	}
}

func TestHub_SendToTargetsOneConnection(t *testing.T) {
	ts := newTestServer(t, Options{})
	a := ts.dial(t, "c1", "alice")
	b := ts.dial(t, "c2", "bob")

	require.NoError(t, ts.hub.SendTo("c2", "roster-snapshot", []string{"alice", "bob"}))
	f := readFrame(t, b)
	assert.Equal(t, "roster-snapshot", f["event"])
	assert.Equal(t, []any{"alice", "bob"}, f["data"])

	require.NoError(t, a.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := a.ReadMessage()
	assert.Error(t, err, "c1 must not receive c2's frame")

	assert.ErrorIs(t, ts.hub.SendTo("missing", "x", nil), ErrUnknownConnection)
}

func TestHub_CloseEndsConnection(t *testing.T) {
	ts := newTestServer(t, Options{})
	ws := ts.dial(t, "c1", "alice")

	ts.hub.Close("c1")

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	select {
	case err := <-ts.exited:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not exit")
	}
	assert.Equal(t, 0, ts.hub.Len())
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	ts := newTestServer(t, Options{})
	ws := ts.dial(t, "c1", "alice")

	require.NoError(t, ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye")))

	select {
	case err := <-ts.exited:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not exit")
	}
	assert.Equal(t, 0, ts.hub.Len())
}

func TestConn_ReadLoopDeliversFramesAndSkipsGarbage(t *testing.T) {
	ts := newTestServer(t, Options{})
	ws := ts.dial(t, "c1", "alice")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"data":"no event"}`)))
	require.NoError(t, ws.WriteJSON(map[string]any{"event": "identity-announce", "data": "alice"}))

	require.Eventually(t, func() bool { return len(ts.received()) == 1 }, 2*time.Second, 10*time.Millisecond)
	f := ts.received()[0]
	assert.Equal(t, "identity-announce", f.Event)
	assert.JSONEq(t, `"alice"`, string(f.Data))
}

func TestConn_PingsIdlePeers(t *testing.T) {
	ts := newTestServer(t, Options{PingInterval: 20 * time.Millisecond, PongWait: time.Second})
	ws := ts.dial(t, "c1", "alice")

	pings := make(chan struct{}, 16)
	ws.SetPingHandler(func(string) error {
		select {
		case pings <- struct{}{}:
		default:
		}
		return ws.WriteControl(websocket.PongMessage, nil, time.Now().Add(time.Second))
	})
	// Control frames are only processed while reading.
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pings:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping received")
	}
}

func TestConn_SilentPeerIsDropped(t *testing.T) {
	ts := newTestServer(t, Options{PingInterval: time.Second, PongWait: 50 * time.Millisecond})
	ts.dial(t, "c1", "alice")

	select {
	case err := <-ts.exited:
		assert.Error(t, err, "expected read deadline error")
	case <-time.After(2 * time.Second):
		t.Fatal("silent peer was not dropped")
	}
}

func TestConn_EnqueueNeverBlocks(t *testing.T) {
	c := newConn("c1", "alice", nil, Options{SendBuffer: 1}.withDefaults(), zerolog.Nop())

	require.NoError(t, c.enqueue([]byte("1")))
	assert.ErrorIs(t, c.enqueue([]byte("2")), ErrSendBufferFull)

	c.Close()
	assert.ErrorIs(t, c.enqueue([]byte("3")), ErrConnectionClosed)
}

func TestOptions_Defaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, defaultPingInterval, o.PingInterval)
	assert.Equal(t, defaultPongWait, o.PongWait)
	assert.Equal(t, defaultWriteWait, o.WriteWait)
	assert.Equal(t, defaultSendBuffer, o.SendBuffer)

	o = Options{PingInterval: time.Minute, PongWait: 10 * time.Second}.withDefaults()
	assert.Less(t, o.PingInterval, o.PongWait)
}
