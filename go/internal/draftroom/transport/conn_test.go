package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startEchoServer(t *testing.T, conns chan<- *Connection, closed chan<- struct{}) *httptest.Server {
	t.Helper()
	cfg := DefaultConnectionConfig()
	upgrader := cfg.Upgrader()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewConnection(ws, r.URL.Query().Get("userId"), cfg)
		c.Start(func(msg []byte) {
			_ = c.Send(msg)
		}, func() {
			close(closed)
		})
		conns <- c
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestConnection_EchoAndClose(t *testing.T) {
	conns := make(chan *Connection, 1)
	closed := make(chan struct{})
	srv := startEchoServer(t, conns, closed)

	ws := dial(t, srv, "userId=alice")
	server := <-conns
	assert.Equal(t, "alice", server.UserID())
	assert.NotEmpty(t, server.ID())
	assert.True(t, server.IsOpen())

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"PING"}`)))
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"PING"}`, string(msg))

	server.Close(websocket.ClosePolicyViolation, "roomKey and userId are required")
	assert.False(t, server.IsOpen())
	require.ErrorIs(t, server.Send([]byte("x")), ErrConnectionClosed)

	_, _, err = ws.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("onClose was not called")
	}
}

func TestConnection_ClientDisconnectCallsOnClose(t *testing.T) {
	conns := make(chan *Connection, 1)
	closed := make(chan struct{})
	srv := startEchoServer(t, conns, closed)

	ws := dial(t, srv, "userId=bob")
	server := <-conns
	ws.Close()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("onClose was not called")
	}
	assert.False(t, server.IsOpen())
}

func TestConnection_SendBufferFull(t *testing.T) {
	c := &Connection{send: make(chan []byte, 1), done: make(chan struct{})}
	c.open.Store(true)

	require.NoError(t, c.Send([]byte("a")))
	require.ErrorIs(t, c.Send([]byte("b")), ErrSendBufferFull)
}
