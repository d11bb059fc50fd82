package hub

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// serve exposes h on an httptest server and returns its ws:// URL.
func serve(t *testing.T, h *Hub) string {
	t.Helper()
	upgrader := gorilla.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(h, conn).Run()
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *gorilla.Conn {
	t.Helper()
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubBroadcast(t *testing.T) {
	h := New("bodies", quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	url := serve(t, h)
	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, h.IsRunning())

	require.NoError(t, h.BroadcastJSON(map[string]int{"seq": 7}))
	h.BroadcastBinary([]byte{0xFF, 0xD8})

	for _, c := range []*gorilla.Conn{a, b} {
		c.SetReadDeadline(time.Now().Add(time.Second))
		typ, data, err := c.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, gorilla.TextMessage, typ)
		assert.JSONEq(t, `{"seq":7}`, string(data))

		typ, data, err = c.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, gorilla.BinaryMessage, typ)
		assert.Equal(t, []byte{0xFF, 0xD8}, data)
	}

	require.NoError(t, a.Close())
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestHubStopClosesClients(t *testing.T) {
	h := New("color", quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	c := dial(t, serve(t, h))
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	c.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := c.ReadMessage()
	assert.True(t, gorilla.IsCloseError(err, gorilla.CloseNoStatusReceived, gorilla.CloseNormalClosure) ||
		strings.Contains(err.Error(), "close"), "got %v", err)

	require.Eventually(t, func() bool { return !h.IsRunning() }, time.Second, 5*time.Millisecond)
	assert.Zero(t, h.ClientCount())
}

func TestBroadcastWithoutRunDrops(t *testing.T) {
	h := New("idle", nil)
	for i := 0; i < cap(h.broadcast)+10; i++ {
		h.Broadcast(JSON([]byte("{}")))
	}
	assert.Equal(t, uint64(10), h.Dropped())
	assert.Equal(t, "idle", h.Name())
}

// closedConn is a connection whose peer has already gone away.
type closedConn struct {
	closed atomic.Int32
}

func (*closedConn) SetReadLimit(int64)                {}
func (*closedConn) SetReadDeadline(time.Time) error   { return nil }
func (*closedConn) SetPongHandler(func(string) error) {}
func (*closedConn) ReadMessage() (int, []byte, error) { return 0, nil, io.EOF }
func (*closedConn) SetWriteDeadline(time.Time) error  { return nil }
func (*closedConn) WriteMessage(int, []byte) error    { return nil }
func (c *closedConn) Close() error                    { c.closed.Add(1); return nil }

func TestClientsAfterStopDoNotBlock(t *testing.T) {
	h := New("late", quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	cancel()

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	conn := &closedConn{}
	finished := make(chan struct{})
	go func() {
		NewClient(h, conn).Run()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("client on a stopped hub blocked")
	}
	assert.NotZero(t, conn.closed.Load())
	assert.Zero(t, h.ClientCount())
}

func TestStoppedHubClosesNewViewers(t *testing.T) {
	h := New("late", quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	cancel()
	<-h.Done()

	c := dial(t, serve(t, h))
	c.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := c.ReadMessage()
	assert.Error(t, err, "viewer of a stopped hub is disconnected")
}
