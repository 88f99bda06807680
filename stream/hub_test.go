package stream

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/task"
)

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	typ, b, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, typ)
	fr, err := Decode(b)
	require.NoError(t, err)
	return fr
}

func TestHubBroadcast(t *testing.T) {
	env := corridor(t)
	hub := NewHub(env, 8)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	a := dial(t, srv.URL)
	b := dial(t, srv.URL)
	for _, conn := range []*websocket.Conn{a, b} {
		fr := readFrame(t, conn)
		assert.Equal(t, KindGeometry, fr.Kind)
		assert.Equal(t, env.Name, fr.Name)
	}
	require.Eventually(t, func() bool { return hub.Len() == 2 }, 5*time.Second, 10*time.Millisecond)

	hub.OnSnapshot(task.Snapshot{Step: 1, T: .1})
	hub.OnSnapshot(task.Snapshot{Step: 2, T: .2})
	for _, conn := range []*websocket.Conn{a, b} {
		assert.Equal(t, int32(1), readFrame(t, conn).Step)
		assert.Equal(t, int32(2), readFrame(t, conn).Step)
	}

	a.Close()
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 5*time.Second, 10*time.Millisecond)
	hub.OnSnapshot(task.Snapshot{Step: 3})
	assert.Equal(t, int32(3), readFrame(t, b).Step)

	hub.Close()
	assert.Equal(t, 0, hub.Len())
}

func TestHubDropsWhenQueueFull(t *testing.T) {
	hub := NewHub(corridor(t), 1)
	// 没有写goroutine的客户端，队列不会被消费
	c := &client{send: make(chan []byte, 2)}
	hub.clients[c] = struct{}{}

	for i := int32(1); i <= 5; i++ {
		hub.OnSnapshot(task.Snapshot{Step: i})
	}
	assert.Equal(t, int64(3), hub.Dropped())
	fr, err := Decode(<-c.send)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fr.Step)
}

func TestHubNoClients(t *testing.T) {
	hub := NewHub(corridor(t), 4)
	hub.OnSnapshot(task.Snapshot{Step: 1})
	assert.Zero(t, hub.Dropped())
}
