package stream

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/entity/environment"
	"github.com/tsinghua-fib-lab/pedsim-etiquette/task"
)

const writeWait = 5 * time.Second

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub 快照推送中心
// 功能：实现task.Observer，把每步快照以二进制帧推送给所有websocket客户端
// 说明：
// 1. 每个客户端有独立的发送队列和写goroutine，队列满时丢弃该客户端的本帧，模拟不会被阻塞
// 2. 新客户端首先收到一帧环境几何
type Hub struct {
	mu        sync.Mutex
	clients   map[*client]struct{}
	upgrader  websocket.Upgrader
	geometry  []byte
	queueSize int
	dropped   atomic.Int64
}

// NewHub 创建推送中心
// 参数：env-模拟环境，queueSize-每个客户端的发送队列长度
func NewHub(env *environment.Environment, queueSize int) *Hub {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		geometry:  EncodeGeometry(env),
		queueSize: queueSize,
	}
}

// OnSnapshot 编码快照并放入每个客户端的发送队列
func (h *Hub) OnSnapshot(s task.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}
	frame := EncodeSnapshot(s)
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			h.dropped.Add(1)
		}
	}
}

// Len 当前连接的客户端数
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped 因队列满被丢弃的帧数
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	log.Infof("client connected: %s (%d total)", c.conn.RemoteAddr(), len(h.clients))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	log.Infof("client disconnected: %s (%d total)", c.conn.RemoteAddr(), len(h.clients))
}

// Close 断开所有客户端
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.remove(c)
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for frame := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			log.Warnf("write to %s failed: %v", c.conn.RemoteAddr(), err)
			h.remove(c)
			// 排空队列直到remove关闭它
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
}

// ServeHTTP 升级为websocket连接并注册客户端
// 说明：客户端发来的消息被忽略，读失败视为断开
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, h.queueSize+1)}
	c.send <- h.geometry
	h.add(c)
	go h.writeLoop(c)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}
