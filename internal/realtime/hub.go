package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"safepass/backend/internal/notify"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// Hub 本实例的 websocket 连接，按房间分组
// 实现 notify.Broadcaster，作为 local 驱动直接接收事件
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*client]struct{}
	logger *zap.Logger
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	rooms  []string
	userID string
	once   sync.Once
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{rooms: make(map[string]map[*client]struct{}), logger: logger}
}

// Broadcast 向房间内所有连接推送；发送缓冲已满的慢连接被断开
func (h *Hub) Broadcast(_ context.Context, room string, env notify.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.rooms[room] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("websocket 客户端过慢，断开连接", zap.String("user_id", c.userID))
		h.unregister(c)
	}
	return nil
}

// RoomSize 房间当前连接数
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Serve 接管已升级的连接，阻塞直到连接关闭
func (h *Hub) Serve(conn *websocket.Conn, userID string, rooms []string) {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer), rooms: rooms, userID: userID}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range c.rooms {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[*client]struct{})
		}
		h.rooms[room][c] = struct{}{}
	}
}

func (h *Hub) unregister(c *client) {
	c.once.Do(func() {
		h.mu.Lock()
		for _, room := range c.rooms {
			delete(h.rooms[room], c)
			if len(h.rooms[room]) == 0 {
				delete(h.rooms, room)
			}
		}
		h.mu.Unlock()
		close(c.send)
	})
}

// readPump 只处理控制帧；客户端不通过 websocket 发送业务消息
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// RoomsFor 按角色决定连接加入的房间
func RoomsFor(role, userID string) []string {
	switch role {
	case "admin", "security":
		return []string{notify.RoomOperators}
	case "host":
		return []string{notify.HostRoom(userID)}
	}
	return nil
}
