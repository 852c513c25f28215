package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"safepass/backend/internal/notify"
	"safepass/backend/pkg/redis"
)

// dialHub 启动测试服务器，按给定房间接入一个 websocket 客户端
func dialHub(t *testing.T, hub *Hub, rooms []string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn, "user-1", rooms)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.RoomSize(rooms[0]) == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) notify.Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env notify.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHub_BroadcastToRoom(t *testing.T) {
	hub := NewHub(zap.NewNop())
	operator := dialHub(t, hub, []string{notify.RoomOperators})

	err := hub.Broadcast(context.Background(), notify.RoomOperators, notify.Envelope{
		Type: "visitor-check-in",
		Data: notify.VisitorSummary{ID: "v-1", Name: "Ali Hassan", Status: "checked-in"},
	})
	require.NoError(t, err)

	env := readEnvelope(t, operator)
	assert.Equal(t, "visitor-check-in", env.Type)
	assert.Equal(t, "Ali Hassan", env.Data.Name)
}

func TestHub_OtherRoomNotDelivered(t *testing.T) {
	hub := NewHub(zap.NewNop())
	host := dialHub(t, hub, []string{notify.HostRoom("h-2")})

	_ = hub.Broadcast(context.Background(), notify.HostRoom("h-1"), notify.Envelope{Type: "new-visitor-request"})
	_ = hub.Broadcast(context.Background(), notify.HostRoom("h-2"), notify.Envelope{Type: "visitor-approved"})

	// 只会收到发往自己房间的第二条
	env := readEnvelope(t, host)
	assert.Equal(t, "visitor-approved", env.Type)
}

func TestHub_UnregisterOnClose(t *testing.T) {
	hub := NewHub(zap.NewNop())
	conn := dialHub(t, hub, []string{notify.RoomOperators})

	conn.Close()
	require.Eventually(t, func() bool { return hub.RoomSize(notify.RoomOperators) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRoomsFor(t *testing.T) {
	assert.Equal(t, []string{notify.RoomOperators}, RoomsFor("security", "u-1"))
	assert.Equal(t, []string{notify.RoomOperators}, RoomsFor("admin", "u-1"))
	assert.Equal(t, []string{"host:u-1"}, RoomsFor("host", "u-1"))
	assert.Nil(t, RoomsFor("visitor", "u-1"))
}

func TestRelayRedis_ForwardsToHub(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	client := redis.Wrap(rdb, zap.NewNop())

	hub := NewHub(zap.NewNop())
	operator := dialHub(t, hub, []string{notify.RoomOperators})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = RelayRedis(ctx, client, "safepass:events", hub, zap.NewNop()) }()

	b := notify.NewRedisBroadcaster(client, "safepass:events")
	env := notify.Envelope{Type: "visitor-flagged", Data: notify.VisitorSummary{ID: "v-9"}}

	// 订阅建立前的发布会丢失，重复发布直到收到
	got := make(chan notify.Envelope, 1)
	go func() {
		_ = operator.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, data, err := operator.ReadMessage()
		if err != nil {
			return
		}
		var e notify.Envelope
		if json.Unmarshal(data, &e) == nil {
			got <- e
		}
	}()
	deadline := time.After(3 * time.Second)
	for {
		require.NoError(t, b.Broadcast(ctx, notify.RoomOperators, env))
		select {
		case e := <-got:
			assert.Equal(t, "visitor-flagged", e.Type)
			assert.Equal(t, "v-9", e.Data.ID)
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("中继未转发消息")
		}
	}
}
