package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"safepass/backend/pkg/redis"
)

func TestRedisBroadcaster_PublishesWireMessage(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	sub := rdb.Subscribe(context.Background(), "safepass:events")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	b := NewRedisBroadcaster(redis.Wrap(rdb, zap.NewNop()), "safepass:events")
	env := Envelope{Type: string(KindVisitorCheckIn), Data: VisitorSummary{ID: "v-1", Name: "Ali"}, Timestamp: time.Now()}
	require.NoError(t, b.Broadcast(context.Background(), HostRoom("h-1"), env))

	select {
	case msg := <-sub.Channel():
		var wire WireMessage
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &wire))
		assert.Equal(t, "host:h-1", wire.Room)
		assert.Equal(t, "visitor-check-in", wire.Envelope.Type)
		assert.Equal(t, "Ali", wire.Envelope.Data.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("未收到发布的消息")
	}
}

func TestNATSBroadcaster_Subject(t *testing.T) {
	b := NewNATSBroadcaster(nil, "safepass.events.")
	assert.Equal(t, "safepass.events.operators", b.Subject(RoomOperators))
	assert.Equal(t, "safepass.events.host:h-1", b.Subject(HostRoom("h-1")))
}
