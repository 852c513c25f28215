package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"safepass/backend/pkg/redis"
)

// Broadcaster 实时广播通道
type Broadcaster interface {
	Broadcast(ctx context.Context, room string, env Envelope) error
}

// ── Redis 发布 ──

// RedisBroadcaster 将事件发布到 redis 频道，由各实例的中继转发给本地连接
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
}

func NewRedisBroadcaster(client *redis.Client, channel string) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, channel: channel}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, room string, env Envelope) error {
	payload, err := json.Marshal(WireMessage{Room: room, Envelope: env})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return b.client.Publish(ctx, b.channel, payload)
}

// ── NATS 发布 ──

// NATSBroadcaster 按房间发布到 <prefix>.<room>
type NATSBroadcaster struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSBroadcaster(conn *nats.Conn, prefix string) *NATSBroadcaster {
	return &NATSBroadcaster{conn: conn, prefix: strings.TrimSuffix(prefix, ".")}
}

// Subject 房间对应的 subject
func (b *NATSBroadcaster) Subject(room string) string {
	return b.prefix + "." + room
}

func (b *NATSBroadcaster) Broadcast(ctx context.Context, room string, env Envelope) error {
	payload, err := json.Marshal(WireMessage{Room: room, Envelope: env})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := b.conn.Publish(b.Subject(room), payload); err != nil {
		return err
	}
	// Publish 只写入缓冲，Flush 确认服务端已接收
	return b.conn.FlushWithContext(ctx)
}
