package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"safepass/backend/internal/notify"
	"safepass/backend/pkg/redis"
)

// RelayRedis 订阅 redis 频道并转发到本地 Hub，阻塞直到 ctx 取消
func RelayRedis(ctx context.Context, client *redis.Client, channel string, hub *Hub, logger *zap.Logger) error {
	logger.Info("实时事件中继已启动", zap.String("driver", "redis"), zap.String("channel", channel))
	return client.Subscribe(ctx, channel, func(payload []byte) {
		relay(ctx, payload, hub, logger)
	})
}

// RelayNATS 订阅 <prefix>.> 并转发到本地 Hub，阻塞直到 ctx 取消
func RelayNATS(ctx context.Context, conn *nats.Conn, prefix string, hub *Hub, logger *zap.Logger) error {
	sub, err := conn.Subscribe(prefix+".>", func(msg *nats.Msg) {
		relay(ctx, msg.Data, hub, logger)
	})
	if err != nil {
		return fmt.Errorf("订阅 NATS 失败: %w", err)
	}
	logger.Info("实时事件中继已启动", zap.String("driver", "nats"), zap.String("subject", sub.Subject))

	<-ctx.Done()
	return sub.Unsubscribe()
}

func relay(ctx context.Context, payload []byte, hub *Hub, logger *zap.Logger) {
	var wire notify.WireMessage
	if err := json.Unmarshal(payload, &wire); err != nil || wire.Room == "" {
		logger.Warn("忽略无法解析的实时事件", zap.ByteString("payload", payload))
		return
	}
	_ = hub.Broadcast(ctx, wire.Room, wire.Envelope)
}
