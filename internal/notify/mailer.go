package notify

import (
	"context"

	"go.uber.org/zap"
)

// Message 渲染完成的邮件
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Mailer 邮件发送通道；实现必须遵守 ctx 的截止时间
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer 仅记录日志，用于本地开发
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("邮件（开发模式，未实际发送）",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
	)
	return nil
}
