package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"safepass/backend/config"
)

func TestSMTPMailer_Compose(t *testing.T) {
	m := NewSMTPMailer(&config.MailConfig{SMTPHost: "localhost", SMTPPort: 1025, From: "no-reply@safepass.local", FromName: "SafePass"})

	raw := string(m.compose(Message{
		To:      "ali@example.com",
		ToName:  "Ali Hassan",
		Subject: SubjectApproval,
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	}, time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)))

	assert.Contains(t, raw, `From: "SafePass" <no-reply@safepass.local>`)
	assert.Contains(t, raw, `To: "Ali Hassan" <ali@example.com>`)
	assert.Contains(t, raw, "Subject: "+SubjectApproval)
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "plain body")
	assert.Contains(t, raw, "<p>html body</p>")
	assert.True(t, strings.HasSuffix(raw, "--\r\n"))
}

func TestSMTPMailer_EmptyRecipient(t *testing.T) {
	m := NewSMTPMailer(&config.MailConfig{SMTPHost: "localhost", SMTPPort: 1025})
	assert.Error(t, m.Send(context.Background(), Message{To: "  "}))
}

func TestSMTPMailer_DialRespectsContext(t *testing.T) {
	// 10.255.255.1 不可路由，拨号只能因 ctx 超时结束
	m := NewSMTPMailer(&config.MailConfig{SMTPHost: "10.255.255.1", SMTPPort: 25, From: "a@b.c"})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := m.Send(ctx, Message{To: "ali@example.com"})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
