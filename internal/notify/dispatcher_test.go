package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ── 测试替身 ──

type fakeMailer struct {
	mu    sync.Mutex
	sent  []Message
	err   error
	block chan struct{} // 非空时 Send 阻塞直到关闭
}

func (m *fakeMailer) Send(ctx context.Context, msg Message) error {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

type roomEnvelope struct {
	room string
	env  Envelope
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	sent []roomEnvelope
	err  error
}

func (b *fakeBroadcaster) Broadcast(_ context.Context, room string, env Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.sent = append(b.sent, roomEnvelope{room: room, env: env})
	return nil
}

func (b *fakeBroadcaster) envelopes() []roomEnvelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]roomEnvelope(nil), b.sent...)
}

func newTestDispatcher(t *testing.T, m Mailer, b Broadcaster, opts Options) (*ChannelDispatcher, *Metrics) {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry())
	d := NewChannelDispatcher(m, b, NewRenderer("https://safepass.example", time.UTC), opts, zap.NewNop(), metrics)
	t.Cleanup(d.Close)
	return d, metrics
}

func approvalEvents() []Event {
	summary := VisitorSummary{ID: "v-1", Name: "Ali Hassan", Status: "approved", VisitDate: "2026-10-14"}
	return []Event{
		{
			Kind:       KindApprovalEmail,
			Audience:   Audience{Channel: ChannelEmail, Email: "ali@example.com", Name: "Ali Hassan"},
			Visitor:    summary,
			Credential: &Credential{Number: "GP-MFX1A2B3-ABC123", QRPayload: "payload", ValidUntil: time.Now().Add(24 * time.Hour)},
		},
		{Kind: KindVisitorApproved, Audience: ToOperators(), Visitor: summary},
		{Kind: KindVisitorApproved, Audience: ToHost("h-1"), Visitor: summary},
	}
}

// ── 同步 / 异步 ──

func TestDispatcher_SyncWaitDelivers(t *testing.T) {
	m, b := &fakeMailer{}, &fakeBroadcaster{}
	d, metrics := newTestDispatcher(t, m, b, Options{Async: false, Timeout: time.Second})

	d.Enqueue(approvalEvents()...).Wait(context.Background())

	msgs := m.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, SubjectApproval, msgs[0].Subject)
	assert.Contains(t, msgs[0].Text, "GP-MFX1A2B3-ABC123")

	envs := b.envelopes()
	require.Len(t, envs, 2)
	assert.Equal(t, RoomOperators, envs[0].room)
	assert.Equal(t, "host:h-1", envs[1].room)
	assert.Equal(t, "visitor-approved", envs[0].env.Type)
	assert.Equal(t, "Ali Hassan", envs[0].env.Data.Name)
	assert.False(t, envs[0].env.Timestamp.IsZero())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.delivered.WithLabelValues("email", "approval")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.delivered.WithLabelValues("broadcast", "visitor-approved")))
}

func TestDispatcher_AsyncDoesNotBlock(t *testing.T) {
	m := &fakeMailer{block: make(chan struct{})}
	d, _ := newTestDispatcher(t, m, &fakeBroadcaster{}, Options{Async: true, Timeout: 5 * time.Second})

	start := time.Now()
	d.Enqueue(approvalEvents()...).Wait(context.Background())
	assert.Less(t, time.Since(start), 500*time.Millisecond, "异步模式入队不应等待投递")

	close(m.block)
	require.Eventually(t, func() bool { return len(m.messages()) == 1 }, time.Second, 10*time.Millisecond)
}

// ── 失败只计数不上抛 ──

func TestDispatcher_FailureIsCounted(t *testing.T) {
	m := &fakeMailer{err: errors.New("smtp 550")}
	b := &fakeBroadcaster{err: errors.New("redis down")}
	d, metrics := newTestDispatcher(t, m, b, Options{Timeout: time.Second})

	d.Enqueue(approvalEvents()...).Wait(context.Background())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.failed.WithLabelValues("email", "approval")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.failed.WithLabelValues("broadcast", "visitor-approved")))
}

func TestDispatcher_TimeoutIsFailure(t *testing.T) {
	m := &fakeMailer{block: make(chan struct{})}
	defer close(m.block)
	d, metrics := newTestDispatcher(t, m, &fakeBroadcaster{}, Options{Timeout: 50 * time.Millisecond})

	start := time.Now()
	d.Enqueue(approvalEvents()[0]).Wait(context.Background())

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.failed.WithLabelValues("email", "approval")))
}

func TestDispatcher_QueueFullDrops(t *testing.T) {
	m := &fakeMailer{block: make(chan struct{})}
	d, metrics := newTestDispatcher(t, m, &fakeBroadcaster{}, Options{Async: true, QueueSize: 1, Timeout: 5 * time.Second})

	email := approvalEvents()[0]
	// 第一条被 worker 取走并阻塞，第二条占满队列，其余被丢弃
	d.Enqueue(email)
	require.Eventually(t, func() bool { return len(d.queues[ChannelEmail]) == 0 }, time.Second, 5*time.Millisecond)
	d.Enqueue(email, email, email)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.dropped.WithLabelValues("email", "approval")))
	close(m.block)
}

// ── 顺序与关闭 ──

func TestDispatcher_PreservesOrderPerChannel(t *testing.T) {
	b := &fakeBroadcaster{}
	d, _ := newTestDispatcher(t, &fakeMailer{}, b, Options{Async: true, Timeout: time.Second})

	kinds := []Kind{KindNewVisitorRequest, KindVisitorApproved, KindVisitorCheckIn, KindVisitorCheckOut}
	for _, k := range kinds {
		d.Enqueue(Event{Kind: k, Audience: ToOperators(), Visitor: VisitorSummary{ID: "v-1"}})
	}
	d.Close()

	envs := b.envelopes()
	require.Len(t, envs, len(kinds))
	for i, k := range kinds {
		assert.Equal(t, string(k), envs[i].env.Type)
	}
}

func TestDispatcher_EnqueueAfterCloseDrops(t *testing.T) {
	d, metrics := newTestDispatcher(t, &fakeMailer{}, &fakeBroadcaster{}, Options{Timeout: time.Second})
	d.Close()

	assert.NotPanics(t, func() {
		d.Enqueue(approvalEvents()[1]).Wait(context.Background())
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.dropped.WithLabelValues("broadcast", "visitor-approved")))
}

func TestTicket_NilWait(t *testing.T) {
	var ticket *Ticket
	assert.NotPanics(t, func() { ticket.Wait(context.Background()) })
}
