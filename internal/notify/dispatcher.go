package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Dispatcher 接收工作流提交后产生的事件
// Enqueue 不阻塞、不返回投递错误；投递失败只记录日志与指标
type Dispatcher interface {
	Enqueue(events ...Event) *Ticket
}

// Options 分发器配置
type Options struct {
	// Async=false 时调用方可通过 Ticket.Wait 等待本批事件投递完成
	Async     bool
	QueueSize int
	Timeout   time.Duration
}

// Ticket 一批事件的投递回执
type Ticket struct {
	wg   sync.WaitGroup
	wait bool
}

// Wait 同步模式下等待投递结束或 ctx 取消；异步模式与 nil 立即返回
func (t *Ticket) Wait(ctx context.Context) {
	if t == nil || !t.wait {
		return
	}
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

type job struct {
	event  Event
	ticket *Ticket
}

// ChannelDispatcher 每个通道一个队列与一个 worker，保证同一通道内按入队顺序投递
type ChannelDispatcher struct {
	mailer      Mailer
	broadcaster Broadcaster
	renderer    *Renderer
	opts        Options
	logger      *zap.Logger
	metrics     *Metrics

	mu     sync.RWMutex
	closed bool
	queues map[Channel]chan job
	wg     sync.WaitGroup
}

// NewChannelDispatcher 创建分发器，mailer 或 broadcaster 为空时对应通道的事件被丢弃
func NewChannelDispatcher(mailer Mailer, broadcaster Broadcaster, renderer *Renderer, opts Options, logger *zap.Logger, metrics *Metrics) *ChannelDispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	d := &ChannelDispatcher{
		mailer:      mailer,
		broadcaster: broadcaster,
		renderer:    renderer,
		opts:        opts,
		logger:      logger,
		metrics:     metrics,
		queues: map[Channel]chan job{
			ChannelEmail:     make(chan job, opts.QueueSize),
			ChannelBroadcast: make(chan job, opts.QueueSize),
		},
	}
	for ch, q := range d.queues {
		d.wg.Add(1)
		go d.worker(ch, q)
	}
	return d
}

func (d *ChannelDispatcher) Enqueue(events ...Event) *Ticket {
	t := &Ticket{wait: !d.opts.Async}

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, e := range events {
		if e.OccurredAt.IsZero() {
			e.OccurredAt = time.Now()
		}
		q, ok := d.queues[e.Audience.Channel]
		if !ok || d.closed {
			d.drop(e, "dispatcher closed or unknown channel")
			continue
		}
		t.wg.Add(1)
		select {
		case q <- job{event: e, ticket: t}:
		default:
			t.wg.Done()
			d.drop(e, "queue full")
		}
	}
	return t
}

// Close 停止接收新事件并等待队列中剩余事件投递完毕
func (d *ChannelDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *ChannelDispatcher) worker(ch Channel, q <-chan job) {
	defer d.wg.Done()
	for j := range q {
		d.deliver(j.event)
		j.ticket.wg.Done()
	}
	d.logger.Debug("通知队列已关闭", zap.String("channel", string(ch)))
}

func (d *ChannelDispatcher) deliver(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
	defer cancel()

	var err error
	switch e.Audience.Channel {
	case ChannelEmail:
		err = d.sendEmail(ctx, e)
	case ChannelBroadcast:
		err = d.sendBroadcast(ctx, e)
	}
	if err != nil {
		d.metrics.incFailed(e)
		d.logger.Warn("通知投递失败",
			zap.String("channel", string(e.Audience.Channel)),
			zap.String("kind", string(e.Kind)),
			zap.String("visitor_id", e.Visitor.ID),
			zap.Error(err),
		)
		return
	}
	d.metrics.incDelivered(e)
}

func (d *ChannelDispatcher) sendEmail(ctx context.Context, e Event) error {
	if d.mailer == nil || d.renderer == nil {
		return errNoMailer
	}
	if e.Audience.Email == "" {
		return errNoRecipient
	}
	msg, err := d.renderer.Render(e)
	if err != nil {
		return err
	}
	return callWithContext(ctx, func() error { return d.mailer.Send(ctx, msg) })
}

func (d *ChannelDispatcher) sendBroadcast(ctx context.Context, e Event) error {
	if d.broadcaster == nil {
		return errNoBroadcaster
	}
	env := EnvelopeOf(e)
	return callWithContext(ctx, func() error { return d.broadcaster.Broadcast(ctx, e.Audience.Room, env) })
}

func (d *ChannelDispatcher) drop(e Event, reason string) {
	d.metrics.incDropped(e)
	d.logger.Warn("通知被丢弃",
		zap.String("reason", reason),
		zap.String("channel", string(e.Audience.Channel)),
		zap.String("kind", string(e.Kind)),
		zap.String("visitor_id", e.Visitor.ID),
	)
}

// callWithContext 通道实现未遵守 ctx 时仍保证 worker 按时返回
func callWithContext(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
