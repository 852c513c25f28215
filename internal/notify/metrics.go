package notify

import "github.com/prometheus/client_golang/prometheus"

// Metrics 通知投递指标；nil 时所有方法为空操作
type Metrics struct {
	delivered *prometheus.CounterVec
	failed    *prometheus.CounterVec
	dropped   *prometheus.CounterVec
}

// NewMetrics 创建并注册指标；reg 为空时使用默认注册器
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := []string{"channel", "kind"}
	m := &Metrics{
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safepass",
			Subsystem: "notify",
			Name:      "delivered_total",
			Help:      "Notifications delivered successfully.",
		}, labels),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safepass",
			Subsystem: "notify",
			Name:      "failed_total",
			Help:      "Notifications whose delivery failed or timed out.",
		}, labels),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safepass",
			Subsystem: "notify",
			Name:      "dropped_total",
			Help:      "Notifications dropped because the queue was full or closed.",
		}, labels),
	}
	reg.MustRegister(m.delivered, m.failed, m.dropped)
	return m
}

func (m *Metrics) incDelivered(e Event) {
	if m != nil {
		m.delivered.WithLabelValues(string(e.Audience.Channel), string(e.Kind)).Inc()
	}
}

func (m *Metrics) incFailed(e Event) {
	if m != nil {
		m.failed.WithLabelValues(string(e.Audience.Channel), string(e.Kind)).Inc()
	}
}

func (m *Metrics) incDropped(e Event) {
	if m != nil {
		m.dropped.WithLabelValues(string(e.Audience.Channel), string(e.Kind)).Inc()
	}
}
