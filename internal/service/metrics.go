package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"safepass/backend/internal/model"
)

// Metrics 工作流指标；nil 时为空操作
type Metrics struct {
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

// NewMetrics 创建并注册指标；reg 为空时使用默认注册器
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safepass",
			Subsystem: "visitor",
			Name:      "transitions_total",
			Help:      "Committed visitor state transitions.",
		}, []string{"action"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "safepass",
			Subsystem: "visitor",
			Name:      "transition_failures_total",
			Help:      "Visitor transitions aborted with an error, by error kind.",
		}, []string{"action", "kind"}),
	}
	reg.MustRegister(m.transitions, m.failures)
	return m
}

func (m *Metrics) transition(action model.VisitorAction) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(action)).Inc()
}

func (m *Metrics) failure(action model.VisitorAction, kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.failures.WithLabelValues(string(action), kind).Inc()
}
