// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus telemetry for the worker pool and the reactor. A nil *Metrics
// is valid and records nothing.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hioload"

// Metrics implements the pool and reactor metrics sinks.
type Metrics struct {
	reg prometheus.Registerer

	tasksSubmitted prometheus.Counter
	tasksRejected  prometheus.Counter
	tasksProcessed prometheus.Counter
	taskPanics     prometheus.Counter
	queueDepth     prometheus.Gauge

	connsAccepted prometheus.Counter
	connsRefused  *prometheus.CounterVec
	connsClosed   prometheus.Counter
	liveConns     prometheus.Gauge
	events        *prometheus.CounterVec
	deferred      prometheus.Gauge
}

// NewMetrics registers every collector with reg. A nil reg returns nil,
// which disables metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		tasksSubmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "tasks_submitted_total",
			Help: "Tasks admitted to the worker pool queue",
		}),
		tasksRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "tasks_rejected_total",
			Help: "Tasks refused because the queue was full or the pool closed",
		}),
		tasksProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "tasks_processed_total",
			Help: "Tasks run to completion by a worker",
		}),
		taskPanics: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pool", Name: "task_panics_total",
			Help: "Tasks that panicked",
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pool", Name: "queue_depth",
			Help: "Tasks waiting in the queue",
		}),
		connsAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reactor", Name: "connections_accepted_total",
			Help: "Connections admitted",
		}),
		connsRefused: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reactor", Name: "connections_refused_total",
			Help: "Connections closed at accept, by reason",
		}, []string{"reason"}),
		connsClosed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reactor", Name: "connections_closed_total",
			Help: "Live connections closed",
		}),
		liveConns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "reactor", Name: "connections_live",
			Help: "Connections currently registered",
		}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "reactor", Name: "events_total",
			Help: "Readiness events dispatched, by kind",
		}, []string{"kind"}),
		deferred: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "reactor", Name: "deferred_tasks",
			Help: "Read-complete connections waiting for queue space",
		}),
	}
}

// CounterFunc exposes a monotonically increasing value read on scrape.
func (m *Metrics) CounterFunc(subsystem, name, help string, fn func() float64) {
	if m == nil {
		return
	}
	promauto.With(m.reg).NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}, fn)
}

func (m *Metrics) TaskSubmitted() {
	if m == nil {
		return
	}
	m.tasksSubmitted.Inc()
}

func (m *Metrics) TaskRejected() {
	if m == nil {
		return
	}
	m.tasksRejected.Inc()
}

func (m *Metrics) TaskProcessed() {
	if m == nil {
		return
	}
	m.tasksProcessed.Inc()
}

func (m *Metrics) TaskPanicked() {
	if m == nil {
		return
	}
	m.taskPanics.Inc()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) ConnAccepted() {
	if m == nil {
		return
	}
	m.connsAccepted.Inc()
}

func (m *Metrics) ConnRefused(reason string) {
	if m == nil {
		return
	}
	m.connsRefused.WithLabelValues(reason).Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.connsClosed.Inc()
}

func (m *Metrics) LiveConns(n int) {
	if m == nil {
		return
	}
	m.liveConns.Set(float64(n))
}

func (m *Metrics) Event(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) DeferredTasks(n int) {
	if m == nil {
		return
	}
	m.deferred.Set(float64(n))
}
