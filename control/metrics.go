// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus metrics for processors and the dispatcher. Every recording
// method is safe on a nil *Metrics, so components record unconditionally.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "hioload"

// Metrics contains the counters and gauges recorded by all components.
type Metrics struct {
	Posted        *prometheus.CounterVec
	Delivered     *prometheus.CounterVec
	Coalesced     *prometheus.CounterVec
	Timeouts      *prometheus.CounterVec
	Errors        *prometheus.CounterVec
	Pending       *prometheus.GaugeVec
	Notifications *prometheus.CounterVec
	Registrations *prometheus.GaugeVec
	BatchSize     *prometheus.HistogramVec
	Iterations    *prometheus.CounterVec
}

// NewMetrics creates an unregistered metrics set.
func NewMetrics() *Metrics {
	return &Metrics{
		Posted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "processor",
				Name:      "posted_total",
				Help:      "Items, commands or counts accepted from producers",
			},
			[]string{"processor"},
		),

		Delivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "processor",
				Name:      "delivered_total",
				Help:      "Deliveries made to consumer logic",
			},
			[]string{"processor"},
		),

		Coalesced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "processor",
				Name:      "coalesced_total",
				Help:      "Posts suppressed because the value did not change",
			},
			[]string{"processor"},
		),

		Timeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "processor",
				Name:      "timeouts_total",
				Help:      "Bounded waits that expired without a post",
			},
			[]string{"processor"},
		),

		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "errors",
				Name:      "total",
				Help:      "Rejected or failed operations by error code",
			},
			[]string{"component", "code"},
		),

		Pending: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "processor",
				Name:      "pending",
				Help:      "Items waiting for the consumer",
			},
			[]string{"processor"},
		),

		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "dispatcher",
				Name:      "notifications_total",
				Help:      "Hook notifications by returned command",
			},
			[]string{"dispatcher", "cmd"},
		),

		Registrations: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "dispatcher",
				Name:      "registrations",
				Help:      "Live event registrations",
			},
			[]string{"dispatcher"},
		),

		BatchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "dispatcher",
				Name:      "batch_size",
				Help:      "Ready registrations per wait",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
			},
			[]string{"dispatcher"},
		),

		Iterations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "dispatcher",
				Name:      "iterations_total",
				Help:      "Event loop wait iterations",
			},
			[]string{"dispatcher"},
		),
	}
}

// Collectors lists every collector of the set.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Posted, m.Delivered, m.Coalesced, m.Timeouts, m.Errors,
		m.Pending, m.Notifications, m.Registrations, m.BatchSize, m.Iterations,
	}
}

// Register adds the set to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordPosted counts n accepted posts.
func (m *Metrics) RecordPosted(processor string, n uint64) {
	if m == nil {
		return
	}
	m.Posted.WithLabelValues(processor).Add(float64(n))
}

// RecordDelivered counts one delivery to logic.
func (m *Metrics) RecordDelivered(processor string) {
	if m == nil {
		return
	}
	m.Delivered.WithLabelValues(processor).Inc()
}

// RecordCoalesced counts one suppressed post.
func (m *Metrics) RecordCoalesced(processor string) {
	if m == nil {
		return
	}
	m.Coalesced.WithLabelValues(processor).Inc()
}

// RecordTimeout counts one expired wait.
func (m *Metrics) RecordTimeout(processor string) {
	if m == nil {
		return
	}
	m.Timeouts.WithLabelValues(processor).Inc()
}

// RecordError counts one failed operation under its code.
func (m *Metrics) RecordError(component, code string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(component, code).Inc()
}

// RecordPending sets the pending gauge.
func (m *Metrics) RecordPending(processor string, n int) {
	if m == nil {
		return
	}
	m.Pending.WithLabelValues(processor).Set(float64(n))
}

// RecordNotification counts one hook notification by command.
func (m *Metrics) RecordNotification(dispatcher, cmd string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(dispatcher, cmd).Inc()
}

// RecordRegistrations sets the live registration gauge.
func (m *Metrics) RecordRegistrations(dispatcher string, n int) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(dispatcher).Set(float64(n))
}

// RecordBatch observes one ready batch and counts the iteration.
func (m *Metrics) RecordBatch(dispatcher string, n int) {
	if m == nil {
		return
	}
	m.Iterations.WithLabelValues(dispatcher).Inc()
	if n > 0 {
		m.BatchSize.WithLabelValues(dispatcher).Observe(float64(n))
	}
}
