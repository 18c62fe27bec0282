// Package metrics holds the prometheus collectors for the upload engine.
// A nil *UploadMetrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vidhub"

type UploadMetrics struct {
	started     prometheus.Counter
	finished    *prometheus.CounterVec
	bytes       prometheus.Counter
	active      prometheus.Gauge
	orphaned    prometheus.Counter
	observers   prometheus.Gauge
	remoteFails *prometheus.CounterVec
}

// NewUploadMetrics creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer to expose them on /metrics.
func NewUploadMetrics(reg prometheus.Registerer) *UploadMetrics {
	m := &UploadMetrics{
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "started_total",
			Help:      "Upload sessions started.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "finished_total",
			Help:      "Upload sessions that reached a terminal status.",
		}, []string{"status", "stage"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "transferred_bytes_total",
			Help:      "Bytes sent to the media host.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "active_sessions",
			Help:      "Upload sessions currently in flight.",
		}),
		orphaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "orphaned_remote_assets_total",
			Help:      "Remote assets left behind after a failed database write.",
		}),
		observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "progress_observers",
			Help:      "Attached progress observers.",
		}),
		remoteFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mediahost",
			Name:      "delete_failures_total",
			Help:      "Best effort remote deletions that failed.",
		}, []string{"reason"}),
	}

	if reg != nil {
		reg.MustRegister(m.started, m.finished, m.bytes, m.active, m.orphaned, m.observers, m.remoteFails)
	}

	return m
}

func (m *UploadMetrics) Started() {
	if m == nil {
		return
	}
	m.started.Inc()
	m.active.Inc()
}

func (m *UploadMetrics) Finished(status, stage string) {
	if m == nil {
		return
	}
	m.finished.WithLabelValues(status, stage).Inc()
	m.active.Dec()
}

func (m *UploadMetrics) BytesSent(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytes.Add(float64(n))
}

func (m *UploadMetrics) Orphaned() {
	if m == nil {
		return
	}
	m.orphaned.Inc()
}

func (m *UploadMetrics) ObserverAttached() {
	if m == nil {
		return
	}
	m.observers.Inc()
}

func (m *UploadMetrics) ObserverDetached() {
	if m == nil {
		return
	}
	m.observers.Dec()
}

func (m *UploadMetrics) RemoteDeleteFailed(reason string) {
	if m == nil {
		return
	}
	m.remoteFails.WithLabelValues(reason).Inc()
}
