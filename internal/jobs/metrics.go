package jobs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the orchestrator's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	submitted prometheus.Counter
	finished  *prometheus.CounterVec
	running   prometheus.Gauge
	duration  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "harmonize",
			Name:      "jobs_submitted_total",
			Help:      "Harmonize requests accepted as jobs.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "harmonize",
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal state, by status.",
		}, []string{"status"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "harmonize",
			Name:      "jobs_running",
			Help:      "Jobs currently running.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "harmonize",
			Name:      "job_duration_seconds",
			Help:      "Wall time from job start to terminal state.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	reg.MustRegister(m.submitted, m.finished, m.running, m.duration)
	return m
}

func (m *Metrics) jobSubmitted() {
	if m == nil {
		return
	}
	m.submitted.Inc()
}

func (m *Metrics) jobStarted() {
	if m == nil {
		return
	}
	m.running.Inc()
}

func (m *Metrics) jobFinished(status Status, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.running.Dec()
	m.finished.WithLabelValues(string(status)).Inc()
	m.duration.Observe(elapsed.Seconds())
}
