package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the adapter metrics of the chat service.
type Metrics struct {
	AdapterRequests *prometheus.CounterVec
	AdapterDuration *prometheus.HistogramVec
	ScratchCleanups *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them on reg. A nil registerer
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AdapterRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_adapter_requests_total",
			Help: "Message requests handled by provider adapters.",
		}, []string{"slug", "variant", "outcome"}),

		AdapterDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chat_adapter_duration_seconds",
			Help:    "Time spent in provider adapters, including the upstream call.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"slug", "variant"}),

		ScratchCleanups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_scratch_cleanups_total",
			Help: "Staged uploads removed after a file request.",
		}, []string{"backend"}),
	}

	if reg != nil {
		reg.MustRegister(m.AdapterRequests, m.AdapterDuration, m.ScratchCleanups)
	}
	return m
}

// RecordAdapter records one adapter invocation.
func (m *Metrics) RecordAdapter(slug, variant, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.AdapterRequests.WithLabelValues(slug, variant, outcome).Inc()
	m.AdapterDuration.WithLabelValues(slug, variant).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordScratchCleanup(backend string) {
	if m == nil {
		return
	}
	m.ScratchCleanups.WithLabelValues(backend).Inc()
}
