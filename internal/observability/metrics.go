package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AnalysisMetrics records orchestration decisions and analyzer latency.
// It satisfies services.Recorder.
type AnalysisMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	swept    prometheus.Counter
}

// NewAnalysisMetrics creates the collectors and registers them with reg.
func NewAnalysisMetrics(reg prometheus.Registerer) *AnalysisMetrics {
	m := &AnalysisMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_requests_total",
				Help: "Analysis requests by operation and outcome (cache_hit, executed, rate_limited, empty, failed).",
			},
			[]string{"operation", "outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analyzer_call_duration_seconds",
				Help:    "Duration of external analyzer calls in seconds.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"operation"},
		),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_entries_swept_total",
			Help: "Expired cache entries removed by the cleanup job.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.latency, m.swept)
	}
	return m
}

// ObserveOutcome counts one orchestration decision.
func (m *AnalysisMetrics) ObserveOutcome(operation, outcome string) {
	m.requests.WithLabelValues(operation, outcome).Inc()
}

// ObserveAnalyzerCall records how long one analyzer call took.
func (m *AnalysisMetrics) ObserveAnalyzerCall(operation string, d time.Duration) {
	m.latency.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveSwept adds n removed cache entries.
func (m *AnalysisMetrics) ObserveSwept(n int64) {
	if n > 0 {
		m.swept.Add(float64(n))
	}
}
