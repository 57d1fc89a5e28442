package admission

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks the request-level observability surface that
// sits above Counters' connection bookkeeping: a total-requests count
// broken down by response status code, and the handling-duration
// distribution. Both are real Prometheus collectors registered on a
// private Registry (never the global DefaultRegisterer), so more than
// one Policy can coexist in the same process — tests build a fresh one
// per case without collector-already-registered panics.
type RequestMetrics struct {
	registry *prometheus.Registry
	total    *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewRequestMetrics builds and registers the collectors.
func NewRequestMetrics() *RequestMetrics {
	registry := prometheus.NewRegistry()
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aurora",
		Name:      "requests_total",
		Help:      "Total requests served, labeled by response status code.",
	}, []string{"status"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "aurora",
		Name:      "request_duration_seconds",
		Help:      "Request handling latency, from route dispatch to response serialization.",
		Buckets:   prometheus.DefBuckets,
	})
	registry.MustRegister(total, duration)
	return &RequestMetrics{registry: registry, total: total, duration: duration}
}

// Observe records one completed request's status code and the
// wall-clock time spent handling it.
func (m *RequestMetrics) Observe(status int, elapsed time.Duration) {
	m.total.WithLabelValues(strconv.Itoa(status)).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// Registry exposes the underlying Prometheus registry so an embedder
// can mount promhttp.HandlerFor it as a real scrape endpoint, alongside
// the reduced view Snapshot returns for MetricsSnapshot.
func (m *RequestMetrics) Registry() *prometheus.Registry { return m.registry }

// RequestSnapshot is the reduced view of RequestMetrics' collectors,
// plain numbers rather than a live registry, for embedding in a
// structpb-friendly metrics map.
type RequestSnapshot struct {
	ByStatus      map[string]float64
	DurationCount uint64
	DurationSum   float64
}

// Snapshot gathers the registered collectors and reduces them to plain
// totals. A Gather error (never expected for collectors this package
// owns and registers itself) yields a zero-value snapshot rather than
// a panic.
func (m *RequestMetrics) Snapshot() RequestSnapshot {
	snap := RequestSnapshot{ByStatus: make(map[string]float64)}
	families, err := m.registry.Gather()
	if err != nil {
		return snap
	}
	for _, fam := range families {
		switch fam.GetName() {
		case "aurora_requests_total":
			for _, mf := range fam.GetMetric() {
				for _, l := range mf.GetLabel() {
					if l.GetName() == "status" {
						snap.ByStatus[l.GetValue()] = mf.GetCounter().GetValue()
					}
				}
			}
		case "aurora_request_duration_seconds":
			for _, mf := range fam.GetMetric() {
				h := mf.GetHistogram()
				snap.DurationCount = h.GetSampleCount()
				snap.DurationSum = h.GetSampleSum()
			}
		}
	}
	return snap
}
