package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/protobuf/types/known/structpb"
)

// MetricsSnapshot is a point-in-time view of the server's observable
// counters, rendered as a structpb.Struct so an embedder can hand it
// straight to any protobuf-JSON-aware
// exporter without Aurora needing to depend on one itself. Grounded on
// the admission.Counters fields themselves, the same atomics the
// Policy consults on every AdmitConnection/AdmitInFlight call, plus the
// per-status request counter and the request-duration histogram
// admission.RequestMetrics gathers from its own Prometheus registry.
func (s *Server) MetricsSnapshot() (*structpb.Struct, error) {
	accepted := s.counters.AcceptedTotal.Load()
	rejected := s.counters.RejectedTotal.Load()
	current := s.counters.CurrentConnections.Load()
	inFlight := s.counters.CurrentInFlight.Load()
	keepAlive := s.counters.ConnectionsKeepAlive.Load()
	reqs := s.metrics.Snapshot()

	requestsTotal := make(map[string]any, len(reqs.ByStatus))
	for status, count := range reqs.ByStatus {
		requestsTotal[status] = count
	}
	var durationAvg float64
	if reqs.DurationCount > 0 {
		durationAvg = reqs.DurationSum / float64(reqs.DurationCount)
	}

	return structpb.NewStruct(map[string]any{
		"accepted_total":                float64(accepted),
		"rejected_total":                float64(rejected),
		"current_connections":           float64(current),
		"current_in_flight":             float64(inFlight),
		"connections_keepalive":         float64(keepAlive),
		"overloaded":                    s.policy.Overloaded(),
		"ready":                         s.flags.Ready.Load(),
		"shutting_down":                 s.flags.ShuttingDown.Load(),
		"worker_count":                  float64(len(s.workers)),
		"requests_total":                requestsTotal,
		"request_duration_seconds_count": float64(reqs.DurationCount),
		"request_duration_seconds_sum":   reqs.DurationSum,
		"request_duration_seconds_avg":   durationAvg,
	})
}

// MetricsRegistry exposes the underlying Prometheus registry so an
// embedder can mount promhttp.HandlerFor it as a real scrape endpoint,
// independent of the structpb snapshot above.
func (s *Server) MetricsRegistry() *prometheus.Registry { return s.metrics.Registry() }
