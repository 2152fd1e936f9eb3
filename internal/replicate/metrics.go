package replicate

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects the Prometheus instrumentation a Replicator reports
// through. It is safe to register the same *Metrics with multiple
// Replicators only if they are never both active against the same
// registry — in practice one process runs exactly one Replicator.
type Metrics struct {
	InFlightRequests       prometheus.Gauge
	OverloadRejections     prometheus.Counter
	VerificationRejections prometheus.Counter
	SlowNodeWarnings       prometheus.Counter
	SweptRequests          prometheus.Counter
	RoundDuration          *prometheus.HistogramVec
}

// NewMetrics constructs a fresh, unregistered Metrics set.
func NewMetrics() *Metrics {
	return &Metrics{
		InFlightRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clusterd",
			Subsystem: "replicate",
			Name:      "in_flight_requests",
			Help:      "Number of cluster requests currently registered, from Insert to Remove.",
		}),
		OverloadRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clusterd",
			Subsystem: "replicate",
			Name:      "overload_rejections_total",
			Help:      "Requests rejected because the registry was at its concurrency cap.",
		}),
		VerificationRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clusterd",
			Subsystem: "replicate",
			Name:      "verification_rejections_total",
			Help:      "Mutating requests whose verification round did not reach unanimous accept.",
		}),
		SlowNodeWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clusterd",
			Subsystem: "replicate",
			Name:      "slow_node_warnings_total",
			Help:      "Warnings emitted for nodes that were consistent latency outliers.",
		}),
		SweptRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clusterd",
			Subsystem: "replicate",
			Name:      "swept_requests_total",
			Help:      "Completed requests evicted by MaintenanceLoop before the caller consumed them.",
		}),
		RoundDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clusterd",
			Subsystem: "replicate",
			Name:      "round_duration_seconds",
			Help:      "Wall-clock duration of a cluster request from admission to completion, by phase (apply for mutating requests, read otherwise).",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
	}
}

// MustRegister registers every collector in m against reg, panicking on a
// duplicate registration — the same failure mode prometheus.MustRegister
// always has.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.InFlightRequests,
		m.OverloadRejections,
		m.VerificationRejections,
		m.SlowNodeWarnings,
		m.SweptRequests,
		m.RoundDuration,
	)
}
