package fleet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Reconciler's Prometheus instrumentation.
type Metrics struct {
	verifyDuration prometheus.Histogram
	verifyTotal    *prometheus.CounterVec
	restartTotal   *prometheus.CounterVec
	queueDepth     prometheus.GaugeFunc
	paused         prometheus.Gauge
	nodesDisabled  prometheus.Counter
}

// NewMetrics registers the Reconciler's metrics against reg. Pass
// prometheus.DefaultRegisterer in production; tests should use a
// fresh prometheus.NewRegistry() to avoid collisions across runs.
func NewMetrics(reg prometheus.Registerer, queueDepth func() float64) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		verifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleet_reconcile_duration_seconds",
			Help:    "Duration of each per-node verify cycle",
			Buckets: prometheus.DefBuckets,
		}),
		verifyTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_verify_total",
			Help: "Total per-node verify invocations",
		}, []string{"result"}),
		restartTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_restart_total",
			Help: "Total restart attempts by outcome",
		}, []string{"outcome"}),
		queueDepth: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "fleet_queue_depth",
			Help: "Number of requests currently buffered in the request queue",
		}, queueDepth),
		paused: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fleet_paused",
			Help: "1 if the supervisor is currently paused",
		}),
		nodesDisabled: factory.NewCounter(prometheus.CounterOpts{
			Name: "fleet_nodes_disabled_total",
			Help: "Total nodes disabled for restarting too often",
		}),
	}
}
