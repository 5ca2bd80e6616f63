package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Sync queue metrics
	PendingOperations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tally_pending_operations",
			Help: "Number of queued mutations waiting to sync",
		},
	)

	DeadOperationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tally_dead_operations_total",
			Help: "Total number of operations marked permanently failed",
		},
	)

	// Mutation metrics
	MutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_mutations_total",
			Help: "Total number of mutations by path and kind",
		},
		[]string{"path", "kind"},
	)

	// Reconciliation metrics
	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tally_reconciliation_cycles_total",
			Help: "Total number of reconciliation passes",
		},
	)

	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tally_reconciliation_duration_seconds",
			Help:    "Time taken to drain the pending queue in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReplaysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_replays_total",
			Help: "Total number of replayed operations by outcome",
		},
		[]string{"outcome"},
	)

	// Connectivity metrics
	ConnectivityOnline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tally_connectivity_online",
			Help: "Whether the remote store is reachable (1 = online, 0 = offline)",
		},
	)

	ConnectivityTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_connectivity_transitions_total",
			Help: "Total number of connectivity transitions by direction",
		},
		[]string{"to"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(PendingOperations)
	prometheus.MustRegister(DeadOperationsTotal)
	prometheus.MustRegister(MutationsTotal)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReplaysTotal)
	prometheus.MustRegister(ConnectivityOnline)
	prometheus.MustRegister(ConnectivityTransitionsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
