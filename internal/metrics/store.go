package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "utxoindex",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Count of entity store operations.",
	}, []string{"operation", "network", "status"})

	storeOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "utxoindex",
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Duration of entity store operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "network", "status"})
)

// Store tracks metrics for entity store queries and commits.
type Store struct {
	network string
}

// NewStore constructs a metrics collector for the entity store.
func NewStore(network string) *Store {
	if network == "" {
		network = "unknown"
	}
	return &Store{network: network}
}

// Observe records a single store operation outcome and duration.
func (m Store) Observe(operation string, err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	storeOperationsTotal.WithLabelValues(operation, m.network, status).Inc()
	storeOperationDuration.WithLabelValues(operation, m.network, status).
		Observe(time.Since(started).Seconds())
}
