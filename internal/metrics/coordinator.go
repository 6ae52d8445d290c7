// Package metrics exposes application metrics collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	coordinatorBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "utxoindex",
		Subsystem: "coordinator",
		Name:      "blocks_total",
		Help:      "Count of block commit attempts.",
	}, []string{"network", "status"})

	coordinatorBlockDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "utxoindex",
		Subsystem: "coordinator",
		Name:      "block_duration_seconds",
		Help:      "Duration of committing a single block.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})

	coordinatorBlockHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "utxoindex",
		Subsystem: "coordinator",
		Name:      "block_height",
		Help:      "Height of the last committed block.",
	}, []string{"network"})

	coordinatorReorgsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "utxoindex",
		Subsystem: "coordinator",
		Name:      "reorgs_total",
		Help:      "Count of resolved chain reorganizations.",
	}, []string{"network"})

	coordinatorReorgDepth = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "utxoindex",
		Subsystem: "coordinator",
		Name:      "reorg_depth",
		Help:      "Number of blocks rolled back per reorganization.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
	}, []string{"network"})

	coordinatorState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "utxoindex",
		Subsystem: "coordinator",
		Name:      "state",
		Help:      "Current coordinator state (1 for the active state).",
	}, []string{"network", "state"})

	coordinatorSyncLag = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "utxoindex",
		Subsystem: "coordinator",
		Name:      "sync_lag_blocks",
		Help:      "Blocks between the chain tip and the sync cursor.",
	}, []string{"network"})
)

var coordinatorStates = []string{"idle", "batch_syncing", "live", "recovering_reorg", "faulted"}

// Coordinator tracks metrics for the synchronization coordinator.
type Coordinator struct {
	network string
}

// NewCoordinator constructs a metrics collector for the coordinator.
func NewCoordinator(network string) *Coordinator {
	if network == "" {
		network = "unknown"
	}
	return &Coordinator{network: network}
}

// ObserveBlock records a block commit outcome, duration and height.
func (m Coordinator) ObserveBlock(err error, height uint64, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	coordinatorBlocksTotal.WithLabelValues(m.network, status).Inc()
	coordinatorBlockDuration.WithLabelValues(m.network, status).
		Observe(time.Since(started).Seconds())
	if err == nil {
		coordinatorBlockHeight.WithLabelValues(m.network).Set(float64(height))
	}
}

// ObserveReorg records a resolved reorganization and its depth.
func (m Coordinator) ObserveReorg(removed, added int) {
	coordinatorReorgsTotal.WithLabelValues(m.network).Inc()
	coordinatorReorgDepth.WithLabelValues(m.network).Observe(float64(removed))
}

// SetState marks the given state as active and clears the others.
func (m Coordinator) SetState(state string) {
	for _, s := range coordinatorStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		coordinatorState.WithLabelValues(m.network, s).Set(v)
	}
}

// SetSyncLag records the block distance to the chain tip.
func (m Coordinator) SetSyncLag(lag uint64) {
	coordinatorSyncLag.WithLabelValues(m.network).Set(float64(lag))
}
