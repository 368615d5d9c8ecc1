package metrics

import (
	"time"

	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkpointSetTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spvcredit",
		Subsystem: "checkpoint_store",
		Name:      "set_total",
		Help:      "Count of checkpoint attestation attempts.",
	}, []string{"network", "status"})

	checkpointLatestHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "spvcredit",
		Subsystem: "checkpoint_store",
		Name:      "latest_height",
		Help:      "Height of the most recently attested checkpoint.",
	}, []string{"network"})
)

// CheckpointStore tracks metrics for checkpoint attestation.
type CheckpointStore struct {
	network model.Network
}

// NewCheckpointStore constructs a CheckpointStore metrics collector.
func NewCheckpointStore(network model.Network) *CheckpointStore {
	if network == "" {
		network = "unknown"
	}
	return &CheckpointStore{network: network}
}

// ObserveSet records a checkpoint write attempt and, on success, the new
// latest height.
func (m CheckpointStore) ObserveSet(err error, height uint32, _ time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	checkpointSetTotal.WithLabelValues(string(m.network), status).Inc()
	if err == nil {
		checkpointLatestHeight.WithLabelValues(string(m.network)).Set(float64(height))
	}
}
