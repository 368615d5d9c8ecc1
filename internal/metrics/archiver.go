package metrics

import (
	"time"

	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	archiverFlushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spvcredit",
		Subsystem: "archiver",
		Name:      "flush_total",
		Help:      "Count of evidence batches flushed to the archive.",
	}, []string{"network", "status"})

	archiverFlushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "spvcredit",
		Subsystem: "archiver",
		Name:      "flush_duration_seconds",
		Help:      "Duration of evidence batch flushes.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})

	archiverFlushSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "spvcredit",
		Subsystem: "archiver",
		Name:      "flush_size",
		Help:      "Number of evidence records per flushed batch.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"network"})
)

// Archiver tracks metrics for the evidence archival pipeline.
type Archiver struct {
	network model.Network
}

// NewArchiver constructs an Archiver metrics collector.
func NewArchiver(network model.Network) *Archiver {
	if network == "" {
		network = "unknown"
	}
	return &Archiver{network: network}
}

// ObserveFlush records an archive flush outcome, size and duration.
func (m Archiver) ObserveFlush(err error, records int, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	archiverFlushTotal.WithLabelValues(string(m.network), status).Inc()
	archiverFlushDuration.WithLabelValues(string(m.network), status).
		Observe(time.Since(started).Seconds())
	archiverFlushSize.WithLabelValues(string(m.network)).Observe(float64(records))
}
