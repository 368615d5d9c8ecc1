// Package metrics exposes Prometheus collectors for the SPV verification
// pipeline.
package metrics

import (
	"time"

	"github.com/goodnatureofminers/spvcredit-backend/internal/spv/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	verifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spvcredit",
		Subsystem: "verifier",
		Name:      "verify_total",
		Help:      "Count of payout verification attempts.",
	}, []string{"network", "category"})

	verifyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "spvcredit",
		Subsystem: "verifier",
		Name:      "verify_duration_seconds",
		Help:      "Duration of payout verification attempts.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "category"})
)

// Verifier tracks metrics for payout verification.
type Verifier struct {
	network model.Network
}

// NewVerifier constructs a Verifier metrics collector.
func NewVerifier(network model.Network) *Verifier {
	if network == "" {
		network = "unknown"
	}
	return &Verifier{network: network}
}

// ObserveVerify records the outcome and duration of a verification attempt.
// The category label is "none" on success and the rejection category
// otherwise.
func (m Verifier) ObserveVerify(err error, started time.Time) {
	category := model.ErrorCategory(err)
	verifyTotal.WithLabelValues(string(m.network), category).Inc()
	verifyDuration.WithLabelValues(string(m.network), category).
		Observe(time.Since(started).Seconds())
}
