// Package metrics exposes Prometheus collectors for credit and reservation
// activity. Collectors register with the default registry on import and are
// served by promhttp at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Ledger ─────────────────────────────────────────────────────────────────

var CreditsGranted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gym",
	Subsystem: "ledger",
	Name:      "credits_granted_total",
	Help:      "Credits added by membership purchases.",
})

var CreditsConsumed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gym",
	Subsystem: "ledger",
	Name:      "credits_consumed_total",
	Help:      "Credits drawn from lots by reservations.",
})

var CreditsRefunded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gym",
	Subsystem: "ledger",
	Name:      "credits_refunded_total",
	Help:      "Credits returned to lots by cancellations.",
})

var LotsExpired = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gym",
	Subsystem: "ledger",
	Name:      "lots_expired_total",
	Help:      "Purchase lots reversed by the expiry sweep.",
})

var CreditsExpired = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gym",
	Subsystem: "ledger",
	Name:      "credits_expired_total",
	Help:      "Unused credits removed by the expiry sweep.",
})

// ─── Reservations ───────────────────────────────────────────────────────────

// Operations counts reserve/cancel outcomes. result is "ok" or the
// rejection reason.
var Operations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gym",
	Subsystem: "booking",
	Name:      "operations_total",
	Help:      "Booking operations by kind and result.",
}, []string{"operation", "result"})

var OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "gym",
	Subsystem: "booking",
	Name:      "operation_duration_seconds",
	Help:      "Time spent inside one booking unit of work.",
	Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
}, []string{"operation"})

// Observe records the outcome and duration of one operation.
func Observe(operation, result string, started time.Time) {
	Operations.WithLabelValues(operation, result).Inc()
	OperationLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
