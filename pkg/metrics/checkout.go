package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes used as the "outcome" label.
const (
	OutcomeCompleted         = "completed"
	OutcomeEmptyCart         = "empty_cart"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeError             = "error"
)

// CheckoutMetrics tracks sale commits.
type CheckoutMetrics struct {
	checkouts *prometheus.CounterVec
	duration  prometheus.Histogram
	revenue   prometheus.Counter
}

// NewCheckoutMetrics registers checkout metrics on reg. A nil registerer yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "total",
		Help:      "Checkout attempts by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "duration_seconds",
		Help:      "Time spent committing a sale.",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
	})
	revenue := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "revenue_total",
		Help:      "Sum of committed sale totals.",
	})
	reg.MustRegister(checkouts, duration, revenue)
	return &CheckoutMetrics{checkouts: checkouts, duration: duration, revenue: revenue}
}

// Observe records one checkout attempt. total is only counted for completed sales.
func (m *CheckoutMetrics) Observe(outcome string, elapsed time.Duration, total float64) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.duration.Observe(elapsed.Seconds())
	if outcome == OutcomeCompleted && total > 0 {
		m.revenue.Add(total)
	}
}
