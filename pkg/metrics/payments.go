package metrics

import "github.com/prometheus/client_golang/prometheus"

// PaymentMetrics tracks M-Pesa gateway traffic.
type PaymentMetrics struct {
	tokenFetches *prometheus.CounterVec
	stkPushes    *prometheus.CounterVec
	callbacks    *prometheus.CounterVec
}

// NewPaymentMetrics registers payment metrics on reg.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	tokenFetches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mpesa",
		Name:      "token_requests_total",
		Help:      "Access token lookups by source (cache or remote).",
	}, []string{"source"})
	stkPushes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mpesa",
		Name:      "stk_push_total",
		Help:      "STK push initiations by result.",
	}, []string{"result"})
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "mpesa",
		Name:      "callbacks_total",
		Help:      "Received callbacks by resulting status.",
	}, []string{"status"})
	reg.MustRegister(tokenFetches, stkPushes, callbacks)
	return &PaymentMetrics{tokenFetches: tokenFetches, stkPushes: stkPushes, callbacks: callbacks}
}

// TokenLookup counts a token lookup served from source ("cache" or "remote").
func (m *PaymentMetrics) TokenLookup(source string) {
	if m == nil || m.tokenFetches == nil {
		return
	}
	m.tokenFetches.WithLabelValues(normalizeLabel(source)).Inc()
}

// STKPush counts an STK push attempt.
func (m *PaymentMetrics) STKPush(result string) {
	if m == nil || m.stkPushes == nil {
		return
	}
	m.stkPushes.WithLabelValues(normalizeLabel(result)).Inc()
}

// Callback counts a processed callback by the status it produced.
func (m *PaymentMetrics) Callback(status string) {
	if m == nil || m.callbacks == nil {
		return
	}
	m.callbacks.WithLabelValues(normalizeLabel(status)).Inc()
}
