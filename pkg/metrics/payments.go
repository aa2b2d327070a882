package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records counters for the payment lifecycle.
type PaymentMetrics struct {
	initialized *prometheus.CounterVec
	transitions *prometheus.CounterVec
	callbacks   *prometheus.CounterVec
	gatewayDur  *prometheus.HistogramVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	initialized := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_initialized_total",
		Help: "Payment initializations by method and outcome.",
	}, []string{"method", "outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_transitions_total",
		Help: "Payment status transitions by target status.",
	}, []string{"status"})
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_callbacks_total",
		Help: "Gateway callback deliveries by outcome.",
	}, []string{"outcome"})
	gatewayDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Duration of outbound gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(initialized, transitions, callbacks, gatewayDur)
	return &PaymentMetrics{
		initialized: initialized,
		transitions: transitions,
		callbacks:   callbacks,
		gatewayDur:  gatewayDur,
	}
}

// IncInitialized counts one payment initialization attempt.
func (m *PaymentMetrics) IncInitialized(method, outcome string) {
	if m == nil || m.initialized == nil {
		return
	}
	m.initialized.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome)).Inc()
}

// IncTransition counts one payment transition into the given status.
func (m *PaymentMetrics) IncTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncCallback counts one gateway callback delivery by outcome
// (applied, duplicate, conflict, rejected).
func (m *PaymentMetrics) IncCallback(outcome string) {
	if m == nil || m.callbacks == nil {
		return
	}
	m.callbacks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveGatewayDuration records the duration of an outbound gateway call.
func (m *PaymentMetrics) ObserveGatewayDuration(operation string, duration time.Duration) {
	if m == nil || m.gatewayDur == nil {
		return
	}
	m.gatewayDur.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
