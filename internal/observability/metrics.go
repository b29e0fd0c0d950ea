package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sweetshop"

// Metrics holds the purchase-path instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	purchases       *prometheus.CounterVec
	purchaseLatency prometheus.Histogram
	retries         prometheus.Counter
	unitsSold       prometheus.Counter
	restocks        *prometheus.CounterVec
	requests        *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "purchases_total",
			Help:      "Purchase attempts by outcome kind.",
		}, []string{"outcome"}),
		purchaseLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "purchase_duration_seconds",
			Help:      "Purchase latency including conflict retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "conflict_retries_total",
			Help:      "Purchase attempts retried after a write conflict.",
		}),
		unitsSold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "units_sold_total",
			Help:      "Units decremented by committed purchases.",
		}),
		restocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "restocks_total",
			Help:      "Restock operations by outcome kind.",
		}, []string{"outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests served by transport, route and status.",
		}, []string{"transport", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request latency by transport and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"transport", "route"}),
	}
	reg.MustRegister(m.purchases, m.purchaseLatency, m.retries, m.unitsSold, m.restocks, m.requests, m.requestLatency)
	return m
}

func (m *Metrics) ObservePurchase(outcome string, seconds float64, units int) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(outcome).Inc()
	m.purchaseLatency.Observe(seconds)
	if units > 0 {
		m.unitsSold.Add(float64(units))
	}
}

func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) ObserveRestock(outcome string) {
	if m == nil {
		return
	}
	m.restocks.WithLabelValues(outcome).Inc()
}

// ObserveRequest records one served request. route must be a template
// (e.g. /api/sweets/:id) or an RPC method name to keep cardinality low.
func (m *Metrics) ObserveRequest(transport, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(transport, route, status).Inc()
	m.requestLatency.WithLabelValues(transport, route).Observe(seconds)
}
