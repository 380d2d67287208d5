package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks document store round trips, invite redemptions and live subscriptions
type Metrics struct {
	StoreOperations     *prometheus.CounterVec
	StoreDuration       *prometheus.HistogramVec
	InvitesRedeemed     *prometheus.CounterVec
	MalformedDocuments  *prometheus.CounterVec
	ActiveSubscriptions prometheus.Gauge
	HTTPRequests        *prometheus.CounterVec
}

// New registers all metrics with reg. Pass prometheus.DefaultRegisterer in
// binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StoreOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "babyofficehours_store_operations_total",
			Help: "Document store operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		StoreDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "babyofficehours_store_operation_duration_seconds",
			Help:    "Duration of document store operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		InvitesRedeemed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "babyofficehours_invites_redeemed_total",
			Help: "Invites redeemed by role",
		}, []string{"role"}),
		MalformedDocuments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "babyofficehours_malformed_documents_total",
			Help: "Stored documents skipped because they could not be decoded",
		}, []string{"collection"}),
		ActiveSubscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "babyofficehours_active_subscriptions",
			Help: "Open realtime baby subscriptions",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "babyofficehours_http_requests_total",
			Help: "HTTP requests by route and status class",
		}, []string{"route", "status"}),
	}
}

// ObserveStore records one store operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveStore(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.StoreOperations.WithLabelValues(operation, outcome).Inc()
	m.StoreDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementInviteRedeemed(role string) {
	m.InvitesRedeemed.WithLabelValues(role).Inc()
}

func (m *Metrics) IncrementMalformed(collection string) {
	m.MalformedDocuments.WithLabelValues(collection).Inc()
}

func (m *Metrics) SubscriptionOpened() {
	m.ActiveSubscriptions.Inc()
}

func (m *Metrics) SubscriptionClosed() {
	m.ActiveSubscriptions.Dec()
}

// ObserveHTTP records a served request
func (m *Metrics) ObserveHTTP(route string, status int) {
	m.HTTPRequests.WithLabelValues(route, statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
