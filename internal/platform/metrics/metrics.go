// Package metrics exposes the Prometheus counters and histograms emitted
// across the HTTP surface, admission, matching workers, and reservation
// opener.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process-wide metric set.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	OrdersSubmittedTotal *prometheus.CounterVec
	OrdersFilledTotal    *prometheus.CounterVec
	OrdersFailedTotal    *prometheus.CounterVec
	OrderRetriesTotal    prometheus.Counter
	ReservationsOpened   *prometheus.CounterVec

	MatchingAttemptDuration prometheus.Histogram
	ActiveReservations      prometheus.Gauge
}

// New builds and registers the metric set under the given namespace.
func New(serviceName string) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simtrading",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route and status.",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "simtrading",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		OrdersSubmittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simtrading",
			Subsystem: serviceName,
			Name:      "orders_submitted_total",
			Help:      "Orders accepted at admission, by side.",
		}, []string{"side"}),
		OrdersFilledTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simtrading",
			Subsystem: serviceName,
			Name:      "orders_filled_total",
			Help:      "Orders that reached EXECUTED, by side and fill kind.",
		}, []string{"side", "kind"}),
		OrdersFailedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simtrading",
			Subsystem: serviceName,
			Name:      "orders_failed_total",
			Help:      "Orders that reached FAILED, by reason.",
		}, []string{"reason"}),
		OrderRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simtrading",
			Subsystem: serviceName,
			Name:      "order_retries_total",
			Help:      "Matching attempts that resulted in a miss and were rescheduled.",
		}),
		ReservationsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simtrading",
			Subsystem: serviceName,
			Name:      "reservations_opened_total",
			Help:      "RESERVED orders processed by the market-open job, by outcome.",
		}, []string{"outcome"}),
		MatchingAttemptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "simtrading",
			Subsystem: serviceName,
			Name:      "matching_attempt_duration_seconds",
			Help:      "Wall time of a single matching attempt.",
			Buckets:   prometheus.DefBuckets,
		}),
		ActiveReservations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "simtrading",
			Subsystem: serviceName,
			Name:      "active_reservations",
			Help:      "Orders currently in RESERVED status.",
		}),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration,
		m.OrdersSubmittedTotal, m.OrdersFilledTotal, m.OrdersFailedTotal,
		m.OrderRetriesTotal, m.ReservationsOpened,
		m.MatchingAttemptDuration, m.ActiveReservations,
	)
	return m
}

// Handler returns the HTTP handler serving the metrics registry.
func Handler() http.Handler { return promhttp.Handler() }
