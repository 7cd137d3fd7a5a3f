// Package metrics registers Prometheus instruments for the HTTP surface and
// the order/settlement engine.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes application-level instruments.
type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	ordersCreated    prometheus.Counter
	orderTransitions *prometheus.CounterVec
	splitsFinalized  *prometheus.CounterVec
	payments         *prometheus.CounterVec
	ordersSettled    prometheus.Counter
}

// New registers and returns the service metrics.
func New() *Metrics {
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comanda_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "comanda_http_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "comanda_orders_created_total",
		Help: "Orders created.",
	})

	orderTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comanda_order_transitions_total",
		Help: "Order status transitions by target status.",
	}, []string{"status"})

	splitsFinalized := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comanda_bill_splits_finalized_total",
		Help: "Bill splits finalized by strategy.",
	}, []string{"strategy"})

	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comanda_payments_total",
		Help: "Payment transitions by terminal status and method.",
	}, []string{"status", "method"})

	ordersSettled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "comanda_orders_settled_total",
		Help: "Orders fully settled and closed.",
	})

	prometheus.MustRegister(
		httpRequests,
		httpDuration,
		ordersCreated,
		orderTransitions,
		splitsFinalized,
		payments,
		ordersSettled,
	)

	return &Metrics{
		httpRequests:     httpRequests,
		httpDuration:     httpDuration,
		ordersCreated:    ordersCreated,
		orderTransitions: orderTransitions,
		splitsFinalized:  splitsFinalized,
		payments:         payments,
		ordersSettled:    ordersSettled,
	}
}

func (m *Metrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *Metrics) RecordOrderTransition(status string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(strings.ToLower(status)).Inc()
}

func (m *Metrics) RecordSplitFinalized(strategy string) {
	if m == nil {
		return
	}
	m.splitsFinalized.WithLabelValues(strings.ToLower(strategy)).Inc()
}

func (m *Metrics) RecordPayment(status, method string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(strings.ToLower(status), strings.ToLower(method)).Inc()
}

func (m *Metrics) RecordOrderSettled() {
	if m == nil {
		return
	}
	m.ordersSettled.Inc()
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		m.httpRequests.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
