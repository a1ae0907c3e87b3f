package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fixlineReportsTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fixline_reports_total",
		Help: "Total number of reports by status.",
	}, []string{"status"})

	fixlineRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fixline_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	fixlineRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fixline_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	fixlineTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fixline_transitions_total",
		Help: "Total report status transition attempts by target and outcome.",
	}, []string{"to", "outcome"})

	fixlineBulkOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fixline_bulk_operations_total",
		Help: "Total bulk verify/reject operations by target status.",
	}, []string{"target"})

	fixlineWebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fixline_webhook_deliveries_total",
		Help: "Total webhook delivery attempts by outcome.",
	}, []string{"outcome"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		fixlineRequestsTotal.WithLabelValues(method, path, status).Inc()
		fixlineRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// recordTransition records one transition attempt and its outcome code.
func recordTransition(to, outcome string) {
	fixlineTransitionsTotal.WithLabelValues(to, outcome).Inc()
}

// recordBulkOperation records one bulk verify/reject call.
func recordBulkOperation(target string) {
	fixlineBulkOperationsTotal.WithLabelValues(target).Inc()
}

// SetReportsGauge sets the report count gauge for a given status.
func SetReportsGauge(status string, count float64) {
	fixlineReportsTotal.WithLabelValues(status).Set(count)
}

// RecordWebhookDelivery records one webhook delivery attempt.
func RecordWebhookDelivery(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	fixlineWebhookDeliveriesTotal.WithLabelValues(outcome).Inc()
}
