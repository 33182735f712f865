// Package metrics provides Prometheus instrumentation for the ShieldSenior service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shieldsenior",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shieldsenior",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AnalysesTotal counts transcript analyses by source layer and threat level.
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shieldsenior",
			Name:      "analyses_total",
			Help:      "Total transcript analyses by source and threat level.",
		},
		[]string{"source", "threat_level"},
	)

	// ClassifierFallbacksTotal counts AI classifier failures that fell back
	// to the keyword engine.
	ClassifierFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shieldsenior",
			Name:      "classifier_fallbacks_total",
			Help:      "Total AI classifier failures recovered by the keyword fallback.",
		},
	)

	// ShieldDecisionsTotal counts transaction shield decisions by status.
	ShieldDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shieldsenior",
			Name:      "shield_decisions_total",
			Help:      "Total transaction shield decisions by status.",
		},
		[]string{"status"},
	)

	// GuardianDecisionsTotal counts guardian approvals and rejections.
	GuardianDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shieldsenior",
			Name:      "guardian_decisions_total",
			Help:      "Total guardian decisions by action.",
		},
		[]string{"action"},
	)

	// CoolingExpiredTotal counts cooling-period expiry transitions.
	CoolingExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shieldsenior",
			Name:      "cooling_expired_total",
			Help:      "Total frozen transactions whose cooling period elapsed.",
		},
	)

	// ActiveDashboardClients tracks connected guardian dashboard websockets.
	ActiveDashboardClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shieldsenior",
			Name:      "active_dashboard_clients",
			Help:      "Number of currently connected guardian dashboard clients.",
		},
	)

	// GuardianAlertsTotal counts guardian webhook deliveries by result.
	GuardianAlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shieldsenior",
			Name:      "guardian_alerts_total",
			Help:      "Total guardian webhook alert deliveries by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AnalysesTotal,
		ClassifierFallbacksTotal,
		ShieldDecisionsTotal,
		GuardianDecisionsTotal,
		CoolingExpiredTotal,
		ActiveDashboardClients,
		GuardianAlertsTotal,
	)
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Use the route pattern, not the raw path, to bound cardinality.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).
			Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus scrape endpoint as a gin handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
