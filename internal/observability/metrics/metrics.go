package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the application-level collectors. The gorm plugin
// registers its own database pool metrics separately.
type Metrics struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	ledgerAppends *prometheus.CounterVec
	rateCacheOps  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vyaparai",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vyaparai",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "method"}),
		ledgerAppends: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vyaparai",
			Subsystem: "khata",
			Name:      "ledger_appends_total",
			Help:      "Credit ledger transactions appended, by type.",
		}, []string{"type"}),
		rateCacheOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vyaparai",
			Subsystem: "gst",
			Name:      "rate_cache_ops_total",
			Help:      "Rate cache lookups, by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) RecordLedgerAppend(txnType string) {
	m.ledgerAppends.WithLabelValues(txnType).Inc()
}

func (m *Metrics) RecordRateCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.rateCacheOps.WithLabelValues(outcome).Inc()
}

// GinMiddleware records request counts and latency keyed by the matched
// route template, not the raw path, to keep cardinality bounded.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
