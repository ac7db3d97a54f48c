// Package metrics holds the gatekeeper's Prometheus collectors.
//
// All observe methods are safe on a nil *Metrics so components can run
// without instrumentation in tests.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"wellness-gatekeeper/internal/domain/access"
)

type Metrics struct {
	RouteDecisions       *prometheus.CounterVec
	EntitlementChecks    *prometheus.CounterVec
	PaywallShown         *prometheus.CounterVec
	ProfileFetchFailures prometheus.Counter
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RouteDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "route_decisions_total",
			Help: "Route gate decisions by outcome.",
		}, []string{"kind"}),
		EntitlementChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "entitlement_checks_total",
			Help: "Entitlement computations by resulting state.",
		}, []string{"result"}),
		PaywallShown: f.NewCounterVec(prometheus.CounterOpts{
			Name: "paywall_shown_total",
			Help: "Times the paywall flag was raised.",
		}, []string{"reason"}),
		ProfileFetchFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "profile_fetch_failures_total",
			Help: "Profile store fetches that failed.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests received.",
		}, []string{"method", "path", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "code"}),
	}
}

func (m *Metrics) ObserveDecision(d access.Decision) {
	if m == nil {
		return
	}
	m.RouteDecisions.WithLabelValues(d.Kind.String()).Inc()
}

func (m *Metrics) ObserveCheck(st access.SubscriptionStatus) {
	if m == nil {
		return
	}
	m.EntitlementChecks.WithLabelValues(checkResult(st)).Inc()
}

func (m *Metrics) ObservePaywall(reason string) {
	if m == nil {
		return
	}
	m.PaywallShown.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveFetchFailure() {
	if m == nil {
		return
	}
	m.ProfileFetchFailures.Inc()
}

// GinMiddleware records request count and latency labelled by route pattern.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		code := strconv.Itoa(c.Writer.Status())
		m.HTTPRequests.WithLabelValues(c.Request.Method, path, code).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, path, code).Observe(time.Since(start).Seconds())
	}
}

func checkResult(st access.SubscriptionStatus) string {
	switch {
	case st.IsSubscribed:
		return "subscribed"
	case st.IsTrialActive:
		return "trial"
	default:
		return "expired"
	}
}
