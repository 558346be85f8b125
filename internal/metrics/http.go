package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	resultSuccess = "success"
	resultError   = "error"
)

// HTTPMetricsMiddleware records request count, latency and in-flight
// requests per route pattern.
func HTTPMetricsMiddleware(m Recorder) gin.HandlerFunc {
	metrics, ok := m.(*Metrics)
	if !ok {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		// Skip metrics endpoint to avoid self-recording
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		c.Next()

		path := normalizePath(c.FullPath())
		metrics.HTTPRequestsTotal.
			WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Inc()
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, path).
			Observe(time.Since(start).Seconds())
	}
}

// normalizePath keeps label cardinality bounded: unmatched routes collapse
// into one series.
func normalizePath(fullPath string) string {
	if fullPath == "" {
		return "unknown"
	}
	return fullPath
}

func (m *Metrics) RecordAuthorizationRequest(result string) {
	m.AuthorizationRequestsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordGrant(result string, duration time.Duration) {
	m.GrantsTotal.WithLabelValues(result).Inc()
	m.GrantDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordConsentRevoked(changed bool) {
	m.ConsentsRevokedTotal.WithLabelValues(strconv.FormatBool(changed)).Inc()
	if changed {
		m.ConsentsActive.Dec()
	}
}

func (m *Metrics) RecordAuthorizationCancelled() {
	m.AuthorizationCancelledTotal.Inc()
}

func (m *Metrics) RecordAuthorizationRequestsExpired(count int64) {
	m.AuthorizationRequestsExpiredTotal.Add(float64(count))
}

func (m *Metrics) RecordTokenIssued(success bool, duration time.Duration) {
	result := resultSuccess
	if !success {
		result = resultError
	}
	m.TokensIssuedTotal.WithLabelValues(result).Inc()
	m.TokenIssuanceDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordTokenIntrospection(active bool) {
	m.TokenIntrospectionsTotal.WithLabelValues(strconv.FormatBool(active)).Inc()
}

func (m *Metrics) SetPendingAuthorizationRequests(count int64) {
	m.AuthorizationRequestsPending.Set(float64(count))
}

func (m *Metrics) SetActiveConsents(count int64) {
	m.ConsentsActive.Set(float64(count))
}

// RecordDatabaseQueryError records a database query error during metric collection
func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}
