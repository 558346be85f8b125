package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is implemented by the Prometheus-backed Metrics and by NoopMetrics.
type Recorder interface {
	// Authorization requests (result: success or an error code)
	RecordAuthorizationRequest(result string)
	// Consent decisions (result: success or an error code)
	RecordGrant(result string, duration time.Duration)
	RecordConsentRevoked(changed bool)
	RecordAuthorizationCancelled()
	RecordAuthorizationRequestsExpired(count int64)

	// Tokens
	RecordTokenIssued(success bool, duration time.Duration)
	RecordTokenIntrospection(active bool)

	// Gauges refreshed periodically from the database
	SetPendingAuthorizationRequests(count int64)
	SetActiveConsents(count int64)

	RecordDatabaseQueryError(operation string)
}

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Consent flow
	AuthorizationRequestsTotal        *prometheus.CounterVec
	AuthorizationRequestsExpiredTotal prometheus.Counter
	AuthorizationCancelledTotal       prometheus.Counter
	GrantsTotal                       *prometheus.CounterVec
	GrantDuration                     prometheus.Histogram
	ConsentsRevokedTotal              *prometheus.CounterVec
	AuthorizationRequestsPending      prometheus.Gauge
	ConsentsActive                    prometheus.Gauge

	// Tokens
	TokensIssuedTotal        *prometheus.CounterVec
	TokenIssuanceDuration    prometheus.Histogram
	TokenIntrospectionsTotal *prometheus.CounterVec

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Database Query Metrics
	DatabaseQueryErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init returns the Prometheus recorder when enabled and NoopMetrics otherwise.
// Prometheus collectors are registered once per process.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

func initMetrics() *Metrics {
	return &Metrics{
		AuthorizationRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consent_authorization_requests_total",
				Help: "Authorization requests begun, by outcome",
			},
			[]string{"result"}, // success, unknown_client, invalid_scope, invalid_redirect, error
		),
		AuthorizationRequestsExpiredTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "consent_authorization_requests_expired_total",
				Help: "PENDING authorization requests marked EXPIRED by the cleanup job",
			},
		),
		AuthorizationCancelledTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "consent_authorization_cancelled_total",
				Help: "Authorization requests cancelled by the farmer",
			},
		),
		GrantsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consent_grants_total",
				Help: "Consent grant attempts, by outcome",
			},
			[]string{"result"},
		),
		GrantDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "consent_grant_duration_seconds",
				Help:    "Time to validate, consume and record a consent decision",
				Buckets: prometheus.DefBuckets,
			},
		),
		ConsentsRevokedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consent_revocations_total",
				Help: "Consent revocations; changed=false for no-op revokes",
			},
			[]string{"changed"},
		),
		AuthorizationRequestsPending: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "consent_authorization_requests_pending",
				Help: "Current number of unexpired PENDING authorization requests",
			},
		),
		ConsentsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "consent_consents_active",
				Help: "Current number of active consents",
			},
		),

		TokensIssuedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consent_access_tokens_issued_total",
				Help: "Access tokens minted, by result",
			},
			[]string{"result"}, // success, error
		),
		TokenIssuanceDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "consent_access_token_issuance_duration_seconds",
				Help:    "Time taken to sign an access token",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
			},
		),
		TokenIntrospectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consent_token_introspections_total",
				Help: "Token introspections, by whether the token was reported active",
			},
			[]string{"active"},
		),

		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),

		DatabaseQueryErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_query_errors_total",
				Help: "Database query errors seen while collecting gauges",
			},
			[]string{"operation"},
		),
	}
}
