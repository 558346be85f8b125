package metrics

import "time"

// NoopMetrics discards everything; used when metrics are disabled.
type NoopMetrics struct{}

var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordAuthorizationRequest(result string)               {}
func (n *NoopMetrics) RecordGrant(result string, duration time.Duration)      {}
func (n *NoopMetrics) RecordConsentRevoked(changed bool)                      {}
func (n *NoopMetrics) RecordAuthorizationCancelled()                          {}
func (n *NoopMetrics) RecordAuthorizationRequestsExpired(count int64)         {}
func (n *NoopMetrics) RecordTokenIssued(success bool, duration time.Duration) {}
func (n *NoopMetrics) RecordTokenIntrospection(active bool)                   {}
func (n *NoopMetrics) SetPendingAuthorizationRequests(count int64)            {}
func (n *NoopMetrics) SetActiveConsents(count int64)                          {}
func (n *NoopMetrics) RecordDatabaseQueryError(operation string)              {}
