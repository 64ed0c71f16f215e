package metrics

import "time"

// NoopMetrics is used when metrics are disabled
type NoopMetrics struct{}

var _ Recorder = (*NoopMetrics)(nil)

func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordTokenIssued(grantType string, duration time.Duration) {}

func (n *NoopMetrics) RecordGrantFailure(grantType, reason string) {}

func (n *NoopMetrics) RecordTokenRevoked(reason string) {}

func (n *NoopMetrics) RecordAuthAttempt(method string, success bool, duration time.Duration) {}

func (n *NoopMetrics) RecordWebhookDelivery(trigger string, success bool, duration time.Duration) {}

func (n *NoopMetrics) RecordWebhookDropped(trigger string) {}

func (n *NoopMetrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {}
