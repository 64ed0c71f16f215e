package metrics

import "time"

// Recorder records engine level metrics. Metrics is the Prometheus backed
// implementation and NoopMetrics discards everything.
type Recorder interface {
	// Tokens
	RecordTokenIssued(grantType string, duration time.Duration)
	RecordGrantFailure(grantType, reason string)
	RecordTokenRevoked(reason string)

	// Authentication
	RecordAuthAttempt(method string, success bool, duration time.Duration)

	// Webhooks
	RecordWebhookDelivery(trigger string, success bool, duration time.Duration)
	RecordWebhookDropped(trigger string)

	// HTTP
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}
