package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus collectors of the server
type Metrics struct {
	TokensIssuedTotal       *prometheus.CounterVec
	TokenGenerationDuration *prometheus.HistogramVec
	GrantFailuresTotal      *prometheus.CounterVec
	TokensRevokedTotal      *prometheus.CounterVec

	AuthAttemptsTotal   *prometheus.CounterVec
	AuthAttemptDuration *prometheus.HistogramVec

	WebhookDeliveriesTotal  *prometheus.CounterVec
	WebhookDeliveryDuration prometheus.Histogram
	WebhookDroppedTotal     *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init returns the Prometheus recorder when enabled, otherwise a no-op one.
// Collectors are registered once per process.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}
	once.Do(func() {
		defaultMetrics = newMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TokensIssuedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krealm_tokens_issued_total",
				Help: "Total number of token responses issued",
			},
			[]string{"grant_type"},
		),
		TokenGenerationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "krealm_token_generation_duration_seconds",
				Help:    "Time taken to execute a grant and issue tokens",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"grant_type"},
		),
		GrantFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krealm_grant_failures_total",
				Help: "Total number of rejected token requests",
			},
			[]string{"grant_type", "reason"},
		),
		TokensRevokedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krealm_tokens_revoked_total",
				Help: "Total number of revoked refresh tokens",
			},
			[]string{"reason"}, // logout, rotation, user_deleted
		),
		AuthAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krealm_auth_attempts_total",
				Help: "Total number of interactive authentication attempts",
			},
			[]string{"method", "result"},
		),
		AuthAttemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "krealm_auth_attempt_duration_seconds",
				Help:    "Time taken by an authentication attempt",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		WebhookDeliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krealm_webhook_deliveries_total",
				Help: "Total number of webhook deliveries",
			},
			[]string{"trigger", "result"},
		),
		WebhookDeliveryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "krealm_webhook_delivery_duration_seconds",
				Help:    "Time taken to deliver a webhook including retries",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		WebhookDroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krealm_webhook_dropped_total",
				Help: "Total number of webhook events dropped because the queue was full",
			},
			[]string{"trigger"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "krealm_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "krealm_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func (m *Metrics) RecordTokenIssued(grantType string, duration time.Duration) {
	m.TokensIssuedTotal.WithLabelValues(grantType).Inc()
	m.TokenGenerationDuration.WithLabelValues(grantType).Observe(duration.Seconds())
}

func (m *Metrics) RecordGrantFailure(grantType, reason string) {
	m.GrantFailuresTotal.WithLabelValues(grantType, reason).Inc()
}

func (m *Metrics) RecordTokenRevoked(reason string) {
	m.TokensRevokedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordAuthAttempt(method string, success bool, duration time.Duration) {
	m.AuthAttemptsTotal.WithLabelValues(method, result(success)).Inc()
	m.AuthAttemptDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *Metrics) RecordWebhookDelivery(trigger string, success bool, duration time.Duration) {
	m.WebhookDeliveriesTotal.WithLabelValues(trigger, result(success)).Inc()
	m.WebhookDeliveryDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordWebhookDropped(trigger string) {
	m.WebhookDroppedTotal.WithLabelValues(trigger).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
