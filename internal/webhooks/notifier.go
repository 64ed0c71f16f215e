package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/krealm/internal/metrics"
	"github.com/khanghh/krealm/params"
	"github.com/valyala/bytebufferpool"
	"golang.org/x/time/rate"
)

type NotifierOptions struct {
	Workers         int
	QueueSize       int
	RequestTimeout  time.Duration
	MaxRetries      int
	InitialInterval time.Duration
	RateLimit       float64 // deliveries per second across all endpoints, zero for unlimited
	RateBurst       int
}

type event struct {
	realmID string
	payload Payload
}

// Notifier delivers webhook events in the background. Events are queued
// without blocking the caller and dropped when the queue is full.
type Notifier struct {
	opts      NotifierOptions
	repo      WebhookRepository
	metrics   metrics.Recorder
	limiter   *rate.Limiter
	queue     chan event
	wg        sync.WaitGroup
	cancel    context.CancelFunc
	now       func() time.Time
	startOnce sync.Once
	stopOnce  sync.Once
}

// Notify queues an event for every webhook of the realm subscribed to trigger.
func (n *Notifier) Notify(ctx context.Context, realmID string, trigger Trigger, resourceID string, data any) {
	ev := event{
		realmID: realmID,
		payload: Payload{
			Event:      trigger,
			Timestamp:  n.now().UTC(),
			ResourceID: resourceID,
			Data:       data,
		},
	}
	select {
	case n.queue <- ev:
	default:
		n.metrics.RecordWebhookDropped(string(trigger))
		slog.Warn("Webhook queue full, dropping event", "realm_id", realmID, "event", trigger, "resource_id", resourceID)
	}
}

func (n *Notifier) Start(ctx context.Context) {
	n.startOnce.Do(func() {
		ctx, n.cancel = context.WithCancel(ctx)
		for i := 0; i < n.opts.Workers; i++ {
			n.wg.Add(1)
			go n.worker(ctx)
		}
	})
}

// Stop cancels in-flight deliveries and waits for the workers to exit.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() {
		if n.cancel != nil {
			n.cancel()
		}
		n.wg.Wait()
	})
}

func (n *Notifier) worker(ctx context.Context) {
	defer n.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-n.queue:
			n.dispatch(ctx, ev)
		}
	}
}

func (n *Notifier) dispatch(ctx context.Context, ev event) {
	webhooks, err := n.repo.ListByRealm(ctx, ev.realmID)
	if err != nil {
		slog.Error("Failed to load webhooks", "realm_id", ev.realmID, "error", err)
		return
	}
	var body []byte
	for _, webhook := range webhooks {
		if !subscribed(webhook, ev.payload.Event) {
			continue
		}
		if body == nil {
			if body, err = encodePayload(ev.payload); err != nil {
				slog.Error("Failed to encode webhook payload", "event", ev.payload.Event, "error", err)
				return
			}
		}
		start := time.Now()
		err := n.deliver(ctx, webhook.Endpoint, ev.payload.Event, body)
		n.metrics.RecordWebhookDelivery(string(ev.payload.Event), err == nil, time.Since(start))
		if err != nil {
			slog.Warn("Webhook delivery failed", "webhook_id", webhook.ID, "endpoint", webhook.Endpoint, "event", ev.payload.Event, "error", err)
		}
	}
}

func encodePayload(payload Payload) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return nil, err
	}
	body := make([]byte, buf.Len())
	copy(body, buf.B)
	return body, nil
}

func (n *Notifier) deliver(ctx context.Context, endpoint string, trigger Trigger, body []byte) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = n.opts.InitialInterval
	expBackoff.MaxInterval = 30 * n.opts.InitialInterval

	operation := func() (int, error) {
		if err := n.limiter.Wait(ctx); err != nil {
			return 0, backoff.Permanent(err)
		}
		code, _, errs := fiber.Post(endpoint).
			Timeout(n.opts.RequestTimeout).
			ContentType(fiber.MIMEApplicationJSON).
			Set("X-Webhook-Event", string(trigger)).
			Body(body).
			Bytes()
		if len(errs) > 0 {
			return 0, errors.Join(errs...)
		}
		switch {
		case code >= 200 && code < 300:
			return code, nil
		case code == fiber.StatusTooManyRequests || code >= 500:
			return code, fmt.Errorf("endpoint responded %d", code)
		default:
			return code, backoff.Permanent(fmt.Errorf("endpoint responded %d", code))
		}
	}
	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(uint(n.opts.MaxRetries+1)),
	)
	return err
}

func NewNotifier(opts NotifierOptions, repo WebhookRepository, recorder metrics.Recorder) *Notifier {
	if opts.Workers <= 0 {
		opts.Workers = params.WebhookWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = params.WebhookQueueSize
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = params.WebhookRequestTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = params.WebhookMaxRetries
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 1
	}
	if recorder == nil {
		recorder = metrics.NewNoopMetrics()
	}
	return &Notifier{
		opts:    opts,
		repo:    repo,
		metrics: recorder,
		limiter: rate.NewLimiter(limit, opts.RateBurst),
		queue:   make(chan event, opts.QueueSize),
		now:     time.Now,
	}
}
