package notification

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"perfdash-backend/internal/logger"
	"perfdash-backend/internal/metrics"
	"perfdash-backend/internal/model"
	"perfdash-backend/internal/store"
)

// Notice is the payload pushed to subscribed browsers. It carries the same
// title and description the dashboard shows as a toast.
type Notice struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag,omitempty"`
}

// Notifier accepts notices for asynchronous delivery.
type Notifier interface {
	Notify(n Notice)
}

// Nop discards every notice. Used when push is not configured.
type Nop struct{}

func (Nop) Notify(Notice) {}

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers broadcasting notices to every
// subscription.
type WorkerPool struct {
	size    int
	jobs    chan Notice
	subs    store.SubscriptionStore
	webpush *webpush.Options
	sender  NotificationSender
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, subs store.SubscriptionStore, webpushOptions *webpush.Options, log *logger.Logger, m *metrics.Metrics) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Notice, size*16),
		subs:    subs,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log,
		metrics: m,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("notification worker started", "worker", id)
	for {
		select {
		case n := <-wp.jobs:
			wp.broadcast(ctx, n)
		case <-ctx.Done():
			wp.log.Debug("notification worker shutting down", "worker", id)
			return
		}
	}
}

// Notify queues a notice. When the queue is full the notice is dropped so
// that job completion never blocks on push delivery.
func (wp *WorkerPool) Notify(n Notice) {
	select {
	case wp.jobs <- n:
	default:
		wp.log.Warn("notification queue full, dropping notice", "title", n.Title)
		wp.metrics.NotificationSent("dropped")
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Notice {
	return wp.jobs
}

func (wp *WorkerPool) broadcast(ctx context.Context, n Notice) {
	subscriptions, err := wp.subs.ListSubscriptions(ctx)
	if err != nil {
		wp.log.Error("failed to list subscriptions", "error", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(n)
	if err != nil {
		wp.log.Error("failed to encode notice", "error", err)
		return
	}

	wp.log.Info("sending notifications", "count", len(subscriptions), "title", n.Title)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warn("error sending notification", "endpoint", sub.Endpoint, "error", err)
		wp.metrics.NotificationSent("error")
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.log.Info("subscription expired, deleting", "endpoint", sub.Endpoint)
		wp.metrics.NotificationSent("expired")
		if err := wp.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.Error("failed to delete expired subscription", "endpoint", sub.Endpoint, "error", err)
		}
		return
	}
	wp.metrics.NotificationSent("delivered")
}
