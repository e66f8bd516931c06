package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hris-discipline-api/internal/messaging"
	"github.com/noah-isme/hris-discipline-api/internal/models"
	"github.com/noah-isme/hris-discipline-api/pkg/jobs"
)

const notificationJobType = "discipline.notification"

type outboxStore interface {
	ListPending(ctx context.Context, limit int) ([]models.NotificationEvent, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

// NotificationDispatcher hands committed outbox events to a bounded worker
// queue. Notify never blocks: when the queue is saturated the event stays
// pending in the outbox and the relay picks it up.
type NotificationDispatcher struct {
	queue   *jobs.Queue
	sink    messaging.Sink
	store   outboxStore
	metrics *MetricsService
	logger  *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewNotificationDispatcher wires the queue handler and give-up hook.
func NewNotificationDispatcher(sink messaging.Sink, store outboxStore, metrics *MetricsService, cfg jobs.QueueConfig, logger *zap.Logger) *NotificationDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &NotificationDispatcher{
		sink:     sink,
		store:    store,
		metrics:  metrics,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
	cfg.Logger = logger
	cfg.OnGiveUp = d.giveUp
	d.queue = jobs.NewQueue("notifications", d.deliver, cfg)
	return d
}

// Start launches the delivery workers.
func (d *NotificationDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop waits for workers to exit. Buffered events remain pending in the outbox.
func (d *NotificationDispatcher) Stop() {
	d.queue.Stop()
}

// Notify implements EventNotifier.
func (d *NotificationDispatcher) Notify(_ context.Context, events ...models.NotificationEvent) {
	for _, event := range events {
		if err := d.enqueue(event); err != nil {
			d.metrics.RecordNotification(event.EventType, "deferred")
			d.logger.Warn("notification deferred to relay",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.EventType)),
				zap.Error(err),
			)
		}
	}
}

// enqueue skips events already in flight so the relay and the post-commit hand-off
// do not race on the same row within one process.
func (d *NotificationDispatcher) enqueue(event models.NotificationEvent) error {
	d.mu.Lock()
	if _, ok := d.inFlight[event.ID]; ok {
		d.mu.Unlock()
		return nil
	}
	d.inFlight[event.ID] = struct{}{}
	d.mu.Unlock()

	err := d.queue.TryEnqueue(jobs.Job{ID: event.ID, Type: notificationJobType, Payload: event})
	if err != nil {
		d.release(event.ID)
	}
	return err
}

func (d *NotificationDispatcher) release(id string) {
	d.mu.Lock()
	delete(d.inFlight, id)
	d.mu.Unlock()
}

func (d *NotificationDispatcher) deliver(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.NotificationEvent)
	if !ok {
		d.release(job.ID)
		d.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := d.sink.Publish(ctx, event); err != nil {
		d.metrics.RecordNotification(event.EventType, "retry")
		return fmt.Errorf("publish %s: %w", event.ID, err)
	}
	d.release(event.ID)
	d.metrics.RecordNotification(event.EventType, "sent")
	if d.store != nil {
		if err := d.store.MarkSent(ctx, event.ID); err != nil {
			d.logger.Warn("mark notification sent failed", zap.String("event_id", event.ID), zap.Error(err))
		}
	}
	return nil
}

func (d *NotificationDispatcher) giveUp(job jobs.Job, cause error) {
	d.release(job.ID)
	event, _ := job.Payload.(models.NotificationEvent)
	d.metrics.RecordNotification(event.EventType, "failed")
	if d.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.store.MarkFailed(ctx, job.ID, cause.Error()); err != nil {
		d.logger.Error("mark notification failed", zap.String("event_id", job.ID), zap.Error(err))
	}
}

// ErrRelayWithoutDispatcher is returned by a relay that has nowhere to hand rows.
var ErrRelayWithoutDispatcher = errors.New("notification relay has no dispatcher")

// NotificationRelay periodically re-delivers pending and failed outbox rows.
type NotificationRelay struct {
	store      outboxStore
	dispatcher *NotificationDispatcher
	interval   time.Duration
	batch      int
	logger     *zap.Logger
}

// NewNotificationRelay constructs a relay.
func NewNotificationRelay(store outboxStore, dispatcher *NotificationDispatcher, interval time.Duration, batch int, logger *zap.Logger) *NotificationRelay {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationRelay{store: store, dispatcher: dispatcher, interval: interval, batch: batch, logger: logger.Named("notification.relay")}
}

// Run polls until ctx is cancelled.
func (r *NotificationRelay) Run(ctx context.Context) error {
	if r.dispatcher == nil {
		return ErrRelayWithoutDispatcher
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.logger.Info("relay started", zap.Duration("interval", r.interval))
	for {
		if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("relay pass failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce hands one batch of pending rows to the dispatcher and returns how many
// were queued. It stops early when the queue is full.
func (r *NotificationRelay) RunOnce(ctx context.Context) (int, error) {
	if r.dispatcher == nil {
		return 0, ErrRelayWithoutDispatcher
	}
	events, err := r.store.ListPending(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	r.dispatcher.metrics.SetOutboxBacklog(len(events))
	queued := 0
	for _, event := range events {
		if err := r.dispatcher.enqueue(event); err != nil {
			if errors.Is(err, jobs.ErrQueueFull) {
				r.logger.Debug("queue full, relay pass cut short", zap.Int("queued", queued))
				break
			}
			return queued, err
		}
		queued++
	}
	if queued > 0 {
		r.logger.Info("relayed pending notifications", zap.Int("count", queued))
	}
	return queued, nil
}
