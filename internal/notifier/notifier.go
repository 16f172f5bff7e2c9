// Package notifier delivers best-effort decision notifications to an
// external notification service. Delivery failures are logged and
// counted; they never roll back a committed state transition.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MAZGOURA/attestation-api/internal/models"
	"github.com/MAZGOURA/attestation-api/pkg/jobs"
)

// Event describes a decided request.
type Event struct {
	RequestID       string                   `json:"request_id"`
	Status          models.AttestationStatus `json:"status"`
	RejectionReason *string                  `json:"rejection_reason,omitempty"`
	Contact         string                   `json:"contact"`
}

// Notifier dispatches decision events.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Noop discards every event. Used when notifications are disabled.
type Noop struct{}

// Notify implements Notifier.
func (Noop) Notify(context.Context, Event) error { return nil }

// Webhook posts events as JSON to the configured notification endpoint.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook constructs a webhook notifier.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{url: url, client: &http.Client{Timeout: timeout}}
}

// Notify implements Notifier.
func (w *Webhook) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Queued decouples notification delivery from the request path using the
// in-memory job queue. Notify only enqueues; workers deliver with
// retries and drop after the retry budget.
type Queued struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// QueuedConfig tunes the dispatch workers.
type QueuedConfig struct {
	Workers    int
	MaxRetries int
	Logger     *zap.Logger
	OnDrop     func(Event, error)
}

// NewQueued wraps a sink notifier with asynchronous delivery.
func NewQueued(sink Notifier, cfg QueuedConfig) *Queued {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(Event)
		if !ok {
			logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
			return nil
		}
		return sink.Notify(ctx, event)
	}

	queue := jobs.NewQueue("notifications", handler, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	if cfg.OnDrop != nil {
		onDrop := cfg.OnDrop
		queue.OnDrop(func(job jobs.Job, err error) {
			if event, ok := job.Payload.(Event); ok {
				onDrop(event, err)
			}
		})
	}

	return &Queued{queue: queue, logger: logger}
}

// Start launches the dispatch workers.
func (q *Queued) Start(ctx context.Context) {
	q.queue.Start(ctx)
}

// Stop drains the workers.
func (q *Queued) Stop() {
	q.queue.Stop()
}

// Notify implements Notifier by enqueueing the event.
func (q *Queued) Notify(_ context.Context, event Event) error {
	return q.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "decision",
		Payload: event,
	})
}
