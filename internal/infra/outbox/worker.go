package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Worker relays outbox messages to the broker as CloudEvents. Delivery is at
// least once; consumers dedupe on the event id.
type Worker struct {
	Queue       Queue
	Producer    Producer
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	// BatchSize caps the messages relayed per tick.
	BatchSize int
	Now       func() time.Time
	Logger    *slog.Logger
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Queue == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.drain(ctx); err != nil && ctx.Err() == nil {
				w.warn("outbox relay failed", "error", err)
			}
		}
	}
}

// drain relays due messages until the queue is empty or the batch is done.
func (w *Worker) drain(ctx context.Context) (int, error) {
	sent := 0
	for i := 0; i < w.batchSize(); i++ {
		done, err := w.processOnce(ctx)
		if err != nil {
			return sent, err
		}
		if !done {
			return sent, nil
		}
		sent++
	}
	return sent, nil
}

// processOnce handles one message. It reports false when nothing was due.
func (w *Worker) processOnce(ctx context.Context) (bool, error) {
	msg, err := w.Queue.Claim(ctx, w.ID)
	if err != nil || msg == nil {
		return false, err
	}
	topic := topicFor(w.TopicPrefix, msg.Name)
	payload, headers, err := cloudEvent(msg, w.source())
	if err != nil {
		return true, w.fail(ctx, msg, err)
	}
	if err := w.Producer.Publish(ctx, topic, msg.Aggregate, payload, headers); err != nil {
		return true, w.fail(ctx, msg, err)
	}
	return true, w.Queue.MarkSent(ctx, msg.ID)
}

func (w *Worker) fail(ctx context.Context, msg *Message, cause error) error {
	w.warn("outbox publish failed", "event_id", msg.ID, "event", msg.Name, "attempts", msg.Attempts+1, "error", cause)
	return w.Queue.MarkFailed(ctx, msg.ID, w.nextRetry(msg.Attempts), cause.Error())
}

// cloudEvent wraps the stored payload in a structured CloudEvents envelope.
func cloudEvent(msg *Message, source string) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(msg.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              msg.ID,
		"type":            msg.Name + ".v1",
		"source":          source,
		"subject":         msg.Aggregate,
		"time":            msg.OccurredAt.UTC(),
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := msg.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
	}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

// topicFor maps "booking.created" to "booking.events.v1".
func topicFor(prefix, name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return prefix + base + ".events.v1"
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 100
	}
	return w.BatchSize
}

func (w *Worker) nextRetry(attempts int) time.Time {
	now := time.Now()
	if w.Now != nil {
		now = w.Now()
	}
	if attempts < len(w.Backoff) {
		return now.Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return now.Add(w.Backoff[len(w.Backoff)-1])
	}
	return now.Add(5 * time.Second)
}

func (w *Worker) source() string {
	return sourceOr(w.Source)
}

func sourceOr(source string) string {
	if source != "" {
		return source
	}
	return "app://rentdesk"
}

func (w *Worker) warn(msg string, args ...any) {
	if w.Logger != nil {
		w.Logger.Warn(msg, args...)
	}
}
