package outbox

import (
	"context"
	"log/slog"

	appoutbox "rentdesk/internal/app/outbox"
)

// Relay publishes records flushed by an in-memory outbox straight to the
// broker, with the envelope and topics Worker uses. There is no queue behind
// it, so a failed publish is logged and the record is lost.
type Relay struct {
	Producer    Producer
	TopicPrefix string
	Source      string
	Logger      *slog.Logger
}

// Publish matches the memory outbox OnFlush hook.
func (r *Relay) Publish(ctx context.Context, records []appoutbox.EventRecord) {
	if r.Producer == nil {
		if r.Logger != nil {
			r.Logger.Debug("outbox records discarded, no broker configured", "count", len(records))
		}
		return
	}
	for _, rec := range records {
		msg := &Message{ID: rec.ID, Name: rec.Name, Payload: rec.Payload, OccurredAt: rec.OccurredAt, Aggregate: rec.Aggregate, Headers: rec.Headers}
		payload, headers, err := cloudEvent(msg, sourceOr(r.Source))
		if err == nil {
			err = r.Producer.Publish(ctx, topicFor(r.TopicPrefix, rec.Name), rec.Aggregate, payload, headers)
		}
		if err != nil && r.Logger != nil {
			r.Logger.Warn("outbox relay publish failed", "event_id", rec.ID, "event", rec.Name, "error", err)
		}
	}
}
