package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rentdesk/internal/app/policies"
)

var ErrPublisherRequired = errors.New("dispatch: publisher required")

// Publisher is satisfied by the kafka producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

type message struct {
	ID      string    `json:"id"`
	UnitID  string    `json:"unit_id"`
	Type    string    `json:"type"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// KafkaDispatcher pushes channel updates to one topic keyed by unit, so a
// channel manager sees the changes of a unit in order.
type KafkaDispatcher struct {
	Publisher Publisher
	Topic     string
	Timeout   time.Duration
	Now       func() time.Time
}

func (d *KafkaDispatcher) PushUpdate(ctx context.Context, update policies.Update) error {
	if d.Publisher == nil {
		return ErrPublisherRequired
	}
	at := update.At
	if at.IsZero() {
		at = d.now()
	}
	body, err := json.Marshal(message{
		ID:      uuid.NewString(),
		UnitID:  update.UnitID,
		Type:    update.Type,
		At:      at.UTC(),
		Payload: update.Payload,
	})
	if err != nil {
		return fmt.Errorf("dispatch: encode %s: %w", update.Type, err)
	}
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	headers := map[string]string{
		"content-type": "application/json",
		"update-type":  update.Type,
	}
	if err := d.Publisher.Publish(ctx, d.topic(), update.UnitID, body, headers); err != nil {
		return fmt.Errorf("dispatch: publish %s for unit %s: %w", update.Type, update.UnitID, err)
	}
	return nil
}

func (d *KafkaDispatcher) topic() string {
	if d.Topic == "" {
		return "channel.updates"
	}
	return d.Topic
}

func (d *KafkaDispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// LogDispatcher only logs; used when no broker is configured.
type LogDispatcher struct {
	Logger *slog.Logger
}

func (d LogDispatcher) PushUpdate(ctx context.Context, update policies.Update) error {
	if d.Logger != nil {
		d.Logger.InfoContext(ctx, "channel update", "unit_id", update.UnitID, "type", update.Type)
	}
	return nil
}

var (
	_ policies.Dispatcher = (*KafkaDispatcher)(nil)
	_ policies.Dispatcher = LogDispatcher{}
)
