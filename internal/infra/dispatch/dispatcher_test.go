package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"rentdesk/internal/app/policies"
)

type recordingPublisher struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
	err     error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	p.topic, p.key, p.payload, p.headers = topic, key, payload, headers
	return p.err
}

func TestKafkaDispatcherPublishesUpdate(t *testing.T) {
	pub := &recordingPublisher{}
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	d := &KafkaDispatcher{Publisher: pub, Topic: "rentdesk.channel.updates", Now: func() time.Time { return now }}

	err := d.PushUpdate(context.Background(), policies.Update{
		UnitID:  "u-1",
		Type:    policies.UpdateBookingCreate,
		Payload: map[string]string{"booking_id": "b-1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if pub.topic != "rentdesk.channel.updates" || pub.key != "u-1" {
		t.Fatalf("unexpected topic/key %q %q", pub.topic, pub.key)
	}
	if pub.headers["update-type"] != policies.UpdateBookingCreate {
		t.Fatalf("unexpected headers %v", pub.headers)
	}
	var msg struct {
		ID      string            `json:"id"`
		UnitID  string            `json:"unit_id"`
		Type    string            `json:"type"`
		At      time.Time         `json:"at"`
		Payload map[string]string `json:"payload"`
	}
	if err := json.Unmarshal(pub.payload, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.ID == "" || msg.UnitID != "u-1" || !msg.At.Equal(now) || msg.Payload["booking_id"] != "b-1" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestKafkaDispatcherWrapsPublishError(t *testing.T) {
	boom := errors.New("broker down")
	d := &KafkaDispatcher{Publisher: &recordingPublisher{err: boom}}
	err := d.PushUpdate(context.Background(), policies.Update{UnitID: "u-1", Type: policies.UpdateBlockDelete})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
}

func TestKafkaDispatcherRequiresPublisher(t *testing.T) {
	d := &KafkaDispatcher{}
	if err := d.PushUpdate(context.Background(), policies.Update{}); !errors.Is(err, ErrPublisherRequired) {
		t.Fatalf("expected ErrPublisherRequired, got %v", err)
	}
}

func TestLogDispatcherLogs(t *testing.T) {
	var buf bytes.Buffer
	d := LogDispatcher{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	if err := d.PushUpdate(context.Background(), policies.Update{UnitID: "u-9", Type: policies.UpdateBookingCancel}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "unit_id=u-9") {
		t.Fatalf("expected unit in log line, got %q", buf.String())
	}
}
