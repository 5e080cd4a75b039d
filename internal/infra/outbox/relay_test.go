package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	appoutbox "rentdesk/internal/app/outbox"
	"rentdesk/internal/infra/storage/memory"
)

func record(id, name string) appoutbox.EventRecord {
	return appoutbox.EventRecord{
		ID:         id,
		Name:       name,
		Payload:    []byte(`{"booking_id":"b-1"}`),
		Aggregate:  "b-1",
		OccurredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRelayPublishesFlushedRecords(t *testing.T) {
	p := &fakeProducer{}
	relay := &Relay{Producer: p, TopicPrefix: "rentdesk.", Source: "app://test"}
	box := memory.NewOutbox()
	box.OnFlush = relay.Publish
	ctx := context.Background()

	_ = box.Add(ctx, record("e-1", "booking.confirmed"))
	_ = box.Add(ctx, record("e-2", "calendar.blocked"))
	if err := box.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	if len(p.msgs) != 2 {
		t.Fatalf("published %d records", len(p.msgs))
	}
	if p.msgs[0].topic != "rentdesk.booking.events.v1" || p.msgs[1].topic != "rentdesk.calendar.events.v1" {
		t.Fatalf("unexpected topics %q %q", p.msgs[0].topic, p.msgs[1].topic)
	}
	var evt map[string]any
	if err := json.Unmarshal(p.msgs[0].payload, &evt); err != nil {
		t.Fatal(err)
	}
	if evt["type"] != "booking.confirmed.v1" || evt["source"] != "app://test" {
		t.Fatalf("unexpected envelope %v", evt)
	}
	if len(box.Pending()) != 0 {
		t.Fatal("flushed records still pending")
	}
}

func TestRelayWithoutProducerDiscards(t *testing.T) {
	relay := &Relay{}
	relay.Publish(context.Background(), []appoutbox.EventRecord{record("e-1", "booking.created")})
}

type flakyProducer struct {
	calls int
}

func (p *flakyProducer) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	p.calls++
	if p.calls == 1 {
		return errors.New("broker down")
	}
	return nil
}

func TestRelayContinuesAfterPublishFailure(t *testing.T) {
	p := &flakyProducer{}
	relay := &Relay{Producer: p}
	relay.Publish(context.Background(), []appoutbox.EventRecord{record("e-1", "booking.created"), record("e-2", "booking.cancelled")})
	if p.calls != 2 {
		t.Fatalf("expected both records attempted, got %d", p.calls)
	}
}
