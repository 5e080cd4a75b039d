package memory

import (
	"context"
	"sync"

	appoutbox "rentdesk/internal/app/outbox"
)

// Outbox keeps events in memory until flushed. Flushed records are handed to
// OnFlush when set, otherwise dropped.
type Outbox struct {
	mu      sync.Mutex
	records []appoutbox.EventRecord
	OnFlush func(ctx context.Context, records []appoutbox.EventRecord)
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

// Add queues record. Inside a unit of work it becomes visible on commit.
func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if j := journalFrom(ctx); j != nil {
		j.stage(op{apply: func() { o.append(record) }})
		return nil
	}
	o.append(record)
	return nil
}

func (o *Outbox) append(record appoutbox.EventRecord) {
	o.mu.Lock()
	o.records = append(o.records, record)
	o.mu.Unlock()
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	records := o.records
	o.records = nil
	o.mu.Unlock()
	if o.OnFlush != nil && len(records) > 0 {
		o.OnFlush(ctx, records)
	}
	return nil
}

// Pending returns the records not yet flushed.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]appoutbox.EventRecord(nil), o.records...)
}

var _ appoutbox.Outbox = (*Outbox)(nil)
