package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrRecorderStopped = errors.New("audit: recorder stopped")

// Entry is one change made by a staff member. Before and After hold JSON
// snapshots; empty means the entity did not exist on that side.
type Entry struct {
	ID         string
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	BeforeJSON string
	AfterJSON  string
	RequestID  string
	At         time.Time
}

// Sink persists entries.
type Sink interface {
	Write(ctx context.Context, entry Entry) error
}

// Logger is what services call. It never fails the caller.
type Logger interface {
	LogChange(ctx context.Context, actorID, entityType, entityID, action string, before, after any)
}

// MultiSink writes to every sink and joins the failures.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, entry Entry) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Write(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes entries to slog; used when no store is configured.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Write(_ context.Context, e Entry) error {
	if s.Logger == nil {
		return nil
	}
	s.Logger.Info("audit",
		"actor_id", e.ActorID,
		"action", e.Action,
		"entity_type", e.EntityType,
		"entity_id", e.EntityID,
		"request_id", e.RequestID,
	)
	return nil
}

type Options struct {
	Buffer    int
	Logger    *slog.Logger
	Now       func() time.Time
	RequestID func(ctx context.Context) string
	// WriteTimeout bounds one sink write.
	WriteTimeout time.Duration
}

// Recorder queues entries and writes them from a single background goroutine
// so auditing never slows down or fails a calendar write.
type Recorder struct {
	sink    Sink
	opts    Options
	queue   chan Entry
	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
	startMu sync.Once
}

func NewRecorder(sink Sink, opts Options) *Recorder {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	return &Recorder{
		sink:  sink,
		opts:  opts,
		queue: make(chan Entry, opts.Buffer),
		done:  make(chan struct{}),
	}
}

// LogChange snapshots before/after and enqueues the entry. A full queue drops
// the entry with a warning.
func (r *Recorder) LogChange(ctx context.Context, actorID, entityType, entityID, action string, before, after any) {
	entry := Entry{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		BeforeJSON: snapshot(before),
		AfterJSON:  snapshot(after),
		At:         r.opts.Now().UTC(),
	}
	if r.opts.RequestID != nil && ctx != nil {
		entry.RequestID = r.opts.RequestID(ctx)
	}
	if err := r.enqueue(entry); err != nil {
		r.warn("audit entry dropped", entry, err)
	}
}

func (r *Recorder) enqueue(entry Entry) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return ErrRecorderStopped
	}
	select {
	case r.queue <- entry:
		return nil
	default:
		return errors.New("audit: queue full")
	}
}

// Start launches the writer goroutine. Calling it twice is a no-op.
func (r *Recorder) Start() {
	r.startMu.Do(func() {
		go r.run()
	})
}

func (r *Recorder) run() {
	defer close(r.done)
	for entry := range r.queue {
		r.write(entry)
	}
}

func (r *Recorder) write(entry Entry) {
	if r.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.WriteTimeout)
	defer cancel()
	if err := r.sink.Write(ctx, entry); err != nil {
		r.warn("audit write failed", entry, err)
	}
}

// Stop refuses new entries and waits for the queue to drain or ctx to end.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.queue)
	r.mu.Unlock()

	r.Start()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) warn(msg string, entry Entry, err error) {
	if r.opts.Logger == nil {
		return
	}
	r.opts.Logger.Warn(msg, "entity_type", entry.EntityType, "entity_id", entry.EntityID, "action", entry.Action, "error", err)
}

func snapshot(v any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	if string(data) == "null" {
		return ""
	}
	return string(data)
}
