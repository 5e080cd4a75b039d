package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memorySink struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (s *memorySink) Write(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *memorySink) all() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

type reqKey struct{}

func TestRecorderWritesSnapshots(t *testing.T) {
	sink := &memorySink{}
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rec := NewRecorder(sink, Options{
		Buffer: 4,
		Now:    func() time.Time { return fixed },
		RequestID: func(ctx context.Context) string {
			id, _ := ctx.Value(reqKey{}).(string)
			return id
		},
	})
	rec.Start()

	ctx := context.WithValue(context.Background(), reqKey{}, "req-1")
	rec.LogChange(ctx, "staff-7", "booking", "b-1", "cancel",
		map[string]string{"status": "CONFIRMED"}, map[string]string{"status": "CANCELLED"})

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rec.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	got := sink.all()
	if len(got) != 1 {
		t.Fatalf("entries = %d", len(got))
	}
	e := got[0]
	if e.ActorID != "staff-7" || e.RequestID != "req-1" || !e.At.Equal(fixed) {
		t.Fatalf("entry = %+v", e)
	}
	if e.BeforeJSON != `{"status":"CONFIRMED"}` || e.AfterJSON != `{"status":"CANCELLED"}` {
		t.Fatalf("snapshots = %s / %s", e.BeforeJSON, e.AfterJSON)
	}
}

func TestRecorderCreateHasNoBefore(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink, Options{})
	rec.Start()
	rec.LogChange(context.Background(), "a", "block", "k-1", "create", nil, map[string]int{"n": 1})
	_ = rec.Stop(context.Background())
	if got := sink.all(); len(got) != 1 || got[0].BeforeJSON != "" {
		t.Fatalf("entries = %+v", got)
	}
}

func TestRecorderSwallowsSinkErrors(t *testing.T) {
	sink := &memorySink{err: errors.New("store down")}
	rec := NewRecorder(sink, Options{})
	rec.Start()
	rec.LogChange(context.Background(), "a", "booking", "b", "create", nil, nil)
	if err := rec.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestRecorderDropsAfterStop(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink, Options{})
	rec.Start()
	_ = rec.Stop(context.Background())
	rec.LogChange(context.Background(), "a", "booking", "b", "create", nil, nil)
	if len(sink.all()) != 0 {
		t.Fatal("entry written after stop")
	}
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	ok := &memorySink{}
	bad := &memorySink{err: errors.New("nope")}
	err := MultiSink{ok, bad}.Write(context.Background(), Entry{ID: "1"})
	if err == nil || len(ok.all()) != 1 {
		t.Fatalf("err = %v, written = %d", err, len(ok.all()))
	}
}
