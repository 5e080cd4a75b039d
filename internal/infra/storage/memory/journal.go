package memory

import (
	"context"
	"sync"
)

// journal buffers the writes of one unit of work. Nothing reaches the shared
// tables before commit, so other units never read uncommitted data.
type journal struct {
	mu       sync.Mutex
	overlays map[any]any
	ops      []op
}

// op is one pending write. check runs for every op before any apply.
type op struct {
	check func() error
	apply func()
}

func (j *journal) stage(o op) {
	j.mu.Lock()
	j.ops = append(j.ops, o)
	j.mu.Unlock()
}

// commit validates and applies the staged writes while holding commitMu.
func (j *journal) commit(commitMu *sync.Mutex) error {
	j.mu.Lock()
	ops := j.ops
	j.ops = nil
	j.mu.Unlock()
	defer j.reset()

	commitMu.Lock()
	defer commitMu.Unlock()
	for _, o := range ops {
		if o.check == nil {
			continue
		}
		if err := o.check(); err != nil {
			return err
		}
	}
	for _, o := range ops {
		o.apply()
	}
	return nil
}

func (j *journal) reset() {
	j.mu.Lock()
	j.ops = nil
	j.overlays = nil
	j.mu.Unlock()
}

type journalKey struct{}

func withJournal(ctx context.Context, j *journal) context.Context {
	return context.WithValue(ctx, journalKey{}, j)
}

func journalFrom(ctx context.Context) *journal {
	if ctx == nil {
		return nil
	}
	j, _ := ctx.Value(journalKey{}).(*journal)
	return j
}

// table is a keyed store whose writes go through the journal bound to ctx.
// Writes made without a journal are final immediately.
type table[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
	// version reports the optimistic version; nil means last writer wins.
	version func(V) int64
}

func newTable[K comparable, V any](version func(V) int64) *table[K, V] {
	return &table[K, V]{items: make(map[K]V), version: version}
}

type staged[V any] struct {
	value   V
	deleted bool
}

// overlay returns the staged entries of t in j; callers hold j.mu.
func overlay[K comparable, V any](j *journal, t *table[K, V]) map[K]*staged[V] {
	if j.overlays == nil {
		j.overlays = make(map[any]any)
	}
	ov, ok := j.overlays[t].(map[K]*staged[V])
	if !ok {
		ov = make(map[K]*staged[V])
		j.overlays[t] = ov
	}
	return ov
}

func (t *table[K, V]) get(ctx context.Context, id K) (V, bool) {
	if j := journalFrom(ctx); j != nil {
		j.mu.Lock()
		e, ok := overlay(j, t)[id]
		j.mu.Unlock()
		if ok {
			if e.deleted {
				var zero V
				return zero, false
			}
			return e.value, true
		}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.items[id]
	return v, ok
}

func (t *table[K, V]) put(ctx context.Context, id K, v V) {
	t.write(ctx, id, staged[V]{value: v})
}

func (t *table[K, V]) remove(ctx context.Context, id K) {
	t.write(ctx, id, staged[V]{deleted: true})
}

func (t *table[K, V]) write(ctx context.Context, id K, s staged[V]) {
	j := journalFrom(ctx)
	if j == nil {
		t.mu.Lock()
		t.set(id, s)
		t.mu.Unlock()
		return
	}
	j.mu.Lock()
	ov := overlay(j, t)
	_, touched := ov[id]
	ov[id] = &s
	j.mu.Unlock()
	if touched {
		return
	}

	t.mu.RLock()
	base, existed := t.items[id]
	t.mu.RUnlock()
	j.stage(op{
		check: func() error {
			if t.version == nil {
				return nil
			}
			t.mu.RLock()
			defer t.mu.RUnlock()
			cur, ok := t.items[id]
			if ok != existed || (ok && t.version(cur) != t.version(base)) {
				return ErrConcurrentUpdate
			}
			return nil
		},
		apply: func() {
			j.mu.Lock()
			final := *overlay(j, t)[id]
			j.mu.Unlock()
			t.mu.Lock()
			t.set(id, final)
			t.mu.Unlock()
		},
	})
}

// set applies s; callers hold t.mu.
func (t *table[K, V]) set(id K, s staged[V]) {
	if s.deleted {
		delete(t.items, id)
		return
	}
	t.items[id] = s.value
}

// list returns the committed values merged with what ctx's unit staged.
func (t *table[K, V]) list(ctx context.Context, keep func(V) bool) []V {
	t.mu.RLock()
	merged := make(map[K]V, len(t.items))
	for k, v := range t.items {
		merged[k] = v
	}
	t.mu.RUnlock()
	if j := journalFrom(ctx); j != nil {
		j.mu.Lock()
		for k, e := range overlay(j, t) {
			if e.deleted {
				delete(merged, k)
			} else {
				merged[k] = e.value
			}
		}
		j.mu.Unlock()
	}
	out := make([]V, 0, len(merged))
	for _, v := range merged {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}
