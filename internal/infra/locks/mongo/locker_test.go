package mongo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type lease struct {
	token   string
	expires time.Time
}

// leaseStore mimics the filtered upsert on slot_locks: a live lease misses
// the filter and the insert collides on _id.
type leaseStore struct {
	mu      sync.Mutex
	leases  map[string]lease
	failErr error
}

func newLeaseStore() *leaseStore { return &leaseStore{leases: map[string]lease{}} }

func (s *leaseStore) UpdateOne(_ context.Context, filter interface{}, update interface{}, _ ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	f := filter.(bson.M)
	key := f["_id"].(string)
	cutoff := f["expires_at"].(bson.M)["$lte"].(time.Time)
	set := update.(bson.M)["$set"].(bson.M)
	if current, ok := s.leases[key]; ok && current.expires.After(cutoff) {
		return nil, mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key error"}}}
	}
	s.leases[key] = lease{token: set["token"].(string), expires: set["expires_at"].(time.Time)}
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (s *leaseStore) DeleteOne(_ context.Context, filter interface{}, _ ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := filter.(bson.M)
	key := f["_id"].(string)
	if current, ok := s.leases[key]; ok && current.token == f["token"].(string) {
		delete(s.leases, key)
		return &mongo.DeleteResult{DeletedCount: 1}, nil
	}
	return &mongo.DeleteResult{}, nil
}

func (s *leaseStore) token(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leases[key].token
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLocker(store *leaseStore, clock *fakeClock) *Locker {
	return &Locker{col: store, TTL: time.Second, RetryMin: time.Millisecond, RetryMax: 2 * time.Millisecond, Now: clock.Now}
}

func TestTryAcquireLiveLeaseIsHeld(t *testing.T) {
	store := newLeaseStore()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := newTestLocker(store, clock)
	ctx := context.Background()

	ok, err := l.tryAcquire(ctx, "unit:u-1", "a")
	if err != nil || !ok {
		t.Fatalf("first acquire: %v %v", ok, err)
	}
	ok, err = l.tryAcquire(ctx, "unit:u-1", "b")
	if err != nil || ok {
		t.Fatalf("live lease should be held: %v %v", ok, err)
	}
	if store.token("unit:u-1") != "a" {
		t.Fatalf("lease stolen, token = %s", store.token("unit:u-1"))
	}
	if ok, err := l.tryAcquire(ctx, "unit:u-2", "b"); err != nil || !ok {
		t.Fatalf("other key: %v %v", ok, err)
	}
}

func TestTryAcquireTakesOverExpiredLease(t *testing.T) {
	store := newLeaseStore()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := newTestLocker(store, clock)
	ctx := context.Background()

	if ok, _ := l.tryAcquire(ctx, "unit:u-1", "a"); !ok {
		t.Fatal("first acquire failed")
	}
	staleRelease := l.releaser("unit:u-1", "a")
	clock.advance(2 * time.Second)

	ok, err := l.tryAcquire(ctx, "unit:u-1", "b")
	if err != nil || !ok {
		t.Fatalf("expired lease should be taken over: %v %v", ok, err)
	}
	staleRelease()
	if store.token("unit:u-1") != "b" {
		t.Fatal("stale holder released the new lease")
	}
}

func TestLockWaitsUntilDeadline(t *testing.T) {
	store := newLeaseStore()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := newTestLocker(store, clock)

	release, err := l.Lock(context.Background(), "unit:u-1")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "unit:u-1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}

	release()
	again, err := l.Lock(context.Background(), "unit:u-1")
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	again()
}

func TestTryAcquirePropagatesErrors(t *testing.T) {
	store := newLeaseStore()
	store.failErr = errors.New("no primary")
	l := newTestLocker(store, &fakeClock{now: time.Now()})

	if _, err := l.Lock(context.Background(), "unit:u-1"); err == nil || err.Error() != "no primary" {
		t.Fatalf("expected store error, got %v", err)
	}
}
