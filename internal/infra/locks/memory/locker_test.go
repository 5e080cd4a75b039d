package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLockSerializesSameKey(t *testing.T) {
	l := NewLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Lock(context.Background(), "unit:a")
			if err != nil {
				t.Error(err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	if maxInside != 1 {
		t.Fatalf("max concurrent holders = %d", maxInside)
	}
	if l.Len() != 0 {
		t.Fatalf("leaked %d lock entries", l.Len())
	}
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocker()
	release, err := l.Lock(context.Background(), "unit:a")
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	other, err := l.Lock(ctx, "unit:b")
	if err != nil {
		t.Fatalf("unit b blocked by unit a: %v", err)
	}
	other()
}

func TestLockTimeoutLeavesNoEntry(t *testing.T) {
	l := NewLocker()
	release, _ := l.Lock(context.Background(), "unit:a")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "unit:a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	release()
	release() // idempotent
	if l.Len() != 0 {
		t.Fatalf("leaked %d lock entries", l.Len())
	}
}
