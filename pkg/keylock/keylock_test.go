package keylock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLock_SameKeyIsExclusive(t *testing.T) {
	l := New()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "sku-1")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	if maxInside.Load() != 1 {
		t.Fatalf("expected at most 1 holder, saw %d", maxInside.Load())
	}
	if l.Len() != 0 {
		t.Fatalf("expected lock table to be empty, got %d entries", l.Len())
	}
}

func TestLock_DifferentKeysDoNotBlock(t *testing.T) {
	l := New()
	unlockA, err := l.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("lock a: %v", err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlockB, err := l.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("lock b should not wait on a: %v", err)
	}
	unlockB()
}

func TestLock_ContextTimeout(t *testing.T) {
	l := New()
	unlock, err := l.Lock(context.Background(), "sku")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "sku"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}

	unlock()
	if l.Len() != 0 {
		t.Fatalf("expected waiter reference to be released, got %d entries", l.Len())
	}
}

func TestLock_UnlockIsIdempotent(t *testing.T) {
	l := New()
	unlock, err := l.Lock(context.Background(), "sku")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	unlock()
	unlock()

	again, err := l.Lock(context.Background(), "sku")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()
}
