package repository

import (
	"context"
	"testing"
	"time"
)

func TestLockTable_Exclusive(t *testing.T) {
	locks := newLockTable()
	ctx := context.Background()

	if err := locks.acquire(ctx, "a"); err != nil {
		t.Fatalf("acquire(a) error = %v", err)
	}
	// Different names never contend.
	if err := locks.acquire(ctx, "b"); err != nil {
		t.Fatalf("acquire(b) error = %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		if err := locks.acquire(ctx, "a"); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held lock")
	case <-time.After(20 * time.Millisecond):
	}

	locks.release("a")
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter was not handed the lock")
	}

	locks.release("a")
	locks.release("b")
	if n := locks.size(); n != 0 {
		t.Errorf("size() = %d after full release, want 0", n)
	}
}

func TestLockTable_WaiterGivesUp(t *testing.T) {
	locks := newLockTable()
	if err := locks.acquire(context.Background(), "a"); err != nil {
		t.Fatalf("acquire(a) error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := locks.acquire(ctx, "a"); err == nil {
		t.Fatal("acquire() on a held lock succeeded")
	}
	if n := locks.size(); n != 1 {
		t.Errorf("size() = %d, want 1 (holder only)", n)
	}

	locks.release("a")
	if n := locks.size(); n != 0 {
		t.Errorf("size() = %d, want 0", n)
	}
}
