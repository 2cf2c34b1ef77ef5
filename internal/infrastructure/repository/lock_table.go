package repository

import (
	"context"
	"sync"
)

// lockTable hands out one exclusive lock per name. Entries are reference
// counted and dropped once nobody holds or waits for them.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*namedLock
}

type namedLock struct {
	token chan struct{}
	refs  int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*namedLock)}
}

// acquire blocks until name is free or ctx is done.
func (t *lockTable) acquire(ctx context.Context, name string) error {
	t.mu.Lock()
	l, ok := t.locks[name]
	if !ok {
		l = &namedLock{token: make(chan struct{}, 1)}
		t.locks[name] = l
	}
	l.refs++
	t.mu.Unlock()

	select {
	case l.token <- struct{}{}:
		return nil
	case <-ctx.Done():
		t.mu.Lock()
		t.unref(name, l)
		t.mu.Unlock()
		return ctx.Err()
	}
}

func (t *lockTable) release(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.locks[name]
	if !ok {
		return
	}
	<-l.token
	t.unref(name, l)
}

func (t *lockTable) unref(name string, l *namedLock) {
	l.refs--
	if l.refs == 0 {
		delete(t.locks, name)
	}
}

// size is the number of live entries.
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
