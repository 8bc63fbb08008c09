package lock

import (
	"context"
	"sync"

	"auction-engine/internal/syncutils"
)

type localEntry struct {
	slot chan struct{}
	refs int
}

// LocalLocker serializes holders of the same key within one process.
// Entries are dropped once no goroutine holds or waits for them.
type LocalLocker struct {
	mu      syncutils.Mutex
	entries map[string]*localEntry
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*localEntry)}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (Release, error) {
	e := l.ref(key)

	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, e)
		return nil, conflict(key, ctx.Err())
	}

	return once(func() {
		<-e.slot
		l.unref(key, e)
	}), nil
}

// Len returns the number of keys currently held or waited on
func (l *LocalLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *LocalLocker) ref(key string) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{slot: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *LocalLocker) unref(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func once(f func()) Release {
	var o sync.Once
	return func() { o.Do(f) }
}
