package indexer

import (
	"sync"
	"sync/atomic"
)

// IndexLock admits one clustering run at a time without blocking the caller
type IndexLock struct {
	held atomic.Bool
}

// TryAcquire takes the lock if it is free
func (l *IndexLock) TryAcquire() bool {
	return l.held.CompareAndSwap(false, true)
}

// Release frees the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.held.Store(false)
}

// Locks hands out one IndexLock per project root
type Locks struct {
	mu    sync.Mutex
	locks map[string]*IndexLock
}

// For returns the lock guarding root
func (l *Locks) For(root string) *IndexLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[string]*IndexLock)
	}
	lock, ok := l.locks[root]
	if !ok {
		lock = &IndexLock{}
		l.locks[root] = lock
	}
	return lock
}
