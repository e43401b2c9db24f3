package pgtable

import (
	"sync"
	"sync/atomic"
)

// Lock serializes operations on one address space. Go has no thread identity, so
// IsLockedByCurrentThread only reports that the lock is held by someone.
type Lock struct {
	mutex sync.Mutex
	held  atomic.Bool
}

func (l *Lock) Lock() {
	l.mutex.Lock()
	l.held.Store(true)
}

func (l *Lock) Unlock() {
	l.held.Store(false)
	l.mutex.Unlock()
}

func (l *Lock) IsLockedByCurrentThread() bool {
	return l.held.Load()
}
