// internal/service/locks.go
package service

import (
	"sync"

	"github.com/google/uuid"
)

// cartLocks serializes operations on the same cart. Two browser sessions
// restored from one saved state would otherwise race to write it back.
type cartLocks struct {
	mu    sync.Mutex
	carts map[uuid.UUID]*cartLock
}

type cartLock struct {
	mu      sync.Mutex
	holders int
}

func newCartLocks() *cartLocks {
	return &cartLocks{carts: make(map[uuid.UUID]*cartLock)}
}

// lock blocks until id is free and returns its release func.
func (l *cartLocks) lock(id uuid.UUID) (unlock func()) {
	l.mu.Lock()
	cl, ok := l.carts[id]
	if !ok {
		cl = &cartLock{}
		l.carts[id] = cl
	}
	cl.holders++
	l.mu.Unlock()

	cl.mu.Lock()
	return func() {
		cl.mu.Unlock()
		l.mu.Lock()
		cl.holders--
		if cl.holders == 0 {
			delete(l.carts, id)
		}
		l.mu.Unlock()
	}
}

// size reports how many carts currently have a holder or waiter.
func (l *cartLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.carts)
}
