package service

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestCartLocks(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("should serialize holders of the same cart", func(t *testing.T) {
		l := newCartLocks()
		id := uuid.New()

		var (
			active, peak int32
			wg           sync.WaitGroup
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := l.lock(id)
				defer unlock()
				n := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), peak)
		assert.Zero(t, l.size(), "idle carts should be forgotten")
	})

	t.Run("should not block different carts", func(t *testing.T) {
		l := newCartLocks()
		unlockA := l.lock(uuid.New())
		done := make(chan struct{})
		go func() {
			defer close(done)
			l.lock(uuid.New())()
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("lock on a different cart blocked")
		}
		unlockA()
		assert.Zero(t, l.size())
	})
}
