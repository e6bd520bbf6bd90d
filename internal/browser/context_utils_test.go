// internal/browser/context_utils_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type ctxKey struct{}

func TestCombineContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("should keep values from the first context", func(t *testing.T) {
		ctx1 := context.WithValue(context.Background(), ctxKey{}, "tab")
		combined, cancel := CombineContext(ctx1, context.Background())
		defer cancel()
		assert.Equal(t, "tab", combined.Value(ctxKey{}))
	})

	t.Run("should adopt the deadline of the second context", func(t *testing.T) {
		ctx2, cancel2 := context.WithTimeout(context.Background(), time.Minute)
		defer cancel2()
		want, _ := ctx2.Deadline()

		combined, cancel := CombineContext(context.Background(), ctx2)
		defer cancel()
		got, ok := combined.Deadline()
		require.True(t, ok)
		assert.Equal(t, want, got)
	})

	t.Run("should be cancelled when the second context is", func(t *testing.T) {
		ctx2, cancel2 := context.WithCancel(context.Background())
		combined, cancel := CombineContext(context.Background(), ctx2)
		defer cancel()

		cancel2()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context was not cancelled")
		}
	})

	t.Run("should be cancelled when the first context is", func(t *testing.T) {
		ctx1, cancel1 := context.WithCancel(context.Background())
		combined, cancel := CombineContext(ctx1, context.Background())
		defer cancel()

		cancel1()
		<-combined.Done()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})
}

func TestDetach(t *testing.T) {
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "tab"))
	cancel()

	detached := Detach(parent)
	assert.NoError(t, detached.Err())
	assert.Nil(t, detached.Done())
	assert.Equal(t, "tab", detached.Value(ctxKey{}))
}
