// internal/browser/context_utils.go
package browser

import "context"

// CombineContext derives a context from ctx1 that is also cancelled when ctx2
// is done. Values come from ctx1, which carries the chromedp target; ctx2
// carries the caller's deadline.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)
	if dl, ok := ctx2.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		combinedCtx, cancelDeadline = context.WithDeadline(combinedCtx, dl)
		inner := cancel
		cancel = func() {
			cancelDeadline()
			inner()
		}
	}

	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

// Detach returns a context that keeps ctx's values but outlives its cancellation.
// Session teardown uses it so a cancelled request still closes its tab.
func Detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
