// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const closeTimeout = 10 * time.Second

// session is one browsing context owned by a single operation.
type session struct {
	tabCtx   context.Context
	cancel   context.CancelFunc
	page     *cdpPage
	restored StorageState
	logger   *zap.Logger

	mu      sync.Mutex
	closed  bool
	release func()
}

func (s *session) Page() Page {
	return s.page
}

func (s *session) StorageState(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	var st StorageState
	err := run(s.tabCtx, ctx, func(ctx context.Context) (err error) {
		st, err = captureState(ctx, s.restored)
		return err
	})
	if err != nil {
		return nil, err
	}
	return st.Encode()
}

// Close disposes the tab and its browsing context. It is safe to call more than once.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	// The target close must run even when the request context is already gone.
	closeCtx, cancel := context.WithTimeout(Detach(s.tabCtx), closeTimeout)
	defer cancel()
	err := chromedp.Cancel(closeCtx)
	s.cancel()
	if s.release != nil {
		s.release()
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("Browsing context close reported an error.", zap.Error(err))
		return err
	}
	return nil
}
