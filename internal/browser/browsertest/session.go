// internal/browser/browsertest/session.go
package browsertest

import (
	"context"
	"sync"

	"github.com/xkilldash9x/cartwright/internal/browser"
)

// Session is a fake browser.Session over a Page.
type Session struct {
	page *Page

	mu     sync.Mutex
	state  []byte
	closed bool
}

var _ browser.Session = (*Session)(nil)

func (s *Session) Page() browser.Page { return s.page }

// StorageState returns the state the session was opened with, or the
// provider's NextState when one is configured.
func (s *Session) StorageState(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, browser.ErrClosed
	}
	return append([]byte(nil), s.state...), ctx.Err()
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Provider is a fake browser.Provider that hands out sessions over one Page.
type Provider struct {
	Page *Page
	// NextState, when set, is what every session reports as its storage state.
	NextState []byte
	// Err fails every NewSession call.
	Err error

	mu       sync.Mutex
	sessions []*Session
	restored [][]byte
}

var _ browser.Provider = (*Provider)(nil)

func (p *Provider) NewSession(ctx context.Context, state []byte) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restored = append(p.restored, append([]byte(nil), state...))
	if p.Err != nil {
		return nil, p.Err
	}
	out := state
	if p.NextState != nil {
		out = p.NextState
	}
	s := &Session{page: p.Page, state: append([]byte(nil), out...)}
	p.sessions = append(p.sessions, s)
	return s, nil
}

// Sessions returns every session opened so far.
func (p *Provider) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Session(nil), p.sessions...)
}

// Restored returns the state passed to each NewSession call, in order.
func (p *Provider) Restored() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.restored...)
}

// AllClosed reports whether every session handed out has been closed.
func (p *Provider) AllClosed() bool {
	for _, s := range p.Sessions() {
		if !s.Closed() {
			return false
		}
	}
	return true
}
