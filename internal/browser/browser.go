// internal/browser/browser.go
package browser

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrTimeout is returned when an element does not reach the awaited state in time.
var ErrTimeout = errors.New("browser: timed out waiting for element")

// ErrClosed is returned by operations on a released session.
var ErrClosed = errors.New("browser: session closed")

// Querier locates elements below a root. Selectors starting with "/", "./" or
// "(" are evaluated as XPath; everything else is CSS.
type Querier interface {
	// Query returns the first match, or nil when nothing matches.
	Query(ctx context.Context, selector string) (Element, error)
	// QueryAll returns every match in document order.
	QueryAll(ctx context.Context, selector string) ([]Element, error)
}

// Page is a single tab inside an isolated browsing context.
type Page interface {
	Querier
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// FrameQuery looks up selector inside the document of the first frame matching frameSelector.
	FrameQuery(ctx context.Context, frameSelector, selector string) (Element, error)
	ScrollToTop(ctx context.Context) error
}

// Element is a handle to a DOM node.
type Element interface {
	Querier
	Text(ctx context.Context) (string, error)
	// Attr reports the attribute value and whether it is present at all.
	Attr(ctx context.Context, name string) (string, bool, error)
	Value(ctx context.Context) (string, error)
	Visible(ctx context.Context) (bool, error)
	Checked(ctx context.Context) (bool, error)
	Click(ctx context.Context) error
	// Fill replaces the current value of an input.
	Fill(ctx context.Context, value string) error
	// Type sends key strokes to the element.
	Type(ctx context.Context, text string) error
	ScrollIntoView(ctx context.Context) error
	SetFiles(ctx context.Context, paths []string) error
}

// Session owns one isolated browsing context for the duration of a single operation.
type Session interface {
	Page() Page
	// StorageState serialises the cookies and local storage of the context.
	StorageState(ctx context.Context) ([]byte, error)
	Close() error
}

// Provider opens sessions, optionally resuming a previously captured storage state.
type Provider interface {
	NewSession(ctx context.Context, state []byte) (Session, error)
}

// State is the condition WaitFor waits for.
type State int

const (
	// Attached waits for the element to exist in the DOM.
	Attached State = iota
	// Visible waits for the element to exist and be rendered.
	Visible
)

// DefaultPollInterval is used when WaitOptions.Interval is zero.
const DefaultPollInterval = 100 * time.Millisecond

// WaitOptions bound a wait.
type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

// Poll calls check until it reports true, returns an error, or the timeout
// passes. A timeout yields ErrTimeout; cancellation of ctx yields ctx.Err().
func Poll(ctx context.Context, opts WaitOptions, check func(context.Context) (bool, error)) error {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	deadline := time.Now().Add(opts.Timeout)

	for {
		ok, err := check(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrTimeout
		}
		wait := interval
		if remaining < wait {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// WaitFor polls root until selector matches an element in the requested state.
func WaitFor(ctx context.Context, root Querier, selector string, state State, opts WaitOptions) (Element, error) {
	var found Element
	err := Poll(ctx, opts, func(ctx context.Context) (bool, error) {
		el, err := root.Query(ctx, selector)
		if err != nil || el == nil {
			return false, err
		}
		if state == Visible {
			vis, err := el.Visible(ctx)
			if err != nil || !vis {
				return false, err
			}
		}
		found = el
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// IsVisible reports whether selector matches a rendered element within the
// timeout. Absence is not an error.
func IsVisible(ctx context.Context, root Querier, selector string, opts WaitOptions) (Element, bool, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, false, nil
	}
	el, err := WaitFor(ctx, root, selector, Visible, opts)
	if errors.Is(err, ErrTimeout) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return el, true, nil
}

// Sleep pauses for d unless ctx is cancelled first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsXPath reports whether selector is evaluated as XPath.
func IsXPath(selector string) bool {
	s := strings.TrimSpace(selector)
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "(")
}
