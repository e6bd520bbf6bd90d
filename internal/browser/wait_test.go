// internal/browser/wait_test.go
package browser_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/cartwright/internal/browser"
	"github.com/xkilldash9x/cartwright/internal/browser/browsertest"
)

var fast = browser.WaitOptions{Timeout: 50 * time.Millisecond, Interval: 5 * time.Millisecond}

func TestWaitFor(t *testing.T) {
	ctx := context.Background()

	t.Run("should find an attached but hidden element", func(t *testing.T) {
		p := browsertest.New(`<div hidden id="modal">x</div>`)
		el, err := browser.WaitFor(ctx, p, "#modal", browser.Attached, fast)
		require.NoError(t, err)
		assert.NotNil(t, el)

		_, err = browser.WaitFor(ctx, p, "#modal", browser.Visible, fast)
		assert.ErrorIs(t, err, browser.ErrTimeout)
	})

	t.Run("should see an element that appears while waiting", func(t *testing.T) {
		p := browsertest.New(`<body></body>`)
		go func() {
			time.Sleep(10 * time.Millisecond)
			p.Mutate(func(doc *goquery.Document) { doc.Find("body").AppendHtml(`<p id="late">hi</p>`) })
		}()
		opts := browser.WaitOptions{Timeout: time.Second, Interval: 2 * time.Millisecond}
		el, err := browser.WaitFor(ctx, p, "#late", browser.Visible, opts)
		require.NoError(t, err)
		assert.NotNil(t, el)
	})

	t.Run("should stop on cancellation", func(t *testing.T) {
		p := browsertest.New(`<body></body>`)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := browser.WaitFor(cctx, p, "#never", browser.Attached, browser.WaitOptions{Timeout: time.Second})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestIsVisible(t *testing.T) {
	ctx := context.Background()
	p := browsertest.New(`<button id="go">Go</button><button id="no" style="visibility:hidden">No</button>`)

	_, ok, err := browser.IsVisible(ctx, p, "#go", fast)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = browser.IsVisible(ctx, p, "#no", fast)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = browser.IsVisible(ctx, p, "  ", fast)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPoll(t *testing.T) {
	boom := errors.New("boom")
	err := browser.Poll(context.Background(), fast, func(context.Context) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)

	calls := 0
	err = browser.Poll(context.Background(), fast, func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestIsXPath(t *testing.T) {
	assert.True(t, browser.IsXPath("//div[@id='x']"))
	assert.True(t, browser.IsXPath("./span"))
	assert.True(t, browser.IsXPath("(//li)[2]"))
	assert.False(t, browser.IsXPath("div > span"))
	assert.False(t, browser.IsXPath("[data-testid='x']"))
}
