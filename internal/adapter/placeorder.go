// internal/adapter/placeorder.go
package adapter

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/cartwright/internal/browser"
	"github.com/xkilldash9x/cartwright/internal/errs"
)

// frame scopes queries to the document of an embedded frame.
type frame struct {
	page     browser.Page
	selector string
}

func (f frame) Query(ctx context.Context, selector string) (browser.Element, error) {
	return f.page.FrameQuery(ctx, f.selector, selector)
}

func (f frame) QueryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	el, err := f.Query(ctx, selector)
	if err != nil || el == nil {
		return nil, err
	}
	return []browser.Element{el}, nil
}

// submitRefs locate the final submission control and the signals that follow it.
type submitRefs struct {
	placeOrder string
	success    string
	// captchaFrame and captchaModal are empty on storefronts without a challenge.
	captchaFrame string
	captchaModal string
	successWait  time.Duration
}

// placeOrder clicks the submission control and races the success indicator
// against the captcha check. A captcha wins over a late success.
func (e *engine) placeOrder(ctx context.Context, pg browser.Page, refs submitRefs) error {
	btn, ok, err := visibleNow(ctx, pg, refs.placeOrder)
	if err != nil {
		return err
	}
	if !ok {
		// The control is often below the fold of a long accordion.
		if err := pg.ScrollToTop(ctx); err != nil {
			return err
		}
		if btn, err = e.require(ctx, pg, refs.placeOrder, "place order button", browser.Visible, e.t.Action); err != nil {
			return err
		}
	}
	if err := btn.ScrollIntoView(ctx); err != nil {
		return err
	}
	if err := btn.Click(ctx); err != nil {
		return err
	}
	e.logger.Info("Order submitted, waiting for confirmation.", zap.Duration("wait", refs.successWait))

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(raceCtx)

	var confirmed atomic.Bool
	g.Go(func() error {
		_, err := browser.WaitFor(gctx, pg, refs.success, browser.Visible, e.wait(refs.successWait))
		switch {
		case err == nil:
			confirmed.Store(true)
			cancel()
			return nil
		case errors.Is(err, browser.ErrTimeout):
			return errs.New(errs.Upstream, errs.ReasonSubmissionTimeout, "Order submission failed: success check failed", errs.WithCause(err))
		}
		return err
	})

	if refs.captchaFrame != "" && refs.captchaModal != "" {
		g.Go(func() error {
			_, seen, err := browser.IsVisible(gctx, frame{page: pg, selector: refs.captchaFrame}, refs.captchaModal, e.wait(e.t.Captcha))
			if err != nil {
				if confirmed.Load() {
					return nil
				}
				return err
			}
			if seen {
				return errs.New(errs.Upstream, errs.ReasonCaptchaBlocked, "Order submission failed: captcha appeared")
			}
			e.logger.Debug("Captcha did not appear.")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	e.logger.Info("Order confirmed by storefront.")
	return nil
}
