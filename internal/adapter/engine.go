// internal/adapter/engine.go
package adapter

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwright/internal/browser"
	"github.com/xkilldash9x/cartwright/internal/config"
	"github.com/xkilldash9x/cartwright/internal/errs"
	"github.com/xkilldash9x/cartwright/internal/selectors"
)

// engine carries the selectors and bounds of one storefront together with the
// DOM primitives every workflow phase is built from.
type engine struct {
	storefront string

	variant  selectors.Group
	add      selectors.Group
	verify   selectors.Group
	del      selectors.Group
	checkout selectors.Group
	fetch    selectors.Group

	checkoutURL string
	bagURL      string
	uploadDir   string

	t      config.TimeoutConfig
	logger *zap.Logger
}

func newEngine(set *selectors.Set, storefront string, t config.TimeoutConfig, uploadDir string, logger *zap.Logger) (*engine, error) {
	e := &engine{
		storefront: storefront,
		uploadDir:  uploadDir,
		t:          t,
		logger:     logger.Named(storefront),
	}
	groups := []struct {
		phase selectors.Phase
		dst   *selectors.Group
	}{
		{selectors.PhaseVariant, &e.variant},
		{selectors.PhaseAddToCart, &e.add},
		{selectors.PhaseCartVerification, &e.verify},
		{selectors.PhaseCartDeletion, &e.del},
		{selectors.PhaseCheckout, &e.checkout},
		{selectors.PhaseCheckoutFetch, &e.fetch},
	}
	for _, g := range groups {
		group, err := set.Phase(storefront, g.phase)
		if err != nil {
			return nil, err
		}
		*g.dst = group
	}

	var err error
	if e.checkoutURL, err = set.CheckoutURL(storefront); err != nil {
		return nil, err
	}
	if e.bagURL, err = set.BagURL(storefront); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *engine) wait(d time.Duration) browser.WaitOptions {
	return browser.WaitOptions{Timeout: d, Interval: e.t.PollInterval}
}

// structureErr reports a page that no longer looks the way the selectors expect.
func structureErr(format string, args ...any) *errs.E {
	return errs.Newf(errs.Upstream, errs.ReasonStructureUnrecognized, format, args...)
}

func (e *engine) navigate(ctx context.Context, pg browser.Page, url string) error {
	if strings.TrimSpace(url) == "" {
		return structureErr("No URL configured for %s", e.storefront)
	}
	navCtx, cancel := context.WithTimeout(ctx, e.t.Navigation)
	defer cancel()

	e.logger.Debug("Navigating.", zap.String("url", url))
	if err := pg.Navigate(navCtx, url); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return errs.New(errs.Upstream, errs.ReasonStructureUnrecognized, "Timed out loading "+url, errs.WithCause(err))
		}
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// require waits for selector and turns a timeout into an unrecognised-structure failure.
func (e *engine) require(ctx context.Context, root browser.Querier, selector, what string, state browser.State, d time.Duration) (browser.Element, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, structureErr("No selector configured for %s", what)
	}
	el, err := browser.WaitFor(ctx, root, selector, state, e.wait(d))
	if errors.Is(err, browser.ErrTimeout) {
		return nil, errs.New(errs.Upstream, errs.ReasonStructureUnrecognized, "Timed out waiting for "+what, errs.WithCause(err))
	}
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", what, err)
	}
	return el, nil
}

// visibleNow checks selector once without waiting.
func visibleNow(ctx context.Context, root browser.Querier, selector string) (browser.Element, bool, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, false, nil
	}
	el, err := root.Query(ctx, selector)
	if err != nil || el == nil {
		return nil, false, err
	}
	vis, err := el.Visible(ctx)
	if err != nil || !vis {
		return nil, false, err
	}
	return el, true, nil
}

// query is Query with a guard for unconfigured selectors.
func query(ctx context.Context, root browser.Querier, selector string) (browser.Element, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, nil
	}
	return root.Query(ctx, selector)
}

func queryAll(ctx context.Context, root browser.Querier, selector string) ([]browser.Element, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, nil
	}
	return root.QueryAll(ctx, selector)
}

// firstMatching returns the matches of the first selector in the list that
// matches anything.
func firstMatching(ctx context.Context, root browser.Querier, list []string) ([]browser.Element, error) {
	for _, sel := range list {
		els, err := queryAll(ctx, root, sel)
		if err != nil {
			return nil, err
		}
		if len(els) > 0 {
			return els, nil
		}
	}
	return nil, nil
}

func text(ctx context.Context, el browser.Element) (string, error) {
	s, err := el.Text(ctx)
	return strings.TrimSpace(s), err
}

// textOr returns the text of the first match of selector below root, or fallback.
func textOr(ctx context.Context, root browser.Querier, selector, fallback string) (string, error) {
	el, err := query(ctx, root, selector)
	if err != nil {
		return "", err
	}
	if el == nil {
		return fallback, nil
	}
	return text(ctx, el)
}

func disabled(ctx context.Context, el browser.Element) (bool, error) {
	_, ok, err := el.Attr(ctx, "disabled")
	return ok, err
}

// dismissModal closes a transient modal when it shows up in time. Its absence
// is not an error.
func (e *engine) dismissModal(ctx context.Context, pg browser.Page, modalSel, buttonSel string, d time.Duration) error {
	modal, ok, err := browser.IsVisible(ctx, pg, modalSel, e.wait(d))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Debug("Modal check failed, continuing.", zap.String("modal", modalSel), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	btn, err := query(ctx, modal, buttonSel)
	if err == nil && btn != nil {
		err = btn.Click(ctx)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Debug("Could not dismiss modal, continuing.", zap.String("modal", modalSel), zap.Error(err))
		return nil
	}
	e.logger.Debug("Dismissed modal.", zap.String("modal", modalSel))
	return nil
}

// blockingModal fails with fail when the modal shows up in time.
func (e *engine) blockingModal(ctx context.Context, pg browser.Page, modalSel string, d time.Duration, fail *errs.E) error {
	_, ok, err := browser.IsVisible(ctx, pg, modalSel, e.wait(d))
	if err != nil {
		return err
	}
	if ok {
		return fail
	}
	return nil
}

// errorNotification fails when a notification is on screen, quoting its text in format.
func (e *engine) errorNotification(ctx context.Context, pg browser.Page, sel string, kind errs.Kind, reason errs.Reason, format string) error {
	el, ok, err := visibleNow(ctx, pg, sel)
	if err != nil || !ok {
		return err
	}
	msg, err := text(ctx, el)
	if err != nil {
		return err
	}
	return errs.Newf(kind, reason, format, msg)
}

// checkOutOfStock fails when the stock marker is rendered and, if innerText is
// set, contains it.
func (e *engine) checkOutOfStock(ctx context.Context, pg browser.Page, sel, innerText string) error {
	el, ok, err := browser.IsVisible(ctx, pg, sel, e.wait(e.t.StockCheck))
	if err != nil {
		return err
	}
	if ok && innerText != "" {
		msg, err := el.Text(ctx)
		if err != nil {
			return err
		}
		ok = strings.Contains(msg, innerText)
	}
	if ok {
		return errs.New(errs.Unavailable, errs.ReasonOutOfStock, "Product is out of stock")
	}
	e.logger.Debug("Product is available.")
	return nil
}

// fillField fills selector when it becomes visible in time. Unconfigured or
// absent fields are skipped.
func (e *engine) fillField(ctx context.Context, pg browser.Page, sel, value string) error {
	el, ok, err := browser.IsVisible(ctx, pg, sel, e.wait(e.t.Modal))
	if err != nil || !ok {
		return err
	}
	return el.Fill(ctx, value)
}

// clickIfVisible clicks selector when it becomes visible in time.
func (e *engine) clickIfVisible(ctx context.Context, root browser.Querier, sel string, d time.Duration) (bool, error) {
	el, ok, err := browser.IsVisible(ctx, root, sel, e.wait(d))
	if err != nil || !ok {
		return false, err
	}
	return true, el.Click(ctx)
}

// formRefs are the checkout fields a submission fills in.
type formRefs struct {
	govID     string
	mmjID     string
	firstName string
	lastName  string
	email     string
	phone     string
	birthdate string
}

// fillForm fills the customer form. Storefronts that demand an identity
// document upload before submission are rejected up front.
func (e *engine) fillForm(ctx context.Context, pg browser.Page, refs formRefs, in orderInput) error {
	if _, ok, err := visibleNow(ctx, pg, refs.govID); err != nil {
		return err
	} else if ok {
		return errs.New(errs.Invalid, errs.ReasonGovernmentIDRequired, "This dispensary requires government ID upload")
	}

	fields := []struct{ sel, value string }{
		{refs.mmjID, in.mmjID},
		{refs.firstName, in.FirstName},
		{refs.lastName, in.LastName},
		{refs.email, in.Email},
		{refs.phone, in.MobilePhone},
		{refs.birthdate, in.Birthdate},
	}
	for _, f := range fields {
		if err := e.fillField(ctx, pg, f.sel, f.value); err != nil {
			return fmt.Errorf("failed to fill checkout field %q: %w", f.sel, err)
		}
	}
	return nil
}

// randomMMJID is a placeholder medical card number for storefronts that
// require the field but never verify it.
func randomMMJID() string {
	return strconv.Itoa(100000000 + rand.IntN(900000000))
}
