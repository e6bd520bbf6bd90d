// internal/browser/cdp.go
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
)

// queryHelper resolves CSS or XPath selectors relative to a root node.
const queryHelper = `function __cwQuery(root, sel, all) {
  const s = sel.trim();
  if (s.startsWith('/') || s.startsWith('./') || s.startsWith('(')) {
    const doc = root.ownerDocument || root;
    const r = doc.evaluate(s, root, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
    const out = [];
    for (let i = 0; i < r.snapshotLength; i++) out.push(r.snapshotItem(i));
    return all ? out : (out[0] || null);
  }
  return all ? Array.from(root.querySelectorAll(s)) : root.querySelector(s);
}`

func jsLiteral(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// cdpPage implements Page over a chromedp tab context.
type cdpPage struct {
	tabCtx context.Context
}

// cdpElement implements Element over a remote object handle.
type cdpElement struct {
	tabCtx context.Context
	id     runtime.RemoteObjectID
}

// run executes fn against the tab, bounded by the caller's context.
func run(tabCtx, ctx context.Context, fn func(ctx context.Context) error) error {
	runCtx, cancel := CombineContext(tabCtx, ctx)
	defer cancel()
	err := chromedp.Run(runCtx, chromedp.ActionFunc(fn))
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// evaluateHandle evaluates expr in the page and returns the resulting object id,
// or "" when the expression yields null.
func evaluateHandle(ctx context.Context, expr string) (runtime.RemoteObjectID, error) {
	res, exc, err := runtime.Evaluate(expr).Do(ctx)
	if err != nil {
		return "", err
	}
	if exc != nil {
		return "", exc
	}
	if res == nil {
		return "", nil
	}
	return res.ObjectID, nil
}

// evaluateValue evaluates expr in the page and decodes its JSON value into out.
func evaluateValue(ctx context.Context, expr string, out any) error {
	res, exc, err := runtime.Evaluate(expr).WithReturnByValue(true).WithAwaitPromise(true).Do(ctx)
	if err != nil {
		return err
	}
	if exc != nil {
		return exc
	}
	if out == nil || res == nil || len(res.Value) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(res.Value), out)
}

// callHandle invokes fn with this bound to id and returns the resulting object id.
func callHandle(ctx context.Context, id runtime.RemoteObjectID, fn string) (runtime.RemoteObjectID, error) {
	res, exc, err := runtime.CallFunctionOn(fn).WithObjectID(id).Do(ctx)
	if err != nil {
		return "", err
	}
	if exc != nil {
		return "", exc
	}
	if res == nil {
		return "", nil
	}
	return res.ObjectID, nil
}

// callValue invokes fn with this bound to id and decodes its JSON result into out.
func callValue(ctx context.Context, id runtime.RemoteObjectID, fn string, out any) error {
	res, exc, err := runtime.CallFunctionOn(fn).WithObjectID(id).WithReturnByValue(true).WithAwaitPromise(true).Do(ctx)
	if err != nil {
		return err
	}
	if exc != nil {
		return exc
	}
	if out == nil || res == nil || len(res.Value) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(res.Value), out)
}

// -- Page --

func (p *cdpPage) Navigate(ctx context.Context, url string) error {
	return run(p.tabCtx, ctx, func(ctx context.Context) error {
		return chromedp.Navigate(url).Do(ctx)
	})
}

func (p *cdpPage) Query(ctx context.Context, selector string) (Element, error) {
	expr := fmt.Sprintf("(function(){ %s; return __cwQuery(document, %s, false); })()", queryHelper, jsLiteral(selector))
	var id runtime.RemoteObjectID
	err := run(p.tabCtx, ctx, func(ctx context.Context) (err error) {
		id, err = evaluateHandle(ctx, expr)
		return err
	})
	if err != nil || id == "" {
		return nil, err
	}
	return &cdpElement{tabCtx: p.tabCtx, id: id}, nil
}

func (p *cdpPage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	countExpr := fmt.Sprintf("(function(){ %s; return __cwQuery(document, %s, true).length; })()", queryHelper, jsLiteral(selector))
	var out []Element
	err := run(p.tabCtx, ctx, func(ctx context.Context) error {
		var n int
		if err := evaluateValue(ctx, countExpr, &n); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			expr := fmt.Sprintf("(function(){ %s; return __cwQuery(document, %s, true)[%d] || null; })()", queryHelper, jsLiteral(selector), i)
			id, err := evaluateHandle(ctx, expr)
			if err != nil {
				return err
			}
			if id != "" {
				out = append(out, &cdpElement{tabCtx: p.tabCtx, id: id})
			}
		}
		return nil
	})
	return out, err
}

// FrameQuery only reaches same-origin frames; a cross-origin frame document is
// not scriptable from the embedding page and reads as absent.
func (p *cdpPage) FrameQuery(ctx context.Context, frameSelector, selector string) (Element, error) {
	expr := fmt.Sprintf(`(function(){ %s;
  const f = __cwQuery(document, %s, false);
  let doc = null;
  try { doc = f && f.contentDocument; } catch (e) { doc = null; }
  return doc ? __cwQuery(doc, %s, false) : null;
})()`, queryHelper, jsLiteral(frameSelector), jsLiteral(selector))
	var id runtime.RemoteObjectID
	err := run(p.tabCtx, ctx, func(ctx context.Context) (err error) {
		id, err = evaluateHandle(ctx, expr)
		return err
	})
	if err != nil || id == "" {
		return nil, err
	}
	return &cdpElement{tabCtx: p.tabCtx, id: id}, nil
}

func (p *cdpPage) ScrollToTop(ctx context.Context) error {
	return run(p.tabCtx, ctx, func(ctx context.Context) error {
		return evaluateValue(ctx, "window.scrollTo(0, 0)", nil)
	})
}

// -- Element --

func (e *cdpElement) Query(ctx context.Context, selector string) (Element, error) {
	fn := fmt.Sprintf("function(){ %s; return __cwQuery(this, %s, false); }", queryHelper, jsLiteral(selector))
	var id runtime.RemoteObjectID
	err := run(e.tabCtx, ctx, func(ctx context.Context) (err error) {
		id, err = callHandle(ctx, e.id, fn)
		return err
	})
	if err != nil || id == "" {
		return nil, err
	}
	return &cdpElement{tabCtx: e.tabCtx, id: id}, nil
}

func (e *cdpElement) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	countFn := fmt.Sprintf("function(){ %s; return __cwQuery(this, %s, true).length; }", queryHelper, jsLiteral(selector))
	var out []Element
	err := run(e.tabCtx, ctx, func(ctx context.Context) error {
		var n int
		if err := callValue(ctx, e.id, countFn, &n); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			fn := fmt.Sprintf("function(){ %s; return __cwQuery(this, %s, true)[%d] || null; }", queryHelper, jsLiteral(selector), i)
			id, err := callHandle(ctx, e.id, fn)
			if err != nil {
				return err
			}
			if id != "" {
				out = append(out, &cdpElement{tabCtx: e.tabCtx, id: id})
			}
		}
		return nil
	})
	return out, err
}

func (e *cdpElement) value(ctx context.Context, fn string, out any) error {
	return run(e.tabCtx, ctx, func(ctx context.Context) error {
		return callValue(ctx, e.id, fn, out)
	})
}

func (e *cdpElement) Text(ctx context.Context) (string, error) {
	var s string
	err := e.value(ctx, "function(){ return this.innerText ?? this.textContent ?? ''; }", &s)
	return s, err
}

func (e *cdpElement) Attr(ctx context.Context, name string) (string, bool, error) {
	var s *string
	fn := fmt.Sprintf("function(){ const n = %s; return this.hasAttribute && this.hasAttribute(n) ? this.getAttribute(n) : null; }", jsLiteral(name))
	if err := e.value(ctx, fn, &s); err != nil {
		return "", false, err
	}
	if s == nil {
		return "", false, nil
	}
	return *s, true, nil
}

func (e *cdpElement) Value(ctx context.Context) (string, error) {
	var s string
	err := e.value(ctx, "function(){ return this.value == null ? '' : String(this.value); }", &s)
	return s, err
}

func (e *cdpElement) Visible(ctx context.Context) (bool, error) {
	var ok bool
	err := e.value(ctx, `function(){
  if (!this.isConnected || !this.getBoundingClientRect) return false;
  const s = getComputedStyle(this);
  if (s.visibility === 'hidden' || s.display === 'none') return false;
  const r = this.getBoundingClientRect();
  return r.width > 0 && r.height > 0;
}`, &ok)
	return ok, err
}

func (e *cdpElement) Checked(ctx context.Context) (bool, error) {
	var ok bool
	err := e.value(ctx, "function(){ return !!this.checked || this.getAttribute('aria-checked') === 'true'; }", &ok)
	return ok, err
}

func (e *cdpElement) ScrollIntoView(ctx context.Context) error {
	return e.value(ctx, "function(){ this.scrollIntoView({block: 'center', inline: 'center'}); }", nil)
}

type box struct {
	X, Y, W, H float64
}

func (e *cdpElement) Click(ctx context.Context) error {
	return run(e.tabCtx, ctx, func(ctx context.Context) error {
		var b box
		if err := callValue(ctx, e.id, `function(){
  this.scrollIntoView({block: 'center', inline: 'center'});
  const r = this.getBoundingClientRect();
  return {X: r.left + r.width / 2, Y: r.top + r.height / 2, W: r.width, H: r.height};
}`, &b); err != nil {
			return err
		}
		if b.W <= 0 || b.H <= 0 {
			// Zero-size controls (styled radios, hidden inputs) still accept a DOM click.
			return callValue(ctx, e.id, "function(){ this.click(); }", nil)
		}
		return chromedp.MouseClickXY(b.X, b.Y).Do(ctx)
	})
}

func (e *cdpElement) Fill(ctx context.Context, value string) error {
	return run(e.tabCtx, ctx, func(ctx context.Context) error {
		if err := callValue(ctx, e.id, `function(){
  this.focus();
  if ('value' in this) { this.value = ''; }
  this.dispatchEvent(new Event('input', {bubbles: true}));
}`, nil); err != nil {
			return err
		}
		if value != "" {
			if err := input.InsertText(value).Do(ctx); err != nil {
				return err
			}
		}
		return callValue(ctx, e.id, "function(){ this.dispatchEvent(new Event('change', {bubbles: true})); }", nil)
	})
}

func (e *cdpElement) Type(ctx context.Context, text string) error {
	return run(e.tabCtx, ctx, func(ctx context.Context) error {
		if err := callValue(ctx, e.id, "function(){ this.focus(); }", nil); err != nil {
			return err
		}
		return chromedp.KeyEvent(text).Do(ctx)
	})
}

func (e *cdpElement) SetFiles(ctx context.Context, paths []string) error {
	return run(e.tabCtx, ctx, func(ctx context.Context) error {
		return dom.SetFileInputFiles(paths).WithObjectID(e.id).Do(ctx)
	})
}
