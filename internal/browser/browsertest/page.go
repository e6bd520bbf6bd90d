// internal/browser/browsertest/page.go
// Package browsertest provides an in-memory Page backed by a parsed HTML
// document, for exercising storefront workflows without a browser.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/cartwright/internal/browser"
)

// ClickHandler mutates the document in response to a click. It runs with the
// page lock held and must not call back into the Page.
type ClickHandler func(doc *goquery.Document)

type handler struct {
	selector string
	fn       ClickHandler
	once     bool
	fired    bool
}

// Page is a fake browser.Page. The zero value is not usable; use New.
type Page struct {
	mu sync.Mutex

	doc    *goquery.Document
	routes map[string]string
	frames map[string]*goquery.Document

	handlers   []*handler
	clicked    []*html.Node
	navigated  []string
	files      map[*html.Node][]string
	navErr     map[string]error
	scrolledUp int
}

var _ browser.Page = (*Page)(nil)

// New parses body as the current document.
func New(body string) *Page {
	return &Page{
		doc:    mustParse(body),
		routes: make(map[string]string),
		frames: make(map[string]*goquery.Document),
		files:  make(map[*html.Node][]string),
		navErr: make(map[string]error),
	}
}

func mustParse(body string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		panic(fmt.Sprintf("browsertest: invalid html: %v", err))
	}
	return doc
}

// Route makes a navigation to url load body as the new document.
func (p *Page) Route(url, body string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[url] = body
	return p
}

// FailNavigation makes a navigation to url return err.
func (p *Page) FailNavigation(url string, err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navErr[url] = err
	return p
}

// Frame registers the document served by the iframe matching frameSelector.
func (p *Page) Frame(frameSelector, body string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames[frameSelector] = mustParse(body)
	return p
}

// OnClick runs fn every time an element matching selector is clicked.
func (p *Page) OnClick(selector string, fn ClickHandler) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, &handler{selector: selector, fn: fn})
	return p
}

// OnClickOnce runs fn on the first click of an element matching selector.
func (p *Page) OnClickOnce(selector string, fn ClickHandler) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, &handler{selector: selector, fn: fn, once: true})
	return p
}

// Navigations returns every URL passed to Navigate.
func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigated...)
}

// Clicks counts recorded clicks on nodes currently matching selector.
func (p *Page) Clicks(selector string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	matches := p.doc.Find(selector)
	n := 0
	for _, c := range p.clicked {
		if matches.IsNodes(c) {
			n++
		}
	}
	return n
}

// TotalClicks counts every recorded click.
func (p *Page) TotalClicks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clicked)
}

// ValueOf returns the value of the first element matching selector.
func (p *Page) ValueOf(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return valueOf(p.doc.Find(selector).First())
}

// FilesOf returns the paths set on the first file input matching selector.
func (p *Page) FilesOf(selector string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil
	}
	return p.files[sel.Get(0)]
}

// ScrolledToTop reports how many times ScrollToTop was called.
func (p *Page) ScrolledToTop() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrolledUp
}

// Mutate runs fn against the live document.
func (p *Page) Mutate(fn func(doc *goquery.Document)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.doc)
}

// -- browser.Page --

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	if err := p.navErr[url]; err != nil {
		return err
	}
	if body, ok := p.routes[url]; ok {
		p.doc = mustParse(body)
	}
	return nil
}

func (p *Page) Query(ctx context.Context, selector string) (browser.Element, error) {
	return p.query(ctx, nil, selector)
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	return p.queryAll(ctx, nil, selector)
}

func (p *Page) FrameQuery(ctx context.Context, frameSelector, selector string) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	frame := p.doc.Find(frameSelector)
	doc := p.frames[frameSelector]
	p.mu.Unlock()
	if frame.Length() == 0 || doc == nil {
		return nil, nil
	}
	return p.query(ctx, doc.Selection, selector)
}

func (p *Page) ScrollToTop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrolledUp++
	return ctx.Err()
}

// query resolves selector below root, or below the current document when root is nil.
func (p *Page) query(ctx context.Context, root *goquery.Selection, selector string) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if browser.IsXPath(selector) {
		return nil, fmt.Errorf("browsertest: xpath selector %q is not supported", selector)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if root == nil {
		root = p.doc.Selection
	}
	found := root.Find(selector).First()
	if found.Length() == 0 {
		return nil, nil
	}
	return &Element{page: p, sel: found}, nil
}

func (p *Page) queryAll(ctx context.Context, root *goquery.Selection, selector string) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if browser.IsXPath(selector) {
		return nil, fmt.Errorf("browsertest: xpath selector %q is not supported", selector)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if root == nil {
		root = p.doc.Selection
	}
	var out []browser.Element
	root.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{page: p, sel: s})
	})
	return out, nil
}

// click records the click and fires matching handlers. Caller holds p.mu.
func (p *Page) click(node *html.Node) {
	p.clicked = append(p.clicked, node)
	for _, h := range p.handlers {
		if h.once && h.fired {
			continue
		}
		if p.doc.Find(h.selector).IsNodes(node) {
			h.fired = true
			h.fn(p.doc)
		}
	}
}
