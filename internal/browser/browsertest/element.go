// internal/browser/browsertest/element.go
package browsertest

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/cartwright/internal/browser"
)

// Element is a fake browser.Element over a single node.
type Element struct {
	page *Page
	sel  *goquery.Selection
}

var _ browser.Element = (*Element)(nil)

func (e *Element) Query(ctx context.Context, selector string) (browser.Element, error) {
	return e.page.query(ctx, e.sel, selector)
}

func (e *Element) QueryAll(ctx context.Context, selector string) ([]browser.Element, error) {
	return e.page.queryAll(ctx, e.sel, selector)
}

func (e *Element) Text(ctx context.Context) (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return innerText(e.sel.Get(0)), ctx.Err()
}

func (e *Element) Attr(ctx context.Context, name string) (string, bool, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	v, ok := e.sel.Attr(name)
	return v, ok, ctx.Err()
}

func (e *Element) Value(ctx context.Context) (string, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return valueOf(e.sel), ctx.Err()
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.page.attached(e.sel.Get(0)) && rendered(e.sel.Get(0)), ctx.Err()
}

func (e *Element) Checked(ctx context.Context) (bool, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	_, checked := e.sel.Attr("checked")
	return checked || e.sel.AttrOr("aria-checked", "") == "true", ctx.Err()
}

// Click toggles checkboxes and radios and fires OnClick handlers. Clicks on
// disabled controls are recorded but have no effect.
func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()

	node := e.sel.Get(0)
	if _, disabled := e.sel.Attr("disabled"); disabled {
		e.page.clicked = append(e.page.clicked, node)
		return nil
	}

	if goquery.NodeName(e.sel) == "input" {
		switch strings.ToLower(e.sel.AttrOr("type", "")) {
		case "checkbox":
			if _, checked := e.sel.Attr("checked"); checked {
				e.sel.RemoveAttr("checked")
			} else {
				e.sel.SetAttr("checked", "")
			}
		case "radio":
			if name, ok := e.sel.Attr("name"); ok {
				e.page.doc.Find("input[type='radio']").FilterFunction(func(_ int, s *goquery.Selection) bool {
					return s.AttrOr("name", "") == name
				}).RemoveAttr("checked")
			}
			e.sel.SetAttr("checked", "")
		}
	}
	e.page.click(node)
	return nil
}

func (e *Element) Fill(ctx context.Context, value string) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	setValue(e.sel, value)
	return ctx.Err()
}

func (e *Element) Type(ctx context.Context, text string) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	setValue(e.sel, valueOf(e.sel)+text)
	return ctx.Err()
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	return ctx.Err()
}

func (e *Element) SetFiles(ctx context.Context, paths []string) error {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	e.page.files[e.sel.Get(0)] = append([]string(nil), paths...)
	return ctx.Err()
}

// attached reports whether node is still part of the live document.
func (p *Page) attached(node *html.Node) bool {
	root := p.doc.Get(0)
	for n := node; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	// Frame documents are not reachable from the main document.
	for _, doc := range p.frames {
		for n := node; n != nil; n = n.Parent {
			if n == doc.Get(0) {
				return true
			}
		}
	}
	return false
}

// rendered walks up from node looking for anything that hides it.
func rendered(node *html.Node) bool {
	if node.Type == html.ElementNode && node.Data == "input" && strings.EqualFold(attr(node, "type"), "hidden") {
		return false
	}
	for n := node; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if hasAttr(n, "hidden") {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(attr(n, "style")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

func valueOf(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	switch goquery.NodeName(sel) {
	case "textarea":
		return sel.Text()
	case "select":
		opt := sel.Find("option[selected]").First()
		if opt.Length() == 0 {
			opt = sel.Find("option").First()
		}
		if v, ok := opt.Attr("value"); ok {
			return v
		}
		return strings.TrimSpace(opt.Text())
	}
	return sel.AttrOr("value", "")
}

func setValue(sel *goquery.Selection, value string) {
	if goquery.NodeName(sel) == "textarea" {
		sel.SetText(value)
		return
	}
	sel.SetAttr("value", value)
}

var blockElements = map[string]bool{
	"div": true, "p": true, "li": true, "ul": true, "ol": true, "tr": true, "section": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// innerText approximates the rendered text of node: <br> and block elements
// break lines, whitespace runs collapse and blank lines are dropped.
func innerText(node *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "br":
				b.WriteString("\n")
				return
			case "script", "style":
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteString("\n")
		}
	}
	walk(node)

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
