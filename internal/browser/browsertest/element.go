package browsertest

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/cartwatch/internal/browser"
)

// Element is a node in a Page's current document.
type Element struct {
	page *Page
	node *html.Node
	gen  int
}

var _ browser.Element = (*Element)(nil)

// lock acquires the page lock and checks the element still belongs to the
// current document.
func (e *Element) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.mu.Lock()
	if e.gen != e.page.gen {
		e.page.mu.Unlock()
		return browser.ErrStaleElement
	}
	return nil
}

func (e *Element) sel() *goquery.Selection {
	return e.page.doc.FindNodes(e.node)
}

func (e *Element) FindAll(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	if err := e.lock(ctx); err != nil {
		return nil, err
	}
	defer e.page.mu.Unlock()
	return e.page.findLocked(e.sel(), loc)
}

func (e *Element) Attr(ctx context.Context, name string) (string, bool, error) {
	if err := e.lock(ctx); err != nil {
		return "", false, err
	}
	defer e.page.mu.Unlock()
	v, ok := e.sel().Attr(name)
	return v, ok, nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if err := e.lock(ctx); err != nil {
		return "", err
	}
	defer e.page.mu.Unlock()
	if !displayed(e.node) {
		return "", nil
	}
	return strings.Join(strings.Fields(visibleText(e.node)), " "), nil
}

func (e *Element) OuterHTML(ctx context.Context) (string, error) {
	if err := e.lock(ctx); err != nil {
		return "", err
	}
	defer e.page.mu.Unlock()
	return goquery.OuterHtml(e.sel())
}

func (e *Element) Displayed(ctx context.Context) (bool, error) {
	if err := e.lock(ctx); err != nil {
		return false, err
	}
	defer e.page.mu.Unlock()
	return displayed(e.node), nil
}

func (e *Element) Enabled(ctx context.Context) (bool, error) {
	if err := e.lock(ctx); err != nil {
		return false, err
	}
	defer e.page.mu.Unlock()
	if _, ok := e.sel().Attr("disabled"); ok {
		return false, nil
	}
	v, _ := e.sel().Attr("aria-disabled")
	return v != "true", nil
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	if err := e.lock(ctx); err != nil {
		return err
	}
	defer e.page.mu.Unlock()
	if b := e.page.behaviorFor(e.node); b != nil && b.ScrollErr != nil {
		return b.ScrollErr
	}
	e.page.scrolls++
	return nil
}

func (e *Element) Click(ctx context.Context) error {
	return e.activate(ctx, "direct", func(b *Behavior) error {
		if !displayed(e.node) {
			return browser.ErrNotInteractable
		}
		if v, _ := e.sel().Attr("data-occluded"); v == "true" {
			return fmt.Errorf("%w: covered at center", browser.ErrClickIntercepted)
		}
		if b == nil || b.DirectFailures == 0 {
			return nil
		}
		if b.DirectFailures > 0 {
			b.DirectFailures--
		}
		if b.DirectErr != nil {
			return b.DirectErr
		}
		return browser.ErrClickIntercepted
	})
}

func (e *Element) ScriptClick(ctx context.Context) error {
	return e.activate(ctx, "script", func(b *Behavior) error {
		if b != nil {
			return b.ScriptErr
		}
		return nil
	})
}

func (e *Element) PointerClick(ctx context.Context) error {
	return e.activate(ctx, "pointer", func(b *Behavior) error {
		if !displayed(e.node) {
			return browser.ErrNotInteractable
		}
		if v, _ := e.sel().Attr("data-occluded"); v == "true" {
			return browser.ErrClickIntercepted
		}
		if b != nil {
			return b.PointerErr
		}
		return nil
	})
}

// activate runs check under the page lock and, on success, records the
// click and fires the OnActivate hook with the lock released.
func (e *Element) activate(ctx context.Context, method string, check func(*Behavior) error) error {
	if err := e.lock(ctx); err != nil {
		return err
	}
	b := e.page.behaviorFor(e.node)
	if err := check(b); err != nil {
		e.page.mu.Unlock()
		return err
	}
	e.page.clicks = append(e.page.clicks, ClickEvent{Method: method, Target: describe(e.node)})
	e.page.mu.Unlock()

	if b != nil && b.OnActivate != nil {
		b.OnActivate(e.page)
	}
	return nil
}

func (e *Element) Parent(ctx context.Context) (browser.Element, error) {
	if err := e.lock(ctx); err != nil {
		return nil, err
	}
	defer e.page.mu.Unlock()
	parent := e.node.Parent
	if parent == nil || parent.Type != html.ElementNode {
		return nil, browser.ErrNoParent
	}
	return &Element{page: e.page, node: parent, gen: e.gen}, nil
}

func (e *Element) Clear(ctx context.Context) error {
	if err := e.lock(ctx); err != nil {
		return err
	}
	defer e.page.mu.Unlock()
	e.sel().SetAttr("value", "")
	return nil
}

func (e *Element) Type(ctx context.Context, text string) error {
	if err := e.lock(ctx); err != nil {
		return err
	}
	defer e.page.mu.Unlock()
	if !displayed(e.node) {
		return browser.ErrNotInteractable
	}
	v, _ := e.sel().Attr("value")
	e.sel().SetAttr("value", v+text)
	return nil
}

func (e *Element) Submit(ctx context.Context) error {
	if err := e.lock(ctx); err != nil {
		return err
	}
	e.page.submits++
	hook := e.page.onSubmit
	form := ""
	if f := e.sel().Closest("form"); f.Length() > 0 {
		form, _ = f.Attr("id")
	}
	e.page.mu.Unlock()
	if hook != nil {
		hook(e.page, form)
	}
	return nil
}

func (e *Element) ID() string { return fmt.Sprintf("%d:%p", e.gen, e.node) }

func (e *Element) Describe() string { return describe(e.node) }

func describe(n *html.Node) string {
	var b strings.Builder
	b.WriteString(n.Data)
	for _, a := range n.Attr {
		switch a.Key {
		case "id":
			b.WriteString("#" + a.Val)
		case "class":
			if f := strings.Fields(a.Val); len(f) > 0 {
				b.WriteString("." + f[0])
			}
		}
	}
	return b.String()
}

func displayed(n *html.Node) bool {
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		for _, a := range cur.Attr {
			switch a.Key {
			case "hidden":
				return false
			case "type":
				if cur.Data == "input" && a.Val == "hidden" {
					return false
				}
			case "style":
				style := strings.ReplaceAll(strings.ToLower(a.Val), " ", "")
				if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
					return false
				}
			}
		}
	}
	return true
}

// visibleText concatenates text under n, skipping hidden subtrees and
// script or style content.
func visibleText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		switch cur.Type {
		case html.TextNode:
			b.WriteString(cur.Data)
			b.WriteString(" ")
			return
		case html.ElementNode:
			if cur.Data == "script" || cur.Data == "style" || !displayedSelf(cur) {
				return
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func displayedSelf(n *html.Node) bool {
	detached := *n
	detached.Parent = nil
	return displayed(&detached)
}
