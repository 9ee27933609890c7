// Package browsertest provides an in-memory browser.Driver backed by goquery
// so resolver, executor and task logic can be exercised against HTML
// fixtures. Visibility follows the hidden attribute and inline display or
// visibility styles; enabled state follows disabled and aria-disabled.
// Click behavior is scripted per selector.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/cartwatch/internal/browser"
)

// Behavior scripts how matching elements react to activation.
type Behavior struct {
	// DirectFailures makes the first n native clicks fail with DirectErr.
	// A negative value fails every native click.
	DirectFailures int
	// DirectErr defaults to browser.ErrClickIntercepted.
	DirectErr  error
	ScriptErr  error
	PointerErr error
	ScrollErr  error
	// OnActivate runs after any successful click strategy.
	OnActivate func(p *Page)
}

// ClickEvent records one successful activation.
type ClickEvent struct {
	Method string
	Target string
}

type registered struct {
	selector string
	behavior *Behavior
}

// Page is a single fake browser tab.
type Page struct {
	mu        sync.Mutex
	doc       *goquery.Document
	url       string
	gen       int
	routes    map[string]string
	behaviors []registered
	xpath     map[string]string
	findErrs  map[browser.Locator]error

	clicks    []ClickEvent
	scrolls   int
	submits   int
	onSubmit  func(p *Page, form string)
	navigated []string
}

var _ browser.Driver = (*Page)(nil)

// NewPage creates a page showing the given markup at url.
func NewPage(url, markup string) *Page {
	p := &Page{
		routes:   map[string]string{},
		xpath:    map[string]string{},
		findErrs: map[browser.Locator]error{},
	}
	p.load(url, markup)
	return p
}

func (p *Page) load(url, markup string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		panic(fmt.Sprintf("browsertest: bad fixture markup: %v", err))
	}
	p.doc = doc
	p.url = url
	p.gen++
}

// Load swaps the current document, invalidating all earlier elements.
func (p *Page) Load(url, markup string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.load(url, markup)
}

// Route registers the markup served when Navigate is called with url.
func (p *Page) Route(url, markup string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[url] = markup
	return p
}

// On scripts the behavior of every element matching the CSS selector,
// including elements in documents loaded later.
func (p *Page) On(selector string, b *Behavior) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.behaviors = append(p.behaviors, registered{selector: selector, behavior: b})
	return p
}

// XPath maps an XPath expression to an equivalent CSS selector, since the
// fake has no XPath engine.
func (p *Page) XPath(expr, css string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.xpath[expr] = css
	return p
}

// FailFind makes every lookup of loc return err.
func (p *Page) FailFind(loc browser.Locator, err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.findErrs[loc] = err
	return p
}

// OnSubmit registers a hook for Element.Submit.
func (p *Page) OnSubmit(fn func(p *Page, form string)) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onSubmit = fn
	return p
}

// Clicks returns the successful activations so far.
func (p *Page) Clicks() []ClickEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ClickEvent(nil), p.clicks...)
}

// Scrolls returns how many times ScrollIntoView succeeded.
func (p *Page) Scrolls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrolls
}

// Submits returns how many times Submit was called.
func (p *Page) Submits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submits
}

// Navigations returns every URL passed to Navigate.
func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigated...)
}

// Value returns the current value attribute of the first match.
func (p *Page) Value(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, _ := p.doc.Find(selector).First().Attr("value")
	return v
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	markup, ok := p.routes[url]
	if !ok {
		return fmt.Errorf("browsertest: no route for %s", url)
	}
	p.load(url, markup)
	return nil
}

func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, ctx.Err()
}

func (p *Page) PageSource(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.doc.Html()
}

func (p *Page) FindAll(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.findLocked(p.doc.Selection, loc)
}

func (p *Page) findLocked(scope *goquery.Selection, loc browser.Locator) ([]browser.Element, error) {
	if err, ok := p.findErrs[loc]; ok {
		return nil, err
	}
	css := loc.Expr()
	if loc.IsXPath() {
		mapped, ok := p.xpath[css]
		if !ok {
			return nil, fmt.Errorf("%w: no css mapping for xpath %q", browser.ErrInvalidLocator, css)
		}
		css = mapped
	}
	if _, err := cascadia.Compile(css); err != nil {
		return nil, fmt.Errorf("%w: %v", browser.ErrInvalidLocator, err)
	}
	var out []browser.Element
	scope.Find(css).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{page: p, node: s.Get(0), gen: p.gen})
	})
	return out, nil
}

func (p *Page) behaviorFor(n *html.Node) *Behavior {
	for _, r := range p.behaviors {
		if p.doc.Find(r.selector).IndexOfNode(n) >= 0 {
			return r.behavior
		}
	}
	return nil
}
