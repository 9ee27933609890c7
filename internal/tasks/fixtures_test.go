package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/cartwatch/internal/action"
	"github.com/xkilldash9x/cartwatch/internal/browser/browsertest"
	"github.com/xkilldash9x/cartwatch/internal/classify"
	"github.com/xkilldash9x/cartwatch/internal/config"
	"github.com/xkilldash9x/cartwatch/internal/locator"
	"github.com/xkilldash9x/cartwatch/internal/price"
	"github.com/xkilldash9x/cartwatch/internal/store"
)

const (
	base       = "https://shop.test"
	homeURL    = base + "/"
	resultsURL = base + "/s?k=query"
	productURL = base + "/dp/3"
	addedURL   = base + "/cart/added"
	cartURL    = base + "/gp/cart/view.html"
)

func header(label string) string {
	return `
<header>
  <form id="nav-search">
    <input id="twotabsearchtextbox" name="field-keywords" type="text">
    <input id="nav-search-submit-button" type="submit" value="Go">
  </form>
  <a id="nav-cart" href="/gp/cart/view.html">Cart</a>
  <a id="nav-link-accountList" href="/ap/signin"><span id="nav-link-accountList-nav-line-1">` + label + `</span></a>
</header>`
}

func doc(body string) string {
	return docAs("Hello, sign in", body)
}

func docAs(label, body string) string {
	return `<html><body>` + header(label) + body + `</body></html>`
}

const resultsBody = `
<div class="s-main-slot">
  <div class="s-result-item" data-component-type="s-search-result">
    <h2><a class="a-link-normal" href="/dp/1"><span>Amazon Pay Gift Card</span></a></h2>
  </div>
  <div class="s-result-item AdHolder" data-component-type="s-search-result">
    <span class="puis-sponsored-label-text">Sponsored</span>
    <h2><a class="a-link-normal" href="/dp/2"><span>Bamboo Desk</span></a></h2>
    <input type="submit" value="Add to Cart">
  </div>
  <div class="s-result-item" data-component-type="s-search-result">
    <h2><a class="a-link-normal" href="/dp/3"><span>Wooden Bookshelf</span></a></h2>
    <input type="submit" value="Add to Cart">
  </div>
</div>`

func productBody(title, price string) string {
	return `
<div id="dp">
  <span id="productTitle">` + title + `</span>
  <div class="a-price"><span class="a-offscreen">` + price + `</span></div>
  <input id="add-to-cart-button" type="submit" value="Add to Cart">
</div>`
}

func cartBody(total string) string {
	return `
<div id="sc-subtotal-amount-activecart"><span class="a-price"><span class="a-offscreen">` + total + `</span></span></div>
<input id="sc-buy-box-ptc-button" type="submit" value="Proceed to checkout">`
}

// shopPage wires a storefront: searching shows resultsBody, each result
// link opens its product, adding to cart confirms, and the cart shows total.
func shopPage(total string) *browsertest.Page {
	p := browsertest.NewPage(homeURL, doc(""))
	p.Route(cartURL, doc(cartBody(total)))
	p.On("#nav-search-submit-button", &browsertest.Behavior{OnActivate: func(p *browsertest.Page) {
		p.Load(resultsURL, doc(resultsBody))
	}})
	p.On("a[href='/dp/2']", &browsertest.Behavior{OnActivate: func(p *browsertest.Page) {
		p.Load(base+"/dp/2", doc(productBody("Bamboo Desk", "$120.00")))
	}})
	p.On("a[href='/dp/3']", &browsertest.Behavior{OnActivate: func(p *browsertest.Page) {
		p.Load(productURL, doc(productBody("Wooden Bookshelf", "$45.00")))
	}})
	p.On("#add-to-cart-button", &browsertest.Behavior{OnActivate: func(p *browsertest.Page) {
		p.Load(addedURL, doc(`<h1>Added to Cart</h1>`))
	}})
	p.On("#nav-cart", &browsertest.Behavior{OnActivate: func(p *browsertest.Page) {
		p.Load(cartURL, doc(cartBody(total)))
	}})
	return p
}

type recordingNotifier struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (r *recordingNotifier) Send(_ context.Context, subject, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.subjects = append(r.subjects, subject)
	return nil
}

func (r *recordingNotifier) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.subjects...)
}

func testDeps(t *testing.T) (*Deps, *recordingNotifier) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := config.NewDefaultConfig()
	tc := cfg.Tasks()
	tc.BaseURL = base

	res := cfg.Resilience()
	res.ResolveTimeout = 200 * time.Millisecond
	res.PollInterval = 5 * time.Millisecond
	res.RetryPause = 0
	res.SettleDelay = 0

	n := &recordingNotifier{}
	return &Deps{
		Tasks:      tc,
		Resilience: res,
		Logger:     logger,
		Resolver:   locator.NewResolver(logger, res.PollInterval, nil),
		Executor:   action.NewExecutor(logger, res.DirectAttempts, res.RetryPause, nil),
		Classifier: classify.New(logger, cfg.Classifier(), nil),
		Extractor:  price.NewExtractor(logger, cfg.Price().MaxPlausible, nil),
		Store:      store.NewMemory(),
		Notifier:   n,
		Clock:      func() time.Time { return time.Date(2026, 10, 15, 16, 0, 0, 0, time.UTC) },
	}, n
}
