package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwatch/internal/browser"
	"github.com/xkilldash9x/cartwatch/internal/locator"
	"github.com/xkilldash9x/cartwatch/internal/price"
	"github.com/xkilldash9x/cartwatch/internal/rules"
	"github.com/xkilldash9x/cartwatch/internal/trace"
)

// flow binds the shared collaborators to one task's session.
type flow struct {
	d      *Deps
	drv    browser.Driver
	logger *zap.Logger
}

func (d *Deps) flow(name string, drv browser.Driver) *flow {
	return &flow{d: d, drv: drv, logger: d.Logger.With(zap.String("task", name))}
}

func (f *flow) step(ctx context.Context, name string, ok bool, detail string) {
	trace.FromContext(ctx).Add(trace.KindStep, name, ok, detail)
	f.logger.Debug("Step.", zap.String("step", name), zap.Bool("ok", ok), zap.String("detail", detail))
}

// settle waits for client-side rendering after a page transition.
func (f *flow) settle(ctx context.Context) error {
	d := f.d.Resilience.SettleDelay
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (f *flow) navigate(ctx context.Context, url string) error {
	if err := f.drv.Navigate(ctx, url); err != nil {
		f.step(ctx, "navigate", false, url)
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	f.step(ctx, "navigate", true, url)
	return f.settle(ctx)
}

// home opens the storefront unless the session is already on it.
func (f *flow) home(ctx context.Context) error {
	base := strings.TrimRight(f.d.Tasks.BaseURL, "/")
	if cur, err := f.drv.CurrentURL(ctx); err == nil && strings.HasPrefix(cur, base) {
		return nil
	}
	return f.navigate(ctx, base+"/")
}

// find resolves a required element within the full resolve timeout.
func (f *flow) find(ctx context.Context, scope browser.Scope, chain locator.Chain, opts ...locator.Option) (browser.Element, error) {
	res, err := f.d.Resolver.MustResolve(ctx, scope, chain, f.d.Resilience.ResolveTimeout, opts...)
	if err != nil {
		return nil, err
	}
	return res.Element, nil
}

// optional resolves an element that may legitimately be absent, spending a
// quarter of the resolve timeout on it.
func (f *flow) optional(ctx context.Context, scope browser.Scope, chain locator.Chain, opts ...locator.Option) (browser.Element, bool) {
	res, ok := f.d.Resolver.Resolve(ctx, scope, chain, f.d.Resilience.ResolveTimeout/4, opts...)
	return res.Element, ok
}

// activate clicks el through the executor's escalation ladder.
func (f *flow) activate(ctx context.Context, el browser.Element, what string) error {
	if err := f.d.Executor.Activate(ctx, el).Err(); err != nil {
		f.step(ctx, "activate "+what, false, err.Error())
		return fmt.Errorf("could not activate %s: %w", what, err)
	}
	f.step(ctx, "activate "+what, true, el.Describe())
	return nil
}

// blocked reports ErrBlocked when the session landed on a challenge page.
func (f *flow) blocked(ctx context.Context) error {
	if cur, err := f.drv.CurrentURL(ctx); err == nil && strings.Contains(cur, "validateCaptcha") {
		return fmt.Errorf("%w: %s", ErrBlocked, cur)
	}
	for _, loc := range challengeMarkers.Locators() {
		if el, err := browser.First(ctx, f.drv, loc); err == nil && el != nil {
			return fmt.Errorf("%w: found %s", ErrBlocked, loc)
		}
	}
	return nil
}

func (f *flow) fill(ctx context.Context, chain locator.Chain, text string) (browser.Element, error) {
	el, err := f.find(ctx, f.drv, chain, locator.Interactive())
	if err != nil {
		return nil, err
	}
	if err := el.Clear(ctx); err != nil {
		return nil, fmt.Errorf("failed to clear %s: %w", chain.Name(), err)
	}
	if err := el.Type(ctx, text); err != nil {
		return nil, fmt.Errorf("failed to type into %s: %w", chain.Name(), err)
	}
	return el, nil
}

// search runs a storefront query, preferring the submit button and falling
// back to submitting the search form.
func (f *flow) search(ctx context.Context, query string) error {
	if err := f.home(ctx); err != nil {
		return err
	}
	box, err := f.fill(ctx, searchBox, query)
	if err != nil {
		return fmt.Errorf("search for %q: %w", query, err)
	}
	submitted := false
	if btn, ok := f.optional(ctx, f.drv, searchSubmit, locator.Interactive()); ok {
		submitted = f.activate(ctx, btn, "search submit") == nil
	}
	if !submitted {
		if err := box.Submit(ctx); err != nil {
			return fmt.Errorf("search for %q: failed to submit: %w", query, err)
		}
	}
	f.step(ctx, "search", true, query)
	if err := f.settle(ctx); err != nil {
		return err
	}
	return f.blocked(ctx)
}

// results waits for the result grid and returns the cards matched by the
// first locator that yields any.
func (f *flow) results(ctx context.Context) ([]browser.Element, error) {
	if _, err := f.find(ctx, f.drv, resultCards); err != nil {
		return nil, fmt.Errorf("no search results: %w", err)
	}
	for _, loc := range resultCards.Locators() {
		els, err := f.drv.FindAll(ctx, loc)
		if err == nil && len(els) > 0 {
			return els, nil
		}
	}
	return nil, fmt.Errorf("no search results: %w", locator.ErrElementNotFound)
}

// firstText returns the first non-empty visible text under scope along
// the chain.
func firstText(ctx context.Context, scope browser.Scope, chain locator.Chain) string {
	for _, loc := range chain.Locators() {
		el, err := browser.First(ctx, scope, loc)
		if err != nil || el == nil {
			continue
		}
		if text, err := el.Text(ctx); err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	return ""
}

func firstIn(ctx context.Context, scope browser.Scope, chain locator.Chain) (browser.Element, bool) {
	for _, loc := range chain.Locators() {
		if el, err := browser.First(ctx, scope, loc); err == nil && el != nil {
			return el, true
		}
	}
	return nil, false
}

// openCard follows a result card's product link and confirms the product
// page rendered a title.
func (f *flow) openCard(ctx context.Context, card browser.Element) (string, error) {
	link, ok := firstIn(ctx, card, cardLink)
	if !ok {
		return "", fmt.Errorf("result %s has no product link: %w", card.Describe(), locator.ErrElementNotFound)
	}
	return f.openLink(ctx, link)
}

func (f *flow) openLink(ctx context.Context, link browser.Element) (string, error) {
	if err := f.activate(ctx, link, "product link"); err != nil {
		return "", err
	}
	if err := f.settle(ctx); err != nil {
		return "", err
	}
	title, err := f.find(ctx, f.drv, productTitle, locator.RequireText())
	if err != nil {
		return "", fmt.Errorf("product page: %w", err)
	}
	text, err := title.Text(ctx)
	if err != nil {
		return "", fmt.Errorf("product page title: %w", err)
	}
	f.step(ctx, "product page", true, text)
	return text, nil
}

// products drops cards that are store credit or have no product link.
func products(ctx context.Context, cards []browser.Element) []browser.Element {
	out := make([]browser.Element, 0, len(cards))
	for _, card := range cards {
		if rules.IsJunkTitle(firstText(ctx, card, cardTitle)) {
			continue
		}
		if _, ok := firstIn(ctx, card, cardLink); !ok {
			continue
		}
		out = append(out, card)
	}
	return out
}

func (f *flow) addToCart(ctx context.Context) error {
	btn, err := f.find(ctx, f.drv, addToCart, locator.Interactive())
	if err != nil {
		return fmt.Errorf("add to cart: %w", err)
	}
	if err := f.activate(ctx, btn, "add to cart"); err != nil {
		return err
	}
	return f.settle(ctx)
}

func (f *flow) openCart(ctx context.Context) error {
	if link, ok := f.optional(ctx, f.drv, cartLink, locator.Interactive()); ok {
		if err := f.activate(ctx, link, "cart"); err == nil {
			return f.settle(ctx)
		}
	}
	return f.navigate(ctx, strings.TrimRight(f.d.Tasks.BaseURL, "/")+"/gp/cart/view.html")
}

// cartTotal extracts the cart subtotal and converts it into the policy
// currency.
func (f *flow) cartTotal(ctx context.Context) (price.Amount, float64, error) {
	amt, err := f.d.Extractor.MustExtract(ctx, f.drv, cartTotalTargets)
	if err != nil {
		return price.Amount{}, 0, fmt.Errorf("cart total: %w", err)
	}
	converted, err := f.toPolicy(amt)
	if err != nil {
		return amt, 0, err
	}
	f.step(ctx, "cart total", true, fmt.Sprintf("%s = %.2f %s", amt, converted, f.d.Tasks.PolicyCurrency))
	return amt, converted, nil
}

// toPolicy converts amt into the policy currency. An amount with no
// currency mark is taken to be in the policy currency already.
func (f *flow) toPolicy(amt price.Amount) (float64, error) {
	currency := amt.Currency
	if currency == "" {
		currency = f.d.Tasks.PolicyCurrency
	}
	rate, ok := f.d.Tasks.Rate(currency)
	if !ok {
		return 0, fmt.Errorf("no exchange rate from %s to %s", currency, f.d.Tasks.PolicyCurrency)
	}
	return amt.Value * rate, nil
}
