package tasks

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/cartwatch/internal/browser"
	"github.com/xkilldash9x/cartwatch/internal/config"
	"github.com/xkilldash9x/cartwatch/internal/gate"
	"github.com/xkilldash9x/cartwatch/internal/locator"
)

const CheckoutFlowName = "checkout-flow"

// CheckoutFlow buys the first organic result: it skips sponsored cards,
// adds the product to the cart, checks the subtotal and optionally proceeds
// to checkout.
type CheckoutFlow struct {
	deps   *Deps
	cfg    config.CheckoutFlowConfig
	window *gate.Window
}

func (t *CheckoutFlow) Name() string         { return CheckoutFlowName }
func (t *CheckoutFlow) Window() *gate.Window { return t.window }

func (t *CheckoutFlow) Run(ctx context.Context, drv browser.Driver) (string, error) {
	f := t.deps.flow(t.Name(), drv)

	if err := f.search(ctx, t.cfg.Query); err != nil {
		return "", err
	}
	cards, err := f.results(ctx)
	if err != nil {
		return "", err
	}

	var title string
	candidates := products(ctx, cards)
	if idx, verdict, ok := t.deps.Classifier.FirstOrganic(ctx, candidates); ok {
		f.step(ctx, "organic result", true, fmt.Sprintf("index=%d %s", idx, verdict))
		if title, err = f.openCard(ctx, candidates[idx]); err != nil {
			return "", err
		}
	} else {
		f.step(ctx, "organic result", false, fmt.Sprintf("no organic product among %d results", len(cards)))
		link, err := f.find(ctx, drv, fallbackProductLinks, locator.Interactive())
		if err != nil {
			return "", fmt.Errorf("no product to open: %w", err)
		}
		if title, err = f.openLink(ctx, link); err != nil {
			return "", err
		}
	}

	if err := f.addToCart(ctx); err != nil {
		return "", err
	}
	if err := f.openCart(ctx); err != nil {
		return "", err
	}
	amt, total, err := f.cartTotal(ctx)
	if err != nil {
		return "", err
	}
	policy := t.deps.Tasks.PolicyCurrency
	if total <= t.cfg.MinTotal {
		return "", fmt.Errorf("%w: cart total %s (%.2f %s) is not above %.2f %s",
			ErrRuleViolated, amt, total, policy, t.cfg.MinTotal, policy)
	}

	msg := fmt.Sprintf("bought %q, cart total %.2f %s", title, total, policy)
	if !t.cfg.ProceedToCheckout {
		f.step(ctx, "checkout", true, "not requested")
		return msg, nil
	}
	btn, ok := f.optional(ctx, drv, proceedToCheckout, locator.Interactive())
	if !ok {
		f.step(ctx, "checkout", false, "no proceed button")
		return msg + ", no checkout button", nil
	}
	if err := f.activate(ctx, btn, "proceed to checkout"); err != nil {
		return "", err
	}
	if err := f.settle(ctx); err != nil {
		return "", err
	}
	if err := f.blocked(ctx); err != nil {
		return "", err
	}
	return msg + ", proceeded to checkout", nil
}
