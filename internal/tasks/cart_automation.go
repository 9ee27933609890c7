package tasks

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/cartwatch/internal/browser"
	"github.com/xkilldash9x/cartwatch/internal/config"
	"github.com/xkilldash9x/cartwatch/internal/gate"
	"github.com/xkilldash9x/cartwatch/internal/rules"
)

const CartAutomationName = "cart-automation"

// CartAutomation fills the cart with one product per query and asserts the
// subtotal clears the configured minimum.
type CartAutomation struct {
	deps   *Deps
	cfg    config.CartAutomationConfig
	window *gate.Window
}

func (t *CartAutomation) Name() string         { return CartAutomationName }
func (t *CartAutomation) Window() *gate.Window { return t.window }

func (t *CartAutomation) Run(ctx context.Context, drv browser.Driver) (string, error) {
	f := t.deps.flow(t.Name(), drv)

	if !rules.ValidUsername(t.cfg.Username) {
		return "", fmt.Errorf("%w: username %q must be exactly %d letters or digits",
			ErrRuleViolated, t.cfg.Username, rules.UsernameLength)
	}
	f.step(ctx, "username", true, t.cfg.Username)

	for _, q := range t.cfg.Queries {
		if err := f.search(ctx, q); err != nil {
			return "", err
		}
		cards, err := f.results(ctx)
		if err != nil {
			return "", fmt.Errorf("query %q: %w", q, err)
		}
		candidates := products(ctx, cards)
		if len(candidates) == 0 {
			return "", fmt.Errorf("query %q: no product among %d results", q, len(cards))
		}
		if _, err := f.openCard(ctx, candidates[0]); err != nil {
			return "", fmt.Errorf("query %q: %w", q, err)
		}
		if err := f.addToCart(ctx); err != nil {
			return "", fmt.Errorf("query %q: %w", q, err)
		}
		f.step(ctx, "added", true, q)
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
	return fmt.Sprintf("cart total %.2f %s above %.2f", total, policy, t.cfg.MinTotal), nil
}
