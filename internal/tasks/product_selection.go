package tasks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwatch/internal/browser"
	"github.com/xkilldash9x/cartwatch/internal/config"
	"github.com/xkilldash9x/cartwatch/internal/gate"
	"github.com/xkilldash9x/cartwatch/internal/locator"
	"github.com/xkilldash9x/cartwatch/internal/rules"
)

const ProductSelectionName = "product-selection"

// ProductSelection searches a non-electronic category and opens the first
// real product whose name avoids the forbidden initial letters.
type ProductSelection struct {
	deps   *Deps
	cfg    config.ProductSelectionConfig
	window *gate.Window
}

func (t *ProductSelection) Name() string         { return ProductSelectionName }
func (t *ProductSelection) Window() *gate.Window { return t.window }

func (t *ProductSelection) Run(ctx context.Context, drv browser.Driver) (string, error) {
	f := t.deps.flow(t.Name(), drv)

	if err := f.search(ctx, t.cfg.Query); err != nil {
		return "", err
	}
	cards, err := f.results(ctx)
	if err != nil {
		return "", err
	}
	if t.cfg.MaxCandidates > 0 && len(cards) > t.cfg.MaxCandidates {
		cards = cards[:t.cfg.MaxCandidates]
	}

	var (
		chosen browser.Element
		title  string
	)
	for _, card := range cards {
		title = firstText(ctx, card, cardTitle)
		switch {
		case rules.IsJunkTitle(title):
			f.step(ctx, "candidate", false, fmt.Sprintf("%q is not a product", title))
			continue
		case rules.StartsWithForbidden(title, t.cfg.ForbiddenFirstLetters):
			f.step(ctx, "candidate", false, fmt.Sprintf("%q starts with one of %s", title, t.cfg.ForbiddenFirstLetters))
			continue
		}
		if _, ok := firstIn(ctx, card, cardAddToCart); !ok {
			f.step(ctx, "candidate", false, fmt.Sprintf("%q has no add-to-cart control", title))
			continue
		}
		chosen = card
		break
	}
	if chosen == nil {
		return "", fmt.Errorf("%w: none of %d results starts outside %s and can be added to the cart",
			ErrRuleViolated, len(cards), t.cfg.ForbiddenFirstLetters)
	}
	f.step(ctx, "candidate", true, title)
	f.logger.Info("Selected product.", zap.String("title", title))

	pageTitle, err := f.openCard(ctx, chosen)
	if err != nil {
		return "", err
	}
	if _, err := f.find(ctx, drv, addToCart, locator.Interactive()); err != nil {
		return "", fmt.Errorf("product page has no usable add-to-cart button: %w", err)
	}
	return fmt.Sprintf("opened %q", pageTitle), nil
}
