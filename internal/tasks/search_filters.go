package tasks

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwatch/internal/browser"
	"github.com/xkilldash9x/cartwatch/internal/config"
	"github.com/xkilldash9x/cartwatch/internal/gate"
	"github.com/xkilldash9x/cartwatch/internal/locator"
	"github.com/xkilldash9x/cartwatch/internal/rules"
)

const SearchFiltersName = "search-filters"

// SearchFilters narrows a search by brand, minimum price and minimum rating,
// then confirms the filters took effect and the results carry the brand.
type SearchFilters struct {
	deps   *Deps
	cfg    config.SearchFiltersConfig
	window *gate.Window
}

func (t *SearchFilters) Name() string         { return SearchFiltersName }
func (t *SearchFilters) Window() *gate.Window { return t.window }

func (t *SearchFilters) Run(ctx context.Context, drv browser.Driver) (string, error) {
	f := t.deps.flow(t.Name(), drv)

	if err := f.search(ctx, t.cfg.Query); err != nil {
		return "", err
	}
	if _, err := f.results(ctx); err != nil {
		return "", err
	}

	if err := t.applyBrand(ctx, f); err != nil {
		return "", err
	}
	if err := t.applyPrice(ctx, f); err != nil {
		return "", err
	}
	rating, err := t.applyRating(ctx, f)
	if err != nil {
		return "", err
	}
	if err := t.verifyFilters(ctx, f); err != nil {
		return "", err
	}
	brand, err := t.verifyBrand(ctx, f)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("price >= %.0f, rating >= %.0f, brand %q", t.cfg.MinPrice, rating, brand), nil
}

// applyBrand clicks a brand refinement matching the prefix when the page
// offers one. The query already carries the prefix, so its absence is not
// an error.
func (t *SearchFilters) applyBrand(ctx context.Context, f *flow) error {
	for _, link := range t.deps.Resolver.ResolveAll(ctx, f.drv, brandLinks) {
		text, err := link.Text(ctx)
		if err != nil || !rules.BrandMatches(text, t.cfg.BrandPrefix) {
			continue
		}
		if err := f.activate(ctx, link, "brand filter"); err != nil {
			return err
		}
		f.step(ctx, "brand filter", true, text)
		return f.settle(ctx)
	}
	f.step(ctx, "brand filter", false, "no matching refinement, relying on query")
	return nil
}

func (t *SearchFilters) applyPrice(ctx context.Context, f *flow) error {
	input, err := f.fill(ctx, priceMinInput, strconv.Itoa(int(t.cfg.MinPrice)))
	if err != nil {
		return fmt.Errorf("price filter: %w", err)
	}
	submitted := false
	if btn, ok := f.optional(ctx, f.drv, priceGo, locator.Interactive()); ok {
		submitted = f.activate(ctx, btn, "price filter") == nil
	}
	if !submitted {
		if err := input.Submit(ctx); err != nil {
			return fmt.Errorf("price filter: failed to submit: %w", err)
		}
	}
	f.step(ctx, "price filter", true, fmt.Sprintf(">= %.0f", t.cfg.MinPrice))
	return f.settle(ctx)
}

// applyRating clicks the first review refinement whose star bound, read
// from its text or its p_72 href parameter, meets the minimum.
func (t *SearchFilters) applyRating(ctx context.Context, f *flow) (float64, error) {
	floor := float64(t.cfg.MinRating)
	links := t.deps.Resolver.ResolveAll(ctx, f.drv, ratingLinks)
	for _, link := range links {
		text, _ := link.Text(ctx)
		href, _, _ := link.Attr(ctx, "href")
		r, ok := rules.Rating(text, href)
		if !ok || r < floor {
			continue
		}
		if err := f.activate(ctx, link, "rating filter"); err != nil {
			f.logger.Warn("Rating refinement could not be clicked.", zap.String("link", link.Describe()), zap.Error(err))
			continue
		}
		f.step(ctx, "rating filter", true, fmt.Sprintf("%.1f stars & up", r))
		return r, f.settle(ctx)
	}
	return 0, fmt.Errorf("%w: no rating refinement of at least %d stars among %d links",
		ErrRuleViolated, t.cfg.MinRating, len(links))
}

// verifyFilters confirms both refinements through the URL or, failing that,
// through the page's active-filter indicators.
func (t *SearchFilters) verifyFilters(ctx context.Context, f *flow) error {
	var st rules.FilterState
	if cur, err := f.drv.CurrentURL(ctx); err == nil {
		st = rules.FiltersFromURL(cur)
	}
	if !st.Price || !st.Rating {
		for _, el := range t.deps.Resolver.ResolveAll(ctx, f.drv, activeFilters) {
			text, err := el.Text(ctx)
			if err != nil {
				continue
			}
			st.Price = st.Price || rules.IndicatesPriceFilter(text)
			st.Rating = st.Rating || rules.IndicatesRatingFilter(text)
		}
	}
	f.step(ctx, "filters verified", st.Price && st.Rating, fmt.Sprintf("price=%t rating=%t", st.Price, st.Rating))
	switch {
	case !st.Price:
		return fmt.Errorf("%w: minimum price filter is not reflected on the results page", ErrRuleViolated)
	case !st.Rating:
		return fmt.Errorf("%w: rating filter is not reflected on the results page", ErrRuleViolated)
	}
	return nil
}

// verifyBrand looks through the first results for a brand label or a
// capitalized title word starting with the prefix.
func (t *SearchFilters) verifyBrand(ctx context.Context, f *flow) (string, error) {
	cards, err := f.results(ctx)
	if err != nil {
		return "", err
	}
	if t.cfg.InspectResults > 0 && len(cards) > t.cfg.InspectResults {
		cards = cards[:t.cfg.InspectResults]
	}
	for _, card := range cards {
		if brand := firstText(ctx, card, cardBrand); rules.BrandMatches(brand, t.cfg.BrandPrefix) {
			f.step(ctx, "brand", true, brand)
			return brand, nil
		}
		if brand, ok := rules.BrandInTitle(firstText(ctx, card, cardTitle), t.cfg.BrandPrefix); ok {
			f.step(ctx, "brand", true, brand)
			return brand, nil
		}
	}
	return "", fmt.Errorf("%w: none of the first %d results has a brand starting with %q",
		ErrRuleViolated, len(cards), t.cfg.BrandPrefix)
}
