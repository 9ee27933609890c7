// Package price reads a monetary amount off a page through a cascade of
// progressively broader strategies, and never invents one.
package price

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwatch/internal/browser"
	"github.com/xkilldash9x/cartwatch/internal/locator"
	"github.com/xkilldash9x/cartwatch/internal/trace"
)

// ErrNoExtractableValue is returned when every strategy failed.
var ErrNoExtractableValue = errors.New("no extractable price")

// Strategy names an extraction approach.
type Strategy string

const (
	PrimarySelector Strategy = "primary-selector"
	StructuralScan  Strategy = "structural-scan"
	RawTextScan     Strategy = "raw-text-scan"
)

// maxCandidates bounds how many elements a scan inspects per locator.
const maxCandidates = 50

// Amount is an extracted price. Value is always positive.
type Amount struct {
	Value    float64
	Currency string
	Strategy Strategy
	// Source is the locator or pattern that produced the value.
	Source string
}

func (a Amount) String() string {
	if a.Currency == "" {
		return fmt.Sprintf("%.2f", a.Value)
	}
	return fmt.Sprintf("%.2f %s", a.Value, a.Currency)
}

// Attempt records one candidate text examined.
type Attempt struct {
	Strategy Strategy
	Source   string
	Text     string
	Err      error
}

// Targets tells the extractor where to look on a particular page.
type Targets struct {
	// Primary is searched first; the first positive value wins.
	Primary locator.Chain
	// Structural locators are broader page scans, usually XPath over
	// currency-marked text; values must be plausible.
	Structural []browser.Locator
}

// Observer receives extraction outcomes.
type Observer interface {
	RecordExtraction(strategy string, found bool)
}

// Extractor runs the cascade.
type Extractor struct {
	logger       *zap.Logger
	maxPlausible float64
	observer     Observer
}

// NewExtractor creates an Extractor. Scanned values above maxPlausible are
// rejected.
func NewExtractor(logger *zap.Logger, maxPlausible float64, observer Observer) *Extractor {
	return &Extractor{
		logger:       logger.Named("extractor"),
		maxPlausible: maxPlausible,
		observer:     observer,
	}
}

var rawAmount = regexp.MustCompile(`(US\$|\$|₹|Rs\.?|€|£)\s?([0-9][0-9,]*\.[0-9]{2})`)

// Extract tries the primary selectors, then the structural scan, then a
// regex over the raw page markup. It returns false when nothing yields a
// value, along with every attempt made.
func (x *Extractor) Extract(ctx context.Context, page browser.Driver, t Targets) (Amount, bool, []Attempt) {
	var attempts []Attempt

	steps := []struct {
		strategy Strategy
		run      func() (Amount, bool)
	}{
		{PrimarySelector, func() (Amount, bool) { return x.primary(ctx, page, t.Primary, &attempts) }},
		{StructuralScan, func() (Amount, bool) { return x.structural(ctx, page, t.Structural, &attempts) }},
		{RawTextScan, func() (Amount, bool) { return x.raw(ctx, page, &attempts) }},
	}
	for _, s := range steps {
		if ctx.Err() != nil {
			break
		}
		if amt, ok := s.run(); ok {
			x.record(ctx, amt.Strategy, true, amt.String())
			x.logger.Debug("Price extracted.",
				zap.String("strategy", string(amt.Strategy)),
				zap.String("source", amt.Source),
				zap.Float64("value", amt.Value),
				zap.String("currency", amt.Currency),
			)
			return amt, true, attempts
		}
	}

	x.record(ctx, "", false, fmt.Sprintf("%d candidates rejected", len(attempts)))
	x.logger.Warn("No price could be extracted.", zap.Int("attempts", len(attempts)))
	return Amount{}, false, attempts
}

// MustExtract is Extract with absence reported as ErrNoExtractableValue.
func (x *Extractor) MustExtract(ctx context.Context, page browser.Driver, t Targets) (Amount, error) {
	amt, ok, attempts := x.Extract(ctx, page, t)
	if ok {
		return amt, nil
	}
	if err := ctx.Err(); err != nil {
		return Amount{}, err
	}
	return Amount{}, fmt.Errorf("%w after %d candidates", ErrNoExtractableValue, len(attempts))
}

func (x *Extractor) primary(ctx context.Context, page browser.Driver, chain locator.Chain, attempts *[]Attempt) (Amount, bool) {
	for _, loc := range chain.Locators() {
		els, err := page.FindAll(ctx, loc)
		if err != nil {
			*attempts = append(*attempts, Attempt{Strategy: PrimarySelector, Source: loc.String(), Err: err})
			continue
		}
		for _, el := range limit(els) {
			text := elementText(ctx, el)
			v, err := Normalize(text)
			*attempts = append(*attempts, Attempt{Strategy: PrimarySelector, Source: loc.String(), Text: text, Err: err})
			if err == nil {
				return Amount{Value: v, Currency: DetectCurrency(text), Strategy: PrimarySelector, Source: loc.String()}, true
			}
		}
	}
	return Amount{}, false
}

func (x *Extractor) structural(ctx context.Context, page browser.Driver, locs []browser.Locator, attempts *[]Attempt) (Amount, bool) {
	for _, loc := range locs {
		els, err := page.FindAll(ctx, loc)
		if err != nil {
			*attempts = append(*attempts, Attempt{Strategy: StructuralScan, Source: loc.String(), Err: err})
			continue
		}
		for _, el := range limit(els) {
			text := elementText(ctx, el)
			v, err := Normalize(text)
			if err == nil && !x.plausible(v) {
				err = fmt.Errorf("%w: %.2f outside (0, %.0f]", ErrParseFailure, v, x.maxPlausible)
			}
			*attempts = append(*attempts, Attempt{Strategy: StructuralScan, Source: loc.String(), Text: text, Err: err})
			if err == nil {
				return Amount{Value: v, Currency: DetectCurrency(text), Strategy: StructuralScan, Source: loc.String()}, true
			}
		}
	}
	return Amount{}, false
}

func (x *Extractor) raw(ctx context.Context, page browser.Driver, attempts *[]Attempt) (Amount, bool) {
	markup, err := page.PageSource(ctx)
	if err != nil {
		*attempts = append(*attempts, Attempt{Strategy: RawTextScan, Source: "page source", Err: err})
		return Amount{}, false
	}
	for _, m := range rawAmount.FindAllStringSubmatch(markup, maxCandidates) {
		v, err := Normalize(m[2])
		if err == nil && !x.plausible(v) {
			err = fmt.Errorf("%w: %.2f outside (0, %.0f]", ErrParseFailure, v, x.maxPlausible)
		}
		*attempts = append(*attempts, Attempt{Strategy: RawTextScan, Source: rawAmount.String(), Text: m[0], Err: err})
		if err == nil {
			return Amount{Value: v, Currency: DetectCurrency(m[1]), Strategy: RawTextScan, Source: rawAmount.String()}, true
		}
	}
	return Amount{}, false
}

func (x *Extractor) plausible(v float64) bool {
	return v > 0 && v <= x.maxPlausible
}

func (x *Extractor) record(ctx context.Context, s Strategy, found bool, detail string) {
	if x.observer != nil {
		x.observer.RecordExtraction(string(s), found)
	}
	name := string(s)
	if name == "" {
		name = "exhausted"
	}
	trace.FromContext(ctx).Add(trace.KindExtract, name, found, detail)
}

// elementText returns the rendered text, falling back to the markup's text
// content for visually hidden price spans.
func elementText(ctx context.Context, el browser.Element) string {
	if text, err := el.Text(ctx); err == nil && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text)
	}
	markup, err := el.OuterHTML(ctx)
	if err != nil {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func limit(els []browser.Element) []browser.Element {
	if len(els) > maxCandidates {
		return els[:maxCandidates]
	}
	return els
}
