package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/cartwatch/internal/browser"
	"github.com/xkilldash9x/cartwatch/internal/browser/browsertest"
	"github.com/xkilldash9x/cartwatch/internal/config"
)

func defaultVocab() config.ClassifierConfig {
	return config.ClassifierConfig{
		LabelSelectors: config.DefaultLabelSelectors,
		Keywords:       config.DefaultKeywords,
		DataAttributes: config.DefaultDataAttributes,
		ClassFragments: config.DefaultClassFragments,
	}
}

type verdictCounts map[string]int

func (v verdictCounts) RecordClassification(sponsored bool, source string) {
	if sponsored {
		v[source]++
	} else {
		v["organic"]++
	}
}

func snap(t *testing.T, markup, text string) *Snapshot {
	t.Helper()
	s, err := NewSnapshot(markup, text)
	require.NoError(t, err)
	return s
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	c := New(zaptest.NewLogger(t), defaultVocab(), nil)

	cases := []struct {
		name      string
		markup    string
		text      string
		sponsored bool
		source    Source
		signals   int
	}{
		{
			name:      "LabelBadge",
			markup:    `<div class="s-result-item"><span class="puis-sponsored-label-text">Sponsored</span><h2>Lamp</h2></div>`,
			text:      "Sponsored Lamp",
			sponsored: true, source: LabelAttribute, signals: 1,
		},
		{
			name:      "AriaLabelOnSelf",
			markup:    `<div aria-label="sponsored result"><h2>Lamp</h2></div>`,
			text:      "Lamp",
			sponsored: true, source: LabelAttribute, signals: 1,
		},
		{
			name:      "KeywordText",
			markup:    `<div class="s-result-item"><h2>Ergonomic Chair</h2><span>Promoted</span></div>`,
			text:      "Ergonomic Chair Promoted",
			sponsored: true, source: KeywordText, signals: 2,
		},
		{
			name:      "ShortKeywordWholeWordOnly",
			markup:    `<div class="s-result-item"><h2>USB-C Ad</h2></div>`,
			text:      "USB-C Ad",
			sponsored: true, source: KeywordText, signals: 2,
		},
		{
			name:      "StructuralAttribute",
			markup:    `<div data-component-type="sp-sponsored-result"><h2>Desk</h2></div>`,
			text:      "Desk",
			sponsored: true, source: StructuralAttribute, signals: 3,
		},
		{
			name:      "CSSClass",
			markup:    `<div class="s-result-item AdHolder"><h2>Desk</h2></div>`,
			text:      "Desk",
			sponsored: true, source: CSSClass, signals: 4,
		},
		{
			name:      "Organic",
			markup:    `<div class="s-result-item" data-component-type="s-search-result" data-asin="B0"><h2>Laptop Power Adapter</h2></div>`,
			text:      "Laptop Power Adapter",
			sponsored: false, signals: 4,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := c.Classify(ctx, snap(t, tc.markup, tc.text))
			assert.Equal(t, tc.sponsored, v.Sponsored)
			assert.Len(t, v.Signals, tc.signals)
			if tc.sponsored {
				s, ok := v.Deciding()
				require.True(t, ok)
				assert.Equal(t, tc.source, s.Source)
				assert.True(t, s.Matched)
				assert.NotEmpty(t, s.Reason)
			} else {
				assert.Equal(t, "organic", v.String())
				for _, s := range v.Signals {
					assert.False(t, s.Matched)
				}
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := New(zaptest.NewLogger(t), defaultVocab(), nil)
	s := snap(t, `<div class="x"><span>Featured</span></div>`, "Featured")
	first := c.Classify(context.Background(), s)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Classify(context.Background(), s))
	}
}

func TestMatchKeyword(t *testing.T) {
	kws := []string{"sponsored", "ad", "presented by"}
	_, ok := matchKeyword("wireless adapter", kws)
	assert.False(t, ok)
	kw, ok := matchKeyword("ad · leather sofa", kws)
	assert.True(t, ok)
	assert.Equal(t, "ad", kw)
	kw, ok = matchKeyword("presented by acme", kws)
	assert.True(t, ok)
	assert.Equal(t, "presented by", kw)
}

func TestAdValue(t *testing.T) {
	assert.True(t, adValue("sp-sponsored-result"))
	assert.True(t, adValue("MAIN-ADS-123"))
	assert.False(t, adValue("s-search-result"))
	assert.False(t, adValue("loader"))
}

func TestFirstOrganicLive(t *testing.T) {
	page := browsertest.NewPage("https://shop.test/s?k=desk", `<html><body>
<div class="s-result-item" data-component-type="sp-sponsored-result"><h2>Sponsored Desk</h2></div>
<div class="s-result-item AdHolder"><h2>Desk Two</h2></div>
<div class="s-result-item" data-component-type="s-search-result"><h2>Pine Desk</h2></div>
</body></html>`)
	els, err := page.FindAll(context.Background(), browser.Locator(".s-result-item"))
	require.NoError(t, err)

	counts := verdictCounts{}
	c := New(zaptest.NewLogger(t), defaultVocab(), counts)
	idx, v, ok := c.FirstOrganic(context.Background(), els)
	require.True(t, ok)
	assert.Equal(t, 2, idx)
	assert.False(t, v.Sponsored)
	assert.Equal(t, verdictCounts{"keyword-text": 1, "css-class": 1, "organic": 1}, counts)

	live := c.Classify(context.Background(), LiveNode{El: els[1]})
	s, _ := live.Deciding()
	assert.Equal(t, CSSClass, s.Source)
}
