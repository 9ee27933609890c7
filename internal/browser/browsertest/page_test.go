package browsertest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/cartwatch/internal/browser"
)

const fixture = `<html><body>
<div id="card" class="result">
  <h2><a id="title" href="/dp/1">Oak Shelf</a></h2>
  <span hidden>secret</span>
  <button id="buy" data-occluded="true">Buy</button>
  <button id="off" disabled>Off</button>
</div>
<div style="display: none"><a id="ghost">Ghost</a></div>
</body></html>`

func TestPage(t *testing.T) {
	ctx := context.Background()

	t.Run("FindAndInspect", func(t *testing.T) {
		p := NewPage("https://shop.test/", fixture)
		card, err := browser.First(ctx, p, "#card")
		require.NoError(t, err)
		require.NotNil(t, card)

		text, err := card.Text(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Oak Shelf Buy Off", text)

		title, err := browser.First(ctx, card, "h2 a")
		require.NoError(t, err)
		href, ok, err := title.Attr(ctx, "href")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "/dp/1", href)

		ghost, _ := browser.First(ctx, p, "#ghost")
		shown, err := ghost.Displayed(ctx)
		require.NoError(t, err)
		assert.False(t, shown)

		off, _ := browser.First(ctx, p, "#off")
		enabled, err := off.Enabled(ctx)
		require.NoError(t, err)
		assert.False(t, enabled)
	})

	t.Run("OccludedClick", func(t *testing.T) {
		p := NewPage("https://shop.test/", fixture)
		buy, _ := browser.First(ctx, p, "#buy")
		assert.ErrorIs(t, buy.Click(ctx), browser.ErrClickIntercepted)
		assert.NoError(t, buy.ScriptClick(ctx))
		assert.Equal(t, []ClickEvent{{Method: "script", Target: "button#buy"}}, p.Clicks())
	})

	t.Run("ScriptedFailuresAndNavigation", func(t *testing.T) {
		p := NewPage("https://shop.test/", fixture).
			Route("https://shop.test/dp/1", `<html><body><h1 id="productTitle">Oak Shelf</h1></body></html>`)
		p.On("#title", &Behavior{
			DirectFailures: 1,
			OnActivate: func(p *Page) {
				require.NoError(t, p.Navigate(context.Background(), "https://shop.test/dp/1"))
			},
		})

		title, _ := browser.First(ctx, p, "#title")
		assert.ErrorIs(t, title.Click(ctx), browser.ErrClickIntercepted)
		require.NoError(t, title.Click(ctx))

		url, _ := p.CurrentURL(ctx)
		assert.Equal(t, "https://shop.test/dp/1", url)
		_, err := title.Text(ctx)
		assert.ErrorIs(t, err, browser.ErrStaleElement)
	})

	t.Run("ParentAndXPath", func(t *testing.T) {
		p := NewPage("https://shop.test/", fixture).XPath("//h2/a", "h2 a")
		els, err := p.FindAll(ctx, "//h2/a")
		require.NoError(t, err)
		require.Len(t, els, 1)

		parent, err := els[0].Parent(ctx)
		require.NoError(t, err)
		assert.Equal(t, "h2", parent.Describe())

		_, err = p.FindAll(ctx, "//unmapped")
		assert.ErrorIs(t, err, browser.ErrInvalidLocator)
		_, err = p.FindAll(ctx, "div[[")
		assert.ErrorIs(t, err, browser.ErrInvalidLocator)
	})

	t.Run("TypeAndClear", func(t *testing.T) {
		p := NewPage("https://shop.test/", `<form id="f"><input id="q" value="old"></form>`)
		q, _ := browser.First(ctx, p, "#q")
		require.NoError(t, q.Clear(ctx))
		require.NoError(t, q.Type(ctx, "laptop"))
		assert.Equal(t, "laptop", p.Value("#q"))
		require.NoError(t, q.Submit(ctx))
		assert.Equal(t, 1, p.Submits())
	})
}
