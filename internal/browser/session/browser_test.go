package session

import (
	"context"
	"errors"
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/cartwatch/internal/browser"
	"github.com/xkilldash9x/cartwatch/internal/config"
)

func TestExecAllocatorOptions(t *testing.T) {
	base := len(chromedp.DefaultExecAllocatorOptions)

	t.Run("Minimal", func(t *testing.T) {
		opts := ExecAllocatorOptions(config.BrowserConfig{Headless: true})
		// NoSandbox, disable-dev-shm-usage and headless.
		assert.Len(t, opts, base+3)
	})

	t.Run("Full", func(t *testing.T) {
		opts := ExecAllocatorOptions(config.BrowserConfig{
			Headless:     false,
			DisableGPU:   true,
			ExecPath:     "/usr/bin/chromium",
			UserAgent:    "cartwatch-test",
			WindowWidth:  1366,
			WindowHeight: 900,
			Args:         []string{"--lang=en-US", "no-zygote", "  ", "--"},
		})
		assert.Len(t, opts, base+3+4+2)
	})
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))
	assert.ErrorIs(t, classify(errors.New("No node with given id found")), browser.ErrStaleElement)
	assert.ErrorIs(t, classify(errors.New("DOM Error while querying")), browser.ErrInvalidLocator)
	other := errors.New("websocket closed")
	assert.Equal(t, other, classify(other))
}

func TestElementWithoutNode(t *testing.T) {
	e := &Element{session: &Session{}}
	_, err := e.FindAll(context.Background(), "div")
	assert.ErrorIs(t, err, errNoNode)
	assert.Equal(t, "<nil>", e.Describe())
	assert.Equal(t, "", e.ID())
}

func TestFirstField(t *testing.T) {
	assert.Equal(t, "s-result-item", firstField("s-result-item s-asin"))
	assert.Equal(t, "solo", firstField("solo"))
}
