package locator

import (
	"strings"

	"github.com/xkilldash9x/cartwatch/internal/browser"
)

// Chain is an immutable, ordered list of alternative locators for one
// logical element. Earlier entries take priority.
type Chain struct {
	name string
	locs []browser.Locator
}

// NewChain builds a chain from locator expressions. The name is used in
// logs and error messages.
func NewChain(name string, exprs ...string) Chain {
	locs := make([]browser.Locator, 0, len(exprs))
	for _, e := range exprs {
		if strings.TrimSpace(e) == "" {
			continue
		}
		locs = append(locs, browser.Locator(e))
	}
	return Chain{name: name, locs: locs}
}

// Name returns the chain's label.
func (c Chain) Name() string { return c.name }

// Len returns the number of locators.
func (c Chain) Len() int { return len(c.locs) }

// At returns the i-th locator.
func (c Chain) At(i int) browser.Locator { return c.locs[i] }

// Locators returns a copy of the locators in priority order.
func (c Chain) Locators() []browser.Locator {
	return append([]browser.Locator(nil), c.locs...)
}

// With returns a new chain with extra locators appended at lowest priority.
func (c Chain) With(exprs ...string) Chain {
	next := NewChain(c.name, exprs...)
	next.locs = append(c.Locators(), next.locs...)
	return next
}

func (c Chain) String() string {
	parts := make([]string, len(c.locs))
	for i, l := range c.locs {
		parts[i] = string(l)
	}
	return c.name + "[" + strings.Join(parts, " | ") + "]"
}
