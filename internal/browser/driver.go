// Package browser defines the narrow contract the resilience layer needs
// from an automation driver. The chromedp implementation lives in
// browser/session; browsertest provides an in-memory DOM for tests.
package browser

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrClickIntercepted is returned by Element.Click when another element
	// covers the target's center point.
	ErrClickIntercepted = errors.New("click intercepted by another element")
	// ErrNotInteractable is returned when the element has no clickable area.
	ErrNotInteractable = errors.New("element not interactable")
	// ErrStaleElement is returned when the element is no longer attached.
	ErrStaleElement = errors.New("stale element reference")
	// ErrNoParent is returned by Element.Parent at the document root.
	ErrNoParent = errors.New("element has no parent element")
	// ErrInvalidLocator is returned for locator expressions the driver
	// cannot evaluate.
	ErrInvalidLocator = errors.New("invalid locator")
)

// Locator is a CSS selector, or an XPath expression when it starts with
// "/", "(" or the "xpath=" prefix.
type Locator string

const xpathPrefix = "xpath="

// IsXPath reports whether the locator is an XPath expression.
func (l Locator) IsXPath() bool {
	s := strings.TrimSpace(string(l))
	return strings.HasPrefix(s, xpathPrefix) || strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(")
}

// Expr returns the expression with any "xpath=" prefix removed.
func (l Locator) Expr() string {
	return strings.TrimPrefix(strings.TrimSpace(string(l)), xpathPrefix)
}

func (l Locator) String() string { return string(l) }

// Scope is anything elements can be searched under: the page or an element.
type Scope interface {
	// FindAll returns every element matching the locator in document order.
	// No match is an empty slice and a nil error.
	FindAll(ctx context.Context, loc Locator) ([]Element, error)
}

// Driver is one page of a live browser session.
type Driver interface {
	Scope
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	PageSource(ctx context.Context) (string, error)
}

// Element is a reference to a DOM element. It is valid until the page
// navigates.
type Element interface {
	Scope

	// Attr returns the attribute value and whether it is present.
	Attr(ctx context.Context, name string) (string, bool, error)
	// Text returns the rendered (visible) text.
	Text(ctx context.Context) (string, error)
	OuterHTML(ctx context.Context) (string, error)
	Displayed(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)

	ScrollIntoView(ctx context.Context) error
	// Click dispatches a native pointer click at the element's center and
	// fails with ErrClickIntercepted when something else is on top.
	Click(ctx context.Context) error
	// ScriptClick invokes the element's click() method from script.
	ScriptClick(ctx context.Context) error
	// PointerClick moves the pointer to the element in small eased steps,
	// then presses and releases.
	PointerClick(ctx context.Context) error

	// Parent returns the immediate parent element.
	Parent(ctx context.Context) (Element, error)

	Clear(ctx context.Context) error
	Type(ctx context.Context, text string) error
	Submit(ctx context.Context) error

	// ID is stable for the underlying node, so two references to the same
	// node compare equal.
	ID() string
	// Describe returns a short human-readable label for logs.
	Describe() string
}

// First returns the first element matching loc, or nil when nothing matches.
func First(ctx context.Context, s Scope, loc Locator) (Element, error) {
	els, err := s.FindAll(ctx, loc)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}
