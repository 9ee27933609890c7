package session

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"github.com/xkilldash9x/cartwatch/internal/browser"
	"github.com/xkilldash9x/cartwatch/internal/humanoid"
)

// Element is a DOM node in a Session's tab.
type Element struct {
	session *Session
	node    *cdp.Node
}

var _ browser.Element = (*Element)(nil)

// call evaluates fn with the node bound to this and decodes the result
// into res (which may be nil).
func (e *Element) call(ctx context.Context, fn string, res interface{}, args ...interface{}) error {
	if e.node == nil {
		return errNoNode
	}
	err := e.session.RunActions(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return callFunctionOnNode(ctx, e.node, fn, res, args...)
	}))
	return classify(err)
}

func (e *Element) FindAll(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	if e.node == nil {
		return nil, errNoNode
	}
	if loc.IsXPath() {
		mark := uuid.NewString()
		var n int
		if err := e.call(ctx, jsMarkXPath, &n, markAttr, mark, loc.Expr()); err != nil {
			return nil, fmt.Errorf("%w: %v", browser.ErrInvalidLocator, err)
		}
		if n == 0 {
			return nil, nil
		}
		nodes, err := e.session.findMarked(ctx, mark)
		if err != nil {
			return nil, classify(err)
		}
		return e.session.wrap(nodes), nil
	}

	var nodes []*cdp.Node
	err := e.session.RunActions(ctx, chromedp.Nodes(loc.Expr(), &nodes,
		chromedp.ByQueryAll, chromedp.AtLeast(0), chromedp.FromNode(e.node)))
	if err != nil {
		return nil, classify(err)
	}
	return e.session.wrap(nodes), nil
}

func (e *Element) Attr(ctx context.Context, name string) (string, bool, error) {
	var res attrResult
	if err := e.call(ctx, jsAttr, &res, name); err != nil {
		return "", false, err
	}
	return res.Value, res.Present, nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.call(ctx, jsText, &text)
	return text, err
}

func (e *Element) OuterHTML(ctx context.Context) (string, error) {
	var markup string
	err := e.call(ctx, jsOuterHTML, &markup)
	return markup, err
}

func (e *Element) Displayed(ctx context.Context) (bool, error) {
	var shown bool
	err := e.call(ctx, jsDisplayed, &shown)
	return shown, err
}

func (e *Element) Enabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := e.call(ctx, jsEnabled, &enabled)
	return enabled, err
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	return e.call(ctx, jsScrollCenter, nil)
}

// hitTest returns the element's center, failing when it has no area or is
// covered.
func (e *Element) hitTest(ctx context.Context) (humanoid.Vector2D, error) {
	var hit hitResult
	if err := e.call(ctx, jsHitTest, &hit); err != nil {
		return humanoid.Vector2D{}, err
	}
	if !hit.OK {
		if hit.Covered {
			return humanoid.Vector2D{}, fmt.Errorf("%w: %s", browser.ErrClickIntercepted, hit.Reason)
		}
		return humanoid.Vector2D{}, fmt.Errorf("%w: %s", browser.ErrNotInteractable, hit.Reason)
	}
	return humanoid.Vector2D{X: hit.X, Y: hit.Y}, nil
}

func (e *Element) Click(ctx context.Context) error {
	center, err := e.hitTest(ctx)
	if err != nil {
		return err
	}
	return e.session.RunActions(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		press := input.DispatchMouseEvent(input.MousePressed, center.X, center.Y).
			WithButton(input.Left).WithButtons(1).WithClickCount(1)
		if err := press.Do(ctx); err != nil {
			return err
		}
		release := input.DispatchMouseEvent(input.MouseReleased, center.X, center.Y).
			WithButton(input.Left).WithButtons(0).WithClickCount(1)
		return release.Do(ctx)
	}))
}

func (e *Element) ScriptClick(ctx context.Context) error {
	return e.call(ctx, jsClick, nil)
}

func (e *Element) PointerClick(ctx context.Context) error {
	center, err := e.hitTest(ctx)
	if err != nil {
		return err
	}
	return e.session.RunActions(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return e.session.pointer.Click(ctx, e.session, center)
	}))
}

func (e *Element) Parent(ctx context.Context) (browser.Element, error) {
	mark := uuid.NewString()
	var ok bool
	if err := e.call(ctx, jsMarkParent, &ok, markAttr, mark); err != nil {
		return nil, err
	}
	if !ok {
		return nil, browser.ErrNoParent
	}
	nodes, err := e.session.findMarked(ctx, mark)
	if err != nil {
		return nil, classify(err)
	}
	if len(nodes) == 0 {
		return nil, browser.ErrNoParent
	}
	return &Element{session: e.session, node: nodes[0]}, nil
}

func (e *Element) Clear(ctx context.Context) error {
	return e.call(ctx, jsClear, nil)
}

func (e *Element) Type(ctx context.Context, text string) error {
	if e.node == nil {
		return errNoNode
	}
	return classify(e.session.RunActions(ctx,
		chromedp.SendKeys([]cdp.NodeID{e.node.NodeID}, text, chromedp.ByNodeID)))
}

func (e *Element) Submit(ctx context.Context) error {
	if e.node == nil {
		return errNoNode
	}
	return classify(e.session.RunActions(ctx,
		chromedp.Submit([]cdp.NodeID{e.node.NodeID}, chromedp.ByNodeID)))
}

func (e *Element) ID() string {
	if e.node == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d", e.session.id, e.node.BackendNodeID)
}

func (e *Element) Describe() string {
	if e.node == nil {
		return "<nil>"
	}
	d := e.node.LocalName
	if id := e.node.AttributeValue("id"); id != "" {
		d += "#" + id
	} else if class := e.node.AttributeValue("class"); class != "" {
		d += "." + firstField(class)
	}
	return d
}

func firstField(s string) string {
	for i, r := range s {
		if r == ' ' || r == '\t' || r == '\n' {
			return s[:i]
		}
	}
	return s
}
