// Package session implements browser.Driver on top of chromedp.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwatch/internal/browser"
	"github.com/xkilldash9x/cartwatch/internal/humanoid"
)

// Session is one browser tab.
type Session struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	pointer *humanoid.Pointer

	navTimeout time.Duration
}

var (
	_ browser.Driver = (*Session)(nil)
	_ ActionExecutor = (*Session)(nil)
)

func newSession(tabCtx context.Context, cancel context.CancelFunc, logger *zap.Logger, navTimeout time.Duration) *Session {
	id := uuid.NewString()
	return &Session{
		id:         id,
		ctx:        tabCtx,
		cancel:     cancel,
		logger:     logger.Named("session").With(zap.String("session_id", id)),
		pointer:    humanoid.NewPointer(time.Now().UnixNano()),
		navTimeout: navTimeout,
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Close closes the tab. Closing the browser's initial tab is a no-op; the
// Browser owns it.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// RunActions runs actions on this tab under the caller's deadline.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx := ctx
	if s.navTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, s.navTimeout)
		defer cancel()
	}
	s.logger.Debug("Navigating.", zap.String("url", url))
	if err := s.RunActions(navCtx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := s.RunActions(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

func (s *Session) PageSource(ctx context.Context) (string, error) {
	var markup string
	if err := s.RunActions(ctx, chromedp.OuterHTML("html", &markup, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return markup, nil
}

func (s *Session) FindAll(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	var nodes []*cdp.Node
	opt := chromedp.ByQueryAll
	if loc.IsXPath() {
		opt = chromedp.BySearch
	}
	if err := s.RunActions(ctx, chromedp.Nodes(loc.Expr(), &nodes, opt, chromedp.AtLeast(0))); err != nil {
		return nil, classify(err)
	}
	return s.wrap(nodes), nil
}

func (s *Session) wrap(nodes []*cdp.Node) []browser.Element {
	out := make([]browser.Element, 0, len(nodes))
	for _, n := range nodes {
		if n.NodeType != cdp.NodeTypeElement {
			continue
		}
		out = append(out, &Element{session: s, node: n})
	}
	return out
}

// findMarked returns nodes carrying the given mark and strips the mark.
func (s *Session) findMarked(ctx context.Context, mark string) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	sel := fmt.Sprintf(`[%s=%q]`, markAttr, mark)
	err := s.RunActions(ctx,
		chromedp.Nodes(sel, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, n := range nodes {
				_ = callFunctionOnNode(ctx, n, jsUnmark, nil, markAttr)
			}
			return nil
		}),
	)
	return nodes, err
}

// DispatchMouseEvent and Sleep let the session drive a humanoid.Pointer.
func (s *Session) DispatchMouseEvent(ctx context.Context, p *input.DispatchMouseEventParams) error {
	return p.Do(ctx)
}

func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	return chromedp.Sleep(d).Do(ctx)
}

// classify maps CDP failures onto the browser package's sentinel errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "No node with given id"),
		strings.Contains(msg, "Could not find node"),
		strings.Contains(msg, "Node is detached"),
		strings.Contains(msg, "Cannot find context with specified id"):
		return fmt.Errorf("%w: %v", browser.ErrStaleElement, err)
	case strings.Contains(msg, "is not a valid selector"),
		strings.Contains(msg, "DOM Error while querying"),
		strings.Contains(msg, "is not a valid XPath"):
		return fmt.Errorf("%w: %v", browser.ErrInvalidLocator, err)
	}
	return err
}

var errNoNode = errors.New("element reference has no node")
