// Package locator finds elements through ordered chains of alternative
// locators, tolerating markup that varies between page versions.
package locator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwatch/internal/browser"
	"github.com/xkilldash9x/cartwatch/internal/trace"
)

// ErrElementNotFound is returned when no locator in a chain produced a
// qualifying element before the timeout.
var ErrElementNotFound = errors.New("element not found")

// DefaultPollInterval is used when the resolver is built without one.
const DefaultPollInterval = 250 * time.Millisecond

// Resolution describes the element a chain resolved to.
type Resolution struct {
	Element browser.Element
	// Index is the position in the chain of the locator that matched.
	Index   int
	Locator browser.Locator
	Waited  time.Duration
}

// Observer receives resolution outcomes.
type Observer interface {
	RecordResolution(found bool, index string)
}

// Resolver resolves chains against a browser scope.
type Resolver struct {
	logger   *zap.Logger
	poll     time.Duration
	observer Observer
}

// NewResolver creates a Resolver. A non-positive poll interval falls back
// to DefaultPollInterval; observer may be nil.
func NewResolver(logger *zap.Logger, poll time.Duration, observer Observer) *Resolver {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Resolver{
		logger:   logger.Named("resolver"),
		poll:     poll,
		observer: observer,
	}
}

type criteria struct {
	interactive bool
	requireText bool
}

// Option adds a qualification criterion.
type Option func(*criteria)

// Interactive additionally requires the element to be enabled.
func Interactive() Option { return func(c *criteria) { c.interactive = true } }

// RequireText additionally requires non-empty visible text.
func RequireText() Option { return func(c *criteria) { c.requireText = true } }

// Resolve tries each locator of the chain in order, giving each an equal
// share of timeout, and returns the first element that is present and
// displayed (and enabled, for Interactive). Locator errors count as no
// match. The second return is false when the chain is exhausted or ctx ends.
func (r *Resolver) Resolve(ctx context.Context, scope browser.Scope, chain Chain, timeout time.Duration, opts ...Option) (Resolution, bool) {
	var crit criteria
	for _, opt := range opts {
		opt(&crit)
	}

	start := time.Now()
	n := chain.Len()
	if n == 0 {
		r.record(ctx, chain, Resolution{}, false)
		return Resolution{}, false
	}

	slice := timeout / time.Duration(n)
	if slice < r.poll {
		slice = r.poll
	}

	for i, loc := range chain.locs {
		if ctx.Err() != nil {
			break
		}
		el, err := r.poll1(ctx, scope, loc, slice, crit)
		if el != nil {
			res := Resolution{Element: el, Index: i, Locator: loc, Waited: time.Since(start)}
			r.record(ctx, chain, res, true)
			return res, true
		}
		r.logger.Debug("Locator produced no match.",
			zap.String("chain", chain.Name()),
			zap.Int("index", i),
			zap.String("locator", loc.String()),
			zap.Error(err),
		)
	}

	r.record(ctx, chain, Resolution{Waited: time.Since(start)}, false)
	return Resolution{}, false
}

// MustResolve is Resolve with absence reported as ErrElementNotFound.
func (r *Resolver) MustResolve(ctx context.Context, scope browser.Scope, chain Chain, timeout time.Duration, opts ...Option) (Resolution, error) {
	res, ok := r.Resolve(ctx, scope, chain, timeout, opts...)
	if ok {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return Resolution{}, fmt.Errorf("%s: %w", chain.Name(), err)
	}
	return Resolution{}, fmt.Errorf("%s after %v: %w", chain.Name(), timeout, ErrElementNotFound)
}

// poll1 waits up to slice for loc to yield a qualifying element. The last
// lookup error, if any, is returned for logging.
func (r *Resolver) poll1(ctx context.Context, scope browser.Scope, loc browser.Locator, slice time.Duration, crit criteria) (browser.Element, error) {
	sliceCtx, cancel := context.WithTimeout(ctx, slice)
	defer cancel()

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	var lastErr error
	for {
		els, err := scope.FindAll(sliceCtx, loc)
		if err != nil {
			lastErr = err
			if errors.Is(err, browser.ErrInvalidLocator) {
				return nil, err
			}
		}
		for _, el := range els {
			if r.qualifies(sliceCtx, el, crit) {
				return el, nil
			}
		}

		select {
		case <-sliceCtx.Done():
			return nil, lastErr
		case <-ticker.C:
		}
	}
}

func (r *Resolver) qualifies(ctx context.Context, el browser.Element, crit criteria) bool {
	if shown, err := el.Displayed(ctx); err != nil || !shown {
		return false
	}
	if crit.interactive {
		if enabled, err := el.Enabled(ctx); err != nil || !enabled {
			return false
		}
	}
	if crit.requireText {
		if text, err := el.Text(ctx); err != nil || text == "" {
			return false
		}
	}
	return true
}

// ResolveAll returns the union of elements matched by every locator in the
// chain, in chain order and without duplicates. It does not wait and does
// not filter by visibility.
func (r *Resolver) ResolveAll(ctx context.Context, scope browser.Scope, chain Chain) []browser.Element {
	seen := make(map[string]struct{})
	var out []browser.Element
	for _, loc := range chain.locs {
		els, err := scope.FindAll(ctx, loc)
		if err != nil {
			r.logger.Debug("Locator failed during enumeration.", zap.String("locator", loc.String()), zap.Error(err))
			continue
		}
		for _, el := range els {
			if _, dup := seen[el.ID()]; dup {
				continue
			}
			seen[el.ID()] = struct{}{}
			out = append(out, el)
		}
	}
	return out
}

func (r *Resolver) record(ctx context.Context, chain Chain, res Resolution, found bool) {
	index := "none"
	detail := "exhausted"
	if found {
		index = strconv.Itoa(res.Index)
		detail = fmt.Sprintf("index=%d locator=%s waited=%v", res.Index, res.Locator, res.Waited.Round(time.Millisecond))
	}
	if r.observer != nil {
		r.observer.RecordResolution(found, index)
	}
	trace.FromContext(ctx).Add(trace.KindResolve, chain.Name(), found, detail)
}
