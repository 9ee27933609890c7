// Package action activates elements through an escalating ladder of click
// strategies, stopping at the first that succeeds.
package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwatch/internal/browser"
	"github.com/xkilldash9x/cartwatch/internal/trace"
)

// ErrActionExhausted is returned when every strategy failed.
var ErrActionExhausted = errors.New("all activation strategies exhausted")

var errParentHidden = errors.New("parent element is not displayed")

// Strategy names one rung of the ladder.
type Strategy string

const (
	Direct           Strategy = "direct"
	ScrollThenRetry  Strategy = "scroll-then-retry"
	ScriptInvoked    Strategy = "script-invoked"
	PointerSimulated Strategy = "pointer-simulated"
	ParentFallback   Strategy = "parent-fallback"
)

// Kind is the action being performed. Only activation is supported.
type Kind string

const Click Kind = "click"

// Attempt records one try. Ordinal counts from 1 across the whole ladder.
type Attempt struct {
	Strategy Strategy
	Ordinal  int
	Success  bool
	Err      error
}

// Outcome is the result of Perform.
type Outcome struct {
	Success  bool
	Attempts []Attempt
}

// Winner returns the successful attempt.
func (o Outcome) Winner() (Attempt, bool) {
	if !o.Success || len(o.Attempts) == 0 {
		return Attempt{}, false
	}
	return o.Attempts[len(o.Attempts)-1], true
}

// Err returns nil on success and ErrActionExhausted otherwise, annotated
// with the last underlying failure.
func (o Outcome) Err() error {
	if o.Success {
		return nil
	}
	if len(o.Attempts) == 0 {
		return ErrActionExhausted
	}
	last := o.Attempts[len(o.Attempts)-1]
	return fmt.Errorf("%w after %d attempts (last %s: %v)", ErrActionExhausted, len(o.Attempts), last.Strategy, last.Err)
}

// Observer receives per-attempt outcomes.
type Observer interface {
	RecordActionAttempt(strategy string, success bool)
}

// rung describes one strategy: how many times it may run given the
// per-strategy attempt budget, and what one try does.
type rung struct {
	strategy Strategy
	repeats  func(maxAttempts int) int
	try      func(ctx context.Context, el browser.Element) error
}

func once(int) int { return 1 }

// Executor performs actions with escalation.
type Executor struct {
	logger   *zap.Logger
	pause    time.Duration
	attempts int
	observer Observer
	sleep    func(ctx context.Context, d time.Duration) error
	ladder   []rung
}

// NewExecutor creates an Executor. directAttempts is the default budget for
// Activate; pause is observed before every scroll-then-retry click.
func NewExecutor(logger *zap.Logger, directAttempts int, pause time.Duration, observer Observer) *Executor {
	if directAttempts < 1 {
		directAttempts = 1
	}
	e := &Executor{
		logger:   logger.Named("executor"),
		pause:    pause,
		attempts: directAttempts,
		observer: observer,
		sleep:    sleepCtx,
	}
	e.ladder = []rung{
		{strategy: Direct, repeats: once, try: func(ctx context.Context, el browser.Element) error {
			return el.Click(ctx)
		}},
		{strategy: ScrollThenRetry, repeats: func(n int) int { return n - 1 }, try: e.scrollThenClick},
		{strategy: ScriptInvoked, repeats: once, try: func(ctx context.Context, el browser.Element) error {
			return el.ScriptClick(ctx)
		}},
		{strategy: PointerSimulated, repeats: once, try: func(ctx context.Context, el browser.Element) error {
			return el.PointerClick(ctx)
		}},
		{strategy: ParentFallback, repeats: once, try: clickParent},
	}
	return e
}

// Activate performs a Click with the configured attempt budget.
func (e *Executor) Activate(ctx context.Context, el browser.Element) Outcome {
	return e.Perform(ctx, el, Click, e.attempts)
}

// Perform runs the ladder against el until a strategy succeeds. The direct
// strategy gets maxAttemptsPerStrategy tries in total, the first plain and
// the rest after scrolling into view and pausing. Cancellation stops the
// ladder between attempts.
func (e *Executor) Perform(ctx context.Context, el browser.Element, kind Kind, maxAttemptsPerStrategy int) Outcome {
	if maxAttemptsPerStrategy < 1 {
		maxAttemptsPerStrategy = 1
	}
	if kind != Click {
		return Outcome{Attempts: []Attempt{{Strategy: Direct, Ordinal: 1, Err: fmt.Errorf("unsupported action %q", kind)}}}
	}

	out := firstSuccess(ctx, el, e.ladder, maxAttemptsPerStrategy, e.onAttempt)
	if out.Success {
		if w, _ := out.Winner(); w.Strategy != Direct {
			e.logger.Info("Activated after escalation.",
				zap.String("target", el.Describe()),
				zap.String("strategy", string(w.Strategy)),
				zap.Int("attempts", len(out.Attempts)),
			)
		}
	} else {
		e.logger.Warn("Activation exhausted.", zap.String("target", el.Describe()), zap.Error(out.Err()))
	}
	return out
}

// firstSuccess runs rungs in order and returns at the first success.
func firstSuccess(ctx context.Context, el browser.Element, ladder []rung, budget int, onAttempt func(context.Context, browser.Element, Attempt)) Outcome {
	var out Outcome
	for _, r := range ladder {
		for i := 0; i < r.repeats(budget); i++ {
			if ctx.Err() != nil {
				return out
			}
			a := Attempt{Strategy: r.strategy, Ordinal: len(out.Attempts) + 1}
			a.Err = r.try(ctx, el)
			a.Success = a.Err == nil
			out.Attempts = append(out.Attempts, a)
			onAttempt(ctx, el, a)
			if a.Success {
				out.Success = true
				return out
			}
		}
	}
	return out
}

func (e *Executor) onAttempt(ctx context.Context, el browser.Element, a Attempt) {
	if e.observer != nil {
		e.observer.RecordActionAttempt(string(a.Strategy), a.Success)
	}
	detail := el.Describe()
	if a.Err != nil {
		detail += ": " + a.Err.Error()
		e.logger.Debug("Activation attempt failed.",
			zap.String("target", el.Describe()),
			zap.String("strategy", string(a.Strategy)),
			zap.Int("ordinal", a.Ordinal),
			zap.Error(a.Err),
		)
	}
	trace.FromContext(ctx).Add(trace.KindAction, string(a.Strategy), a.Success, detail)
}

func (e *Executor) scrollThenClick(ctx context.Context, el browser.Element) error {
	if err := el.ScrollIntoView(ctx); err != nil {
		return fmt.Errorf("scroll into view: %w", err)
	}
	if err := e.sleep(ctx, e.pause); err != nil {
		return err
	}
	return el.Click(ctx)
}

func clickParent(ctx context.Context, el browser.Element) error {
	parent, err := el.Parent(ctx)
	if err != nil {
		return err
	}
	shown, err := parent.Displayed(ctx)
	if err != nil {
		return err
	}
	if !shown {
		return errParentHidden
	}
	return parent.Click(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
