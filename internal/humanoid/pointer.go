// Package humanoid emits pointer input that approximates a person moving a
// mouse onto a target, for pages that ignore synthetic clicks.
package humanoid

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
)

// Executor dispatches low-level input. The chromedp-backed session
// implements it; tests record the events instead.
type Executor interface {
	DispatchMouseEvent(ctx context.Context, p *input.DispatchMouseEventParams) error
	Sleep(ctx context.Context, d time.Duration) error
}

// Pointer tracks the cursor position across moves within one page.
type Pointer struct {
	mu    sync.Mutex
	pos   Vector2D
	rng   *rand.Rand
	dwell time.Duration
}

// NewPointer creates a pointer resting at the viewport origin.
func NewPointer(seed int64) *Pointer {
	return &Pointer{
		rng:   rand.New(rand.NewSource(seed)),
		dwell: 60 * time.Millisecond,
	}
}

// Position returns the last dispatched cursor position.
func (p *Pointer) Position() Vector2D {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

// MoveTo moves the cursor to target along an eased curve, pacing the steps
// over a Fitts's-law duration.
func (p *Pointer) MoveTo(ctx context.Context, exec Executor, target Vector2D) error {
	p.mu.Lock()
	start := p.pos
	dur := movementTime(start.Dist(target), p.rng)
	path := Path(start, target, stepsFor(dur), p.rng)
	p.mu.Unlock()

	step := dur / time.Duration(len(path))
	for _, pt := range path {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev := input.DispatchMouseEvent(input.MouseMoved, pt.X, pt.Y)
		if err := exec.DispatchMouseEvent(ctx, ev); err != nil {
			return err
		}
		p.mu.Lock()
		p.pos = pt
		p.mu.Unlock()
		if err := exec.Sleep(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// Click moves to target, dwells briefly, then presses and releases the
// left button.
func (p *Pointer) Click(ctx context.Context, exec Executor, target Vector2D) error {
	if err := p.MoveTo(ctx, exec, target); err != nil {
		return err
	}
	if err := exec.Sleep(ctx, p.dwell); err != nil {
		return err
	}
	press := input.DispatchMouseEvent(input.MousePressed, target.X, target.Y).
		WithButton(input.Left).WithButtons(1).WithClickCount(1)
	if err := exec.DispatchMouseEvent(ctx, press); err != nil {
		return err
	}
	p.mu.Lock()
	hold := time.Duration(40+p.rng.Intn(60)) * time.Millisecond
	p.mu.Unlock()
	if err := exec.Sleep(ctx, hold); err != nil {
		return err
	}
	release := input.DispatchMouseEvent(input.MouseReleased, target.X, target.Y).
		WithButton(input.Left).WithButtons(0).WithClickCount(1)
	return exec.DispatchMouseEvent(ctx, release)
}
