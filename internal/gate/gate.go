// Package gate decides whether time-restricted work may run right now.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrWindowClosed marks work that was skipped because the current time falls
// outside its window. It signals a skip, not a failure.
var ErrWindowClosed = errors.New("outside run window")

// Clock supplies the current time.
type Clock func() time.Time

// Decision records one gate evaluation.
type Decision struct {
	Name     string
	Window   *Window
	Observed time.Time
	Run      bool
}

// Gate evaluates windows against a clock in a fixed location.
type Gate struct {
	logger     *zap.Logger
	clock      Clock
	loc        *time.Location
	onDecision func(Decision)
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock replaces time.Now.
func WithClock(c Clock) Option {
	return func(g *Gate) { g.clock = c }
}

// WithLocation sets the zone in which window bounds are interpreted.
func WithLocation(loc *time.Location) Option {
	return func(g *Gate) {
		if loc != nil {
			g.loc = loc
		}
	}
}

// WithObserver registers a callback invoked for every decision.
func WithObserver(fn func(Decision)) Option {
	return func(g *Gate) { g.onDecision = fn }
}

// New creates a Gate using the local zone and the system clock by default.
func New(logger *zap.Logger, opts ...Option) *Gate {
	g := &Gate{
		logger: logger.Named("gate"),
		clock:  time.Now,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// LoadLocation resolves a configured zone name. Empty and "Local" map to the
// process's local zone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load gate location %q: %w", name, err)
	}
	return loc, nil
}

// Check evaluates the window without running anything.
func (g *Gate) Check(name string, w *Window) Decision {
	now := g.clock().In(g.loc)
	d := Decision{Name: name, Window: w, Observed: now, Run: w.Contains(now)}

	if d.Run {
		g.logger.Debug("Window open, running.", zap.String("task", name), zap.Stringer("window", w))
	} else {
		g.logger.Info("Outside run window, skipping.",
			zap.String("task", name),
			zap.Stringer("start", w.Start),
			zap.Stringer("end", w.End),
			zap.String("observed", now.Format("15:04:05")),
			zap.String("location", g.loc.String()),
		)
	}
	if g.onDecision != nil {
		g.onDecision(d)
	}
	return d
}

// RunIfWithinWindow invokes work only when the current time of day lies in w.
// A nil window always runs. Skipped work returns ErrWindowClosed.
func (g *Gate) RunIfWithinWindow(ctx context.Context, name string, w *Window, work func(context.Context) error) (Decision, error) {
	d := g.Check(name, w)
	if !d.Run {
		return d, fmt.Errorf("%s %s at %s: %w", name, w, d.Observed.Format("15:04:05"), ErrWindowClosed)
	}
	if err := ctx.Err(); err != nil {
		return d, err
	}
	return d, work(ctx)
}
