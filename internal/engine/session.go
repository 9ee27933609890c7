package engine

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/cartwatch/internal/browser"
)

// Session modes accepted in engine.session_mode.
const (
	ModeShared   = "shared"
	ModeIsolated = "isolated"
)

// SessionProvider hands a browser session to one task at a time. The
// returned release func must be called when the task is done with it.
type SessionProvider interface {
	Acquire(ctx context.Context) (browser.Driver, func(), error)
}

// Shared serializes every task onto a single page.
type Shared struct {
	drv browser.Driver
	sem *semaphore.Weighted
}

// NewShared wraps drv so that only one task drives it at a time.
func NewShared(drv browser.Driver) *Shared {
	return &Shared{drv: drv, sem: semaphore.NewWeighted(1)}
}

func (s *Shared) Acquire(ctx context.Context) (browser.Driver, func(), error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("waiting for shared session: %w", err)
	}
	return s.drv, func() { s.sem.Release(1) }, nil
}

// Opener creates a fresh session and the func that closes it.
type Opener func(ctx context.Context) (browser.Driver, func(), error)

// Isolated opens a new session, typically a browser tab, per task.
type Isolated struct {
	open Opener
}

func NewIsolated(open Opener) *Isolated {
	return &Isolated{open: open}
}

func (i *Isolated) Acquire(ctx context.Context) (browser.Driver, func(), error) {
	drv, closeFn, err := i.open(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open isolated session: %w", err)
	}
	if closeFn == nil {
		closeFn = func() {}
	}
	return drv, closeFn, nil
}

// NewProvider picks the provider for mode. The shared driver is used only
// in shared mode and open only in isolated mode.
func NewProvider(mode string, shared browser.Driver, open Opener) (SessionProvider, error) {
	switch mode {
	case ModeShared, "":
		if shared == nil {
			return nil, errors.New("shared session mode requires a driver")
		}
		return NewShared(shared), nil
	case ModeIsolated:
		if open == nil {
			return nil, errors.New("isolated session mode requires an opener")
		}
		return NewIsolated(open), nil
	default:
		return nil, fmt.Errorf("unknown session mode %q", mode)
	}
}
