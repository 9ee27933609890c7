// Package tasks implements the purchase-flow checks run by the engine. Each
// task drives one borrowed browser session through the resilience layer
// and reports a single pass or fail.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwatch/internal/action"
	"github.com/xkilldash9x/cartwatch/internal/browser"
	"github.com/xkilldash9x/cartwatch/internal/classify"
	"github.com/xkilldash9x/cartwatch/internal/config"
	"github.com/xkilldash9x/cartwatch/internal/gate"
	"github.com/xkilldash9x/cartwatch/internal/locator"
	"github.com/xkilldash9x/cartwatch/internal/notify"
	"github.com/xkilldash9x/cartwatch/internal/price"
	"github.com/xkilldash9x/cartwatch/internal/store"
	"github.com/xkilldash9x/cartwatch/internal/trace"
)

var (
	// ErrRuleViolated marks a business rule the page state did not satisfy.
	ErrRuleViolated = errors.New("business rule violated")
	// ErrBlocked marks a challenge or captcha page that stops automation.
	ErrBlocked = errors.New("blocked by challenge page")
)

// Status is the outcome class of a task run.
type Status string

const (
	Passed  Status = "passed"
	Failed  Status = "failed"
	Skipped Status = "skipped"
)

// Result is the single report a task run produces.
type Result struct {
	Name     string
	Status   Status
	Message  string
	Err      error
	Trace    *trace.Trace
	Duration time.Duration
}

// Task is one gated purchase-flow check.
type Task interface {
	Name() string
	// Window returns the time-of-day window the task may run in. Nil means
	// always.
	Window() *gate.Window
	// Run drives the session and returns a short success message.
	Run(ctx context.Context, drv browser.Driver) (string, error)
}

// Deps carries the shared collaborators every task uses.
type Deps struct {
	Tasks      config.TasksConfig
	Resilience config.ResilienceConfig
	Logger     *zap.Logger
	Resolver   *locator.Resolver
	Executor   *action.Executor
	Classifier *classify.Classifier
	Extractor  *price.Extractor
	Store      store.PriceStore
	Notifier   notify.Sender
	Clock      func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now()
}

// Names lists every task in catalogue order.
var Names = []string{
	ProductSelectionName,
	CartAutomationName,
	LoginValidationName,
	PriceMonitorName,
	CheckoutFlowName,
	SearchFiltersName,
}

// Catalogue builds the enabled tasks from configuration.
func Catalogue(d *Deps) ([]Task, error) {
	cfg := d.Tasks
	type entry struct {
		enabled bool
		window  config.WindowConfig
		build   func(w *gate.Window) Task
	}
	entries := []entry{
		{cfg.ProductSelection.Enabled, cfg.ProductSelection.Window, func(w *gate.Window) Task {
			return &ProductSelection{deps: d, cfg: cfg.ProductSelection, window: w}
		}},
		{cfg.CartAutomation.Enabled, cfg.CartAutomation.Window, func(w *gate.Window) Task {
			return &CartAutomation{deps: d, cfg: cfg.CartAutomation, window: w}
		}},
		{cfg.LoginValidation.Enabled, cfg.LoginValidation.Window, func(w *gate.Window) Task {
			return &LoginValidation{deps: d, cfg: cfg.LoginValidation, window: w}
		}},
		{cfg.PriceMonitor.Enabled, cfg.PriceMonitor.Window, func(w *gate.Window) Task {
			return &PriceMonitor{deps: d, cfg: cfg.PriceMonitor, window: w}
		}},
		{cfg.CheckoutFlow.Enabled, cfg.CheckoutFlow.Window, func(w *gate.Window) Task {
			return &CheckoutFlow{deps: d, cfg: cfg.CheckoutFlow, window: w}
		}},
		{cfg.SearchFilters.Enabled, cfg.SearchFilters.Window, func(w *gate.Window) Task {
			return &SearchFilters{deps: d, cfg: cfg.SearchFilters, window: w}
		}},
	}

	var out []Task
	for i, e := range entries {
		if !e.enabled {
			continue
		}
		w, err := e.window.Parse()
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", Names[i], err)
		}
		out = append(out, e.build(w))
	}
	return out, nil
}

// Select keeps the tasks whose names appear in names, in catalogue order.
// An empty names list keeps everything.
func Select(all []Task, names []string) ([]Task, error) {
	if len(names) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Task
	for _, t := range all {
		if want[t.Name()] {
			out = append(out, t)
			delete(want, t.Name())
		}
	}
	for n := range want {
		return nil, fmt.Errorf("unknown or disabled task %q", n)
	}
	return out, nil
}
