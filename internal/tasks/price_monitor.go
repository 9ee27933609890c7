package tasks

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwatch/internal/browser"
	"github.com/xkilldash9x/cartwatch/internal/config"
	"github.com/xkilldash9x/cartwatch/internal/gate"
	"github.com/xkilldash9x/cartwatch/internal/notify"
	"github.com/xkilldash9x/cartwatch/internal/store"
)

const PriceMonitorName = "price-monitor"

// PriceMonitor records the current price of one product and alerts when it
// drops to or below the threshold.
type PriceMonitor struct {
	deps   *Deps
	cfg    config.PriceMonitorConfig
	window *gate.Window
}

// NewPriceMonitor builds a monitor outside the catalogue, for the monitor
// command.
func NewPriceMonitor(d *Deps, cfg config.PriceMonitorConfig) (*PriceMonitor, error) {
	w, err := cfg.Window.Parse()
	if err != nil {
		return nil, err
	}
	return &PriceMonitor{deps: d, cfg: cfg, window: w}, nil
}

func (t *PriceMonitor) Name() string         { return PriceMonitorName }
func (t *PriceMonitor) Window() *gate.Window { return t.window }

func (t *PriceMonitor) Run(ctx context.Context, drv browser.Driver) (string, error) {
	f := t.deps.flow(t.Name(), drv)

	if err := f.navigate(ctx, t.cfg.URL); err != nil {
		return "", err
	}
	if err := f.blocked(ctx); err != nil {
		return "", err
	}
	amt, err := t.deps.Extractor.MustExtract(ctx, drv, productPriceTargets)
	if err != nil {
		return "", fmt.Errorf("product price: %w", err)
	}

	f.step(ctx, "observed", true, amt.String())

	prev, seen, err := t.deps.Store.Last(ctx, t.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("price history: %w", err)
	}
	obs := store.Observation{
		URL:        t.cfg.URL,
		Price:      amt.Value,
		Currency:   amt.Currency,
		Strategy:   string(amt.Strategy),
		ObservedAt: t.deps.now(),
	}

	if !alertDue(amt.Value, t.cfg.Threshold, prev, seen) {
		// A reading that stays at or below the threshold is covered by the
		// alert already delivered for it.
		obs.Alerted = amt.Value <= t.cfg.Threshold
		if err := t.deps.Store.Record(ctx, obs); err != nil {
			return "", fmt.Errorf("price history: %w", err)
		}
		return fmt.Sprintf("price %s, threshold %.2f, no alert", amt, t.cfg.Threshold), nil
	}

	subject := fmt.Sprintf("Price drop: now %s", amt)
	body := fmt.Sprintf("The price fell to %s, at or below your threshold of %.2f.\n\nObserved: %s\nProduct URL: %s\n",
		amt, t.cfg.Threshold, obs.ObservedAt.Format("2006-01-02 15:04:05 MST"), t.cfg.URL)
	if seen {
		body += fmt.Sprintf("Previous price: %.2f (%s)\n", prev.Price, prev.ObservedAt.Format("2006-01-02 15:04"))
	}

	sendErr := t.deps.Notifier.Send(ctx, subject, body)
	obs.Alerted = sendErr == nil
	if err := t.deps.Store.Record(ctx, obs); err != nil {
		return "", fmt.Errorf("price history: %w", err)
	}

	switch {
	case errors.Is(sendErr, notify.ErrRateLimited):
		f.logger.Info("Price alert suppressed by rate limit.", zap.String("price", amt.String()))
		f.step(ctx, "alert", false, "rate limited")
		return fmt.Sprintf("price %s at or below %.2f, alert rate limited", amt, t.cfg.Threshold), nil
	case sendErr != nil:
		f.step(ctx, "alert", false, sendErr.Error())
		return "", fmt.Errorf("price alert: %w", sendErr)
	}
	f.step(ctx, "alert", true, subject)
	return fmt.Sprintf("price %s at or below %.2f, alert sent", amt, t.cfg.Threshold), nil
}

// alertDue reports whether value is an alertable reading: at or below the
// threshold when the previous reading was above it, was never alerted on,
// or does not exist.
func alertDue(value, threshold float64, prev store.Observation, seen bool) bool {
	if value > threshold {
		return false
	}
	return !seen || prev.Price > threshold || !prev.Alerted
}
