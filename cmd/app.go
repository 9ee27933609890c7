package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/cartwatch/internal/action"
	"github.com/xkilldash9x/cartwatch/internal/browser"
	"github.com/xkilldash9x/cartwatch/internal/browser/session"
	"github.com/xkilldash9x/cartwatch/internal/classify"
	"github.com/xkilldash9x/cartwatch/internal/config"
	"github.com/xkilldash9x/cartwatch/internal/engine"
	"github.com/xkilldash9x/cartwatch/internal/gate"
	"github.com/xkilldash9x/cartwatch/internal/locator"
	"github.com/xkilldash9x/cartwatch/internal/notify"
	"github.com/xkilldash9x/cartwatch/internal/observability"
	"github.com/xkilldash9x/cartwatch/internal/price"
	"github.com/xkilldash9x/cartwatch/internal/store"
	"github.com/xkilldash9x/cartwatch/internal/tasks"
)

// app holds the initialized services of one command run.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	gate    *gate.Gate
	deps    *tasks.Deps
	browser *session.Browser
	closers []func()
}

// newDeps builds everything tasks need apart from a browser.
func newDeps(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(cfg.Metrics().Namespace),
	}

	loc, err := gate.LoadLocation(cfg.Gate().Location)
	if err != nil {
		return nil, err
	}
	a.gate = gate.New(logger,
		gate.WithLocation(loc),
		gate.WithObserver(func(d gate.Decision) { a.metrics.RecordGateDecision(d.Name, d.Run) }),
	)

	st, closeStore, err := store.Open(ctx, cfg.Store().URL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize price store: %w", err)
	}
	a.closers = append(a.closers, closeStore)

	notifier, closeNotifier, err := notify.FromConfig(cfg.Notify(), logger, a.metrics)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize notifier: %w", err)
	}
	a.closers = append(a.closers, closeNotifier)

	res := cfg.Resilience()
	a.deps = &tasks.Deps{
		Tasks:      cfg.Tasks(),
		Resilience: res,
		Logger:     logger,
		Resolver:   locator.NewResolver(logger, res.PollInterval, a.metrics),
		Executor:   action.NewExecutor(logger, res.DirectAttempts, res.RetryPause, a.metrics),
		Classifier: classify.New(logger, cfg.Classifier(), a.metrics),
		Extractor:  price.NewExtractor(logger, cfg.Price().MaxPlausible, a.metrics),
		Store:      st,
		Notifier:   notifier,
	}
	return a, nil
}

// newApp builds the dependencies and launches the browser.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a, err := newDeps(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	b, err := session.NewBrowser(ctx, cfg.Browser(), cfg.Resilience().NavigationTimeout, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.browser = b
	a.closers = append(a.closers, b.Close)
	return a, nil
}

// engine wires an engine to the configured session mode.
func (a *app) engine(mode string) (*engine.Engine, error) {
	sessions, err := engine.NewProvider(mode, a.browser.Primary(), func(ctx context.Context) (browser.Driver, func(), error) {
		tab, err := a.browser.NewTab(ctx)
		if err != nil {
			return nil, nil, err
		}
		return tab, tab.Close, nil
	})
	if err != nil {
		return nil, err
	}
	return engine.New(a.cfg.Engine(), a.logger, a.gate, sessions, a.metrics)
}

// serve runs fn while the metrics endpoint, when enabled, is up. The
// endpoint stops once fn returns.
func (a *app) serve(ctx context.Context, fn func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stop := context.WithCancel(gctx)
	defer stop()

	if mc := a.cfg.Metrics(); mc.Enabled {
		g.Go(func() error {
			return observability.Serve(serveCtx, mc.ListenAddr, observability.NewRouter(a.metrics), a.logger)
		})
	}
	g.Go(func() error {
		defer stop()
		return fn(gctx)
	})
	return g.Wait()
}

// Close releases services in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
