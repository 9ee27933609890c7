package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwatch/internal/config"
)

// Browser owns a Chrome process and hands out tabs.
type Browser struct {
	logger     *zap.Logger
	navTimeout time.Duration

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu      sync.Mutex
	primary *Session
	closed  bool
}

// ExecAllocatorOptions translates browser config into Chrome flags.
func ExecAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("headless", cfg.Headless),
	)
	if cfg.DisableGPU {
		opts = append(opts, chromedp.DisableGPU)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}

	// Extra flags: "name" for booleans, "name=value" otherwise.
	for _, arg := range cfg.Args {
		arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
		if arg == "" {
			continue
		}
		if key, value, ok := strings.Cut(arg, "="); ok {
			opts = append(opts, chromedp.Flag(key, value))
			continue
		}
		opts = append(opts, chromedp.Flag(arg, true))
	}
	return opts
}

// NewBrowser launches Chrome. The returned Browser must be closed.
func NewBrowser(ctx context.Context, cfg config.BrowserConfig, navTimeout time.Duration, logger *zap.Logger) (*Browser, error) {
	logger = logger.Named("browser")
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, ExecAllocatorOptions(cfg)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Debugf),
	)

	// The first Run starts the process and opens the initial tab.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	logger.Info("Browser started.", zap.Bool("headless", cfg.Headless))

	b := &Browser{
		logger:        logger,
		navTimeout:    navTimeout,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}
	b.primary = newSession(browserCtx, nil, logger, navTimeout)
	return b, nil
}

// Primary returns the session bound to the browser's initial tab.
func (b *Browser) Primary() *Session { return b.primary }

// NewTab opens an independent tab. Closing the session closes the tab.
func (b *Browser) NewTab(ctx context.Context) (*Session, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("browser is closed")
	}
	b.mu.Unlock()

	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	runCtx, runCancel := CombineContext(tabCtx, ctx)
	defer runCancel()
	if err := chromedp.Run(runCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	s := newSession(tabCtx, cancel, b.logger, b.navTimeout)
	b.logger.Debug("Tab opened.", zap.String("session_id", s.ID()))
	return s, nil
}

// Close shuts the browser down, closing every tab.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true

	// Give Chrome a moment to close gracefully before killing the process.
	done := make(chan struct{})
	go func() {
		_ = chromedp.Cancel(b.browserCtx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		b.logger.Warn("Browser did not close in time; terminating.")
	}
	b.browserCancel()
	b.allocCancel()
	b.logger.Info("Browser closed.")
}
