// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/cartwright/internal/config"
	"github.com/xkilldash9x/cartwright/internal/observability"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// Manager owns the single browser process and hands out isolated browsing
// contexts, one per logical operation.
type Manager struct {
	logger  *zap.Logger
	cfg     config.BrowserConfig
	metrics *observability.Metrics

	// allocatorCtx manages the browser process. browserCtx is the first tab,
	// kept open so that every session can derive a new BrowserContext from it.
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc

	slots   *semaphore.Weighted
	limiter *rate.Limiter

	// wg tracks open sessions for a graceful shutdown.
	wg sync.WaitGroup
}

// NewManager launches the browser process, retrying with exponential backoff.
func NewManager(ctx context.Context, logger *zap.Logger, cfg config.BrowserConfig, metrics *observability.Metrics) (*Manager, error) {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	limit := rate.Inf
	if cfg.SessionsPerSecond > 0 {
		limit = rate.Limit(cfg.SessionsPerSecond)
	}

	m := &Manager{
		logger:  logger.Named("browser_manager"),
		cfg:     cfg,
		metrics: metrics,
		slots:   semaphore.NewWeighted(int64(concurrency)),
		limiter: rate.NewLimiter(limit, 1),
	}

	if err := m.launchBrowser(ctx); err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return m, nil
}

func (m *Manager) launchBrowser(ctx context.Context) error {
	attempts := m.cfg.LaunchAttempts
	if attempts == 0 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 10 * time.Second

	attempt := 0
	operation := func() error {
		attempt++
		m.logger.Info("Launching browser.", zap.Int("attempt", attempt), zap.Bool("headless", m.cfg.Headless))

		allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(m.cfg)...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)

		// Verify the browser starts and is responsive. The first Run binds the
		// browser lifetime to its context, so the timeout is applied from outside.
		errCh := make(chan error, 1)
		go func() { errCh <- chromedp.Run(browserCtx, chromedp.Navigate("about:blank")) }()
		var err error
		select {
		case err = <-errCh:
		case <-time.After(30 * time.Second):
			err = fmt.Errorf("browser did not respond within 30s")
		case <-ctx.Done():
			err = ctx.Err()
		}
		if err != nil {
			browserCancel()
			allocCancel()
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			m.logger.Warn("Browser failed to start, retrying...", zap.Error(err))
			return fmt.Errorf("browser failed to start or respond: %w", err)
		}

		m.allocatorCtx, m.allocatorCancel = allocCtx, allocCancel
		m.browserCtx, m.browserCancel = browserCtx, browserCancel
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)); err != nil {
		return err
	}
	m.logger.Info("Browser launched successfully and is responsive.")
	return nil
}

// AllocatorOptions assembles the launch options for cfg on top of chromedp's defaults.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range launchFlags(cfg) {
		opts = append(opts, chromedp.Flag(name, value))
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	opts = append(opts, chromedp.UserAgent(userAgent))
	if cfg.Viewport.Width > 0 && cfg.Viewport.Height > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.Viewport.Width, cfg.Viewport.Height))
	}
	return opts
}

// launchFlags returns the command line flags layered over the defaults. A false
// value removes a default flag.
func launchFlags(cfg config.BrowserConfig) map[string]any {
	flags := map[string]any{
		// Storefront bot checks look at navigator.webdriver.
		"enable-automation":         false,
		"disable-blink-features":    "AutomationControlled",
		"headless":                  cfg.Headless,
		"ignore-certificate-errors": cfg.IgnoreTLSErrors,
		"disable-extensions":        true,
		"disable-gpu":               cfg.Headless,
	}

	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		flagName := strings.TrimPrefix(parts[0], "--")
		if flagName == "" {
			continue
		}
		if len(parts) == 2 {
			flags[flagName] = parts[1]
		} else {
			flags[flagName] = true
		}
	}

	// Flags required inside containers.
	if runtime.GOOS == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
		flags["disable-setuid-sandbox"] = true
	}
	return flags
}

// NewSession opens a new isolated browsing context with one tab, restoring
// state when it is non-empty. The caller must Close the session on every path.
func (m *Manager) NewSession(ctx context.Context, state []byte) (Session, error) {
	restored, err := DecodeStorageState(state)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := m.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a browser slot: %w", err)
	}
	if err := m.limiter.Wait(ctx); err != nil {
		m.slots.Release(1)
		return nil, fmt.Errorf("waiting to open a browser session: %w", err)
	}
	waited := time.Since(start)

	tabCtx, cancel := chromedp.NewContext(m.browserCtx, chromedp.WithNewBrowserContext())
	// The target's event loop lives as long as the context of its first Run.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		m.slots.Release(1)
		return nil, fmt.Errorf("failed to create browsing context: %w", err)
	}

	setup := []chromedp.Action{}
	if m.cfg.Viewport.Width > 0 && m.cfg.Viewport.Height > 0 {
		setup = append(setup, chromedp.EmulateViewport(int64(m.cfg.Viewport.Width), int64(m.cfg.Viewport.Height)))
	}
	setup = append(setup, chromedp.ActionFunc(func(ctx context.Context) error {
		return restoreState(ctx, restored)
	}))

	runCtx, runCancel := CombineContext(tabCtx, ctx)
	err = chromedp.Run(runCtx, setup...)
	runCancel()
	if err != nil {
		cancel()
		m.slots.Release(1)
		return nil, fmt.Errorf("failed to initialize browsing context: %w", err)
	}

	m.wg.Add(1)
	m.metrics.SessionOpened(waited)
	m.logger.Debug("Browsing context opened.", zap.Duration("waited", waited), zap.Int("restored_cookies", len(restored.Cookies)))

	s := &session{
		tabCtx:   tabCtx,
		cancel:   cancel,
		page:     &cdpPage{tabCtx: tabCtx},
		restored: restored,
		logger:   m.logger,
	}
	s.release = func() {
		m.slots.Release(1)
		m.metrics.SessionClosed()
		m.wg.Done()
	}
	return s, nil
}

// Shutdown waits for open sessions, bounded by ctx, then terminates the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Browser manager shutdown initiated. Waiting for active sessions to complete...")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions have completed.")
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded. Forcing browser termination.", zap.Error(ctx.Err()))
	}

	if m.browserCancel != nil {
		m.browserCancel()
	}
	if m.allocatorCancel != nil {
		m.logger.Info("Shutting down main browser process...")
		m.allocatorCancel()
		<-m.allocatorCtx.Done()
	}
	return nil
}
