package headless

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/crawlgate/crawlgate/internal/crawl"
	"github.com/crawlgate/crawlgate/internal/metrics"
)

// Session is a live chromedp browser context. The underlying browser stays
// open between navigations so a user can complete a login by hand while the
// orchestrator polls.
type Session struct {
	engine      *Engine
	browser     crawl.BrowserConfig
	taskCtx     context.Context
	allocCancel context.CancelFunc
	taskCancel  context.CancelFunc
	release     func()
	meta        *responseMeta
}

// OpenSession launches a browser bound to the given configuration and keeps
// it open until Close. The caller must Close the session to free the
// parallelism slot and flush the profile directory.
func (e *Engine) OpenSession(ctx context.Context, browser crawl.BrowserConfig) (crawl.Session, error) {
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, e.allocatorOptions(browser)...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	// Start the browser process eagerly so launch failures surface here
	// rather than on the first navigation.
	if err := chromedp.Run(taskCtx); err != nil {
		taskCancel()
		allocCancel()
		e.release()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	metrics.IncBrowserSessions()
	return &Session{
		engine:      e,
		browser:     browser,
		taskCtx:     taskCtx,
		allocCancel: allocCancel,
		taskCancel:  taskCancel,
		release:     e.release,
		meta:        meta,
	}, nil
}

// Navigate loads url in the open browser window and returns the rendered page.
func (s *Session) Navigate(ctx context.Context, url string, run crawl.RunConfig) (crawl.Result, error) {
	timeout := run.Timeout
	if timeout <= 0 {
		timeout = s.engine.cfg.DefaultTimeout
	}
	navCtx, cancel := context.WithTimeout(s.taskCtx, timeout)
	defer cancel()

	// Honor the caller's context as well as the session's.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-navCtx.Done():
		}
	}()

	start := time.Now()
	html, finalURL, err := s.engine.navigate(navCtx, url, s.browser, run)
	if err != nil {
		return crawl.Result{}, fmt.Errorf("navigate %s: %w", url, err)
	}
	s.engine.logger.Debug("session navigation complete",
		zap.String("url", url),
		zap.Duration("took", time.Since(start)),
	)
	status, responseURL := s.meta.snapshotWithFallbacks(url, finalURL)
	return s.engine.buildResult(html, responseURL, status)
}

// CurrentHTML captures the present DOM without navigating, used to probe
// login progress without disturbing the page.
func (s *Session) CurrentHTML(ctx context.Context) (string, error) {
	probeCtx, cancel := context.WithTimeout(s.taskCtx, 15*time.Second)
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-probeCtx.Done():
		}
	}()
	var html string
	if err := chromedp.Run(probeCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("capture dom: %w", err)
	}
	return html, nil
}

// Close shuts the browser down, flushing session state to the profile dir.
func (s *Session) Close() error {
	s.taskCancel()
	s.allocCancel()
	s.release()
	metrics.DecBrowserSessions()
	return nil
}
