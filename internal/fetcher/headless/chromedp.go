// Package headless implements the browser engine on top of chromedp.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/crawlgate/crawlgate/internal/crawl"
	"github.com/crawlgate/crawlgate/internal/metrics"
	"github.com/crawlgate/crawlgate/internal/render"
)

// Config controls the behavior of the headless engine.
type Config struct {
	MaxParallel    int
	DefaultTimeout time.Duration
}

// Engine implements crawl.Engine using chromedp. Each Fetch launches its own
// browser process because the launch parameters (profile directory, headless
// flag, executable) vary per call.
type Engine struct {
	cfg      Config
	limiter  chan struct{}
	renderer *render.Renderer
	logger   *zap.Logger
}

// New creates a chromedp-backed Engine.
func New(cfg Config, logger *zap.Logger) (*Engine, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}
	return &Engine{
		cfg:      cfg,
		limiter:  limiter,
		renderer: render.New(),
		logger:   logger,
	}, nil
}

// Fetch navigates to url in a browser bound to the given configuration and
// returns the rendered page. A navigation failure is returned as an error;
// the caller decides whether it is fatal.
func (e *Engine) Fetch(
	ctx context.Context,
	url string,
	browser crawl.BrowserConfig,
	run crawl.RunConfig,
) (crawl.Result, error) {
	if err := e.acquire(ctx); err != nil {
		return crawl.Result{}, err
	}
	defer e.release()
	metrics.IncBrowserSessions()
	defer metrics.DecBrowserSessions()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, e.allocatorOptions(browser)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	timeout := run.Timeout
	if timeout <= 0 {
		timeout = e.cfg.DefaultTimeout
	}
	taskCtx, cancel := context.WithTimeout(taskCtx, timeout)
	defer cancel()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	start := time.Now()
	html, finalURL, err := e.navigate(taskCtx, url, browser, run)
	if err != nil {
		return crawl.Result{}, fmt.Errorf("navigate %s: %w", url, err)
	}
	e.logger.Debug("page fetched",
		zap.String("url", url),
		zap.Duration("took", time.Since(start)),
		zap.Int("html_bytes", len(html)),
	)

	status, responseURL := meta.snapshotWithFallbacks(url, finalURL)
	return e.buildResult(html, responseURL, status)
}

func (e *Engine) buildResult(html, pageURL string, status int) (crawl.Result, error) {
	page, err := e.renderer.Render(html, pageURL)
	if err != nil {
		return crawl.Result{}, fmt.Errorf("render page: %w", err)
	}
	result := crawl.Result{
		URL:         pageURL,
		Success:     status < http.StatusBadRequest,
		StatusCode:  status,
		HTML:        html,
		Markdown:    page.Markdown,
		FitMarkdown: page.FitMarkdown,
		Title:       page.Title,
		FetchedAt:   time.Now().UTC(),
	}
	for _, img := range page.Images {
		result.Media.Images = append(result.Media.Images, crawl.ImageRef{
			Src: img.Src, Alt: img.Alt, Width: img.Width, Height: img.Height,
		})
	}
	for _, vid := range page.Videos {
		result.Media.Videos = append(result.Media.Videos, crawl.VideoRef{
			Src: vid.Src, Poster: vid.Poster,
		})
	}
	for _, l := range page.Internal {
		result.Links.Internal = append(result.Links.Internal, crawl.LinkRef{Href: l.Href, Text: l.Text})
	}
	for _, l := range page.External {
		result.Links.External = append(result.Links.External, crawl.LinkRef{Href: l.Href, Text: l.Text})
	}
	if !result.Success {
		result.ErrorMessage = fmt.Sprintf("http status %d", status)
	}
	return result, nil
}

func (e *Engine) allocatorOptions(browser crawl.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	}
	if browser.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	}
	if browser.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(browser.ExecPath))
	}
	if browser.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(browser.UserDataDir))
	}
	if browser.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(browser.UserAgent))
	}
	if browser.Viewport.Width > 0 && browser.Viewport.Height > 0 {
		opts = append(opts, chromedp.WindowSize(browser.Viewport.Width, browser.Viewport.Height))
	}
	if !browser.JSEnabled {
		opts = append(opts, chromedp.Flag("blink-settings", "scriptEnabled=false"))
	}
	for _, arg := range browser.ExtraArgs {
		name, value := splitFlag(arg)
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// splitFlag normalizes a command-line style argument for chromedp.Flag,
// which prepends the leading dashes itself.
func splitFlag(arg string) (string, any) {
	trimmed := strings.TrimLeft(arg, "-")
	if name, value, ok := strings.Cut(trimmed, "="); ok {
		return name, value
	}
	return trimmed, true
}

func (e *Engine) navigate(
	ctx context.Context,
	url string,
	browser crawl.BrowserConfig,
	run crawl.RunConfig,
) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		e.networkSetupAction(browser, run),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Location(&finalURL),
	}
	if run.CSSSelector != "" {
		actions = append(actions,
			chromedp.WaitVisible(run.CSSSelector, chromedp.ByQuery),
			chromedp.OuterHTML(run.CSSSelector, &html, chromedp.ByQuery),
		)
	} else {
		actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

func (e *Engine) networkSetupAction(browser crawl.BrowserConfig, run crawl.RunConfig) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if run.BypassCache {
			if err := network.SetCacheDisabled(true).Do(ctx); err != nil {
				return fmt.Errorf("disable cache: %w", err)
			}
		}
		if browser.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(browser.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (e *Engine) acquire(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	select {
	case e.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (e *Engine) release() {
	if e.limiter == nil {
		return
	}
	select {
	case <-e.limiter:
	default:
	}
}

type responseMeta struct {
	mu     sync.RWMutex
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(resp.Response.Status)
	m.url = resp.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, string) {
	m.mu.RLock()
	status, url := m.status, m.url
	m.mu.RUnlock()

	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, url
}
