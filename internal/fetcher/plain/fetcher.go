// Package plain implements the engine interface with a non-rendering HTTP
// client, used when a request disables JavaScript and no browser is needed.
package plain

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/crawlgate/crawlgate/internal/crawl"
	"github.com/crawlgate/crawlgate/internal/render"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements crawl.Engine using the Colly collector.
type Fetcher struct {
	cfg      Config
	base     *colly.Collector
	renderer *render.Renderer
	logger   *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	return &Fetcher{
		cfg:      cfg,
		base:     c,
		renderer: render.New(),
		logger:   logger,
	}
}

// Fetch executes a single HTTP GET and renders the body. The browser
// configuration is ignored apart from the user agent; cookies stored in a
// profile directory are not available on this path.
func (f *Fetcher) Fetch(
	ctx context.Context,
	url string,
	browser crawl.BrowserConfig,
	run crawl.RunConfig,
) (crawl.Result, error) {
	collector := f.base.Clone()
	collector.UserAgent = f.cfg.UserAgent
	if browser.UserAgent != "" {
		collector.UserAgent = browser.UserAgent
	}
	timeout := run.Timeout
	if timeout <= 0 {
		timeout = f.cfg.Timeout
	}
	collector.SetRequestTimeout(timeout)

	var (
		status   int
		body     []byte
		finalURL = url
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
		finalURL = r.Request.URL.String()
	})
	collector.OnError(func(r *colly.Response, err error) {
		// Colly reports non-2xx statuses here; keep the body so callers can
		// inspect login walls on 401/403 responses.
		if r != nil && r.StatusCode > 0 {
			status = r.StatusCode
			body = append([]byte(nil), r.Body...)
			if r.Request != nil && r.Request.URL != nil {
				finalURL = r.Request.URL.String()
			}
			return
		}
		fetchErr = err
	})
	if run.BypassCache {
		collector.OnRequest(func(r *colly.Request) {
			r.Headers.Set("Cache-Control", "no-cache")
		})
	}

	if err := f.visit(ctx, collector, url); err != nil {
		return crawl.Result{}, err
	}
	if fetchErr != nil {
		return crawl.Result{}, fmt.Errorf("fetch %s: %w", url, fetchErr)
	}

	page, err := f.renderer.Render(string(body), finalURL)
	if err != nil {
		return crawl.Result{}, fmt.Errorf("render page: %w", err)
	}
	result := crawl.Result{
		URL:         finalURL,
		Success:     status > 0 && status < http.StatusBadRequest,
		StatusCode:  status,
		HTML:        string(body),
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
		result.Media.Videos = append(result.Media.Videos, crawl.VideoRef{Src: vid.Src, Poster: vid.Poster})
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

func (f *Fetcher) visit(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", url, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	}
}
