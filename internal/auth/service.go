package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crawlgate/crawlgate/internal/crawl"
	"github.com/crawlgate/crawlgate/internal/profile"
)

// CrawlRequest describes one authenticated fetch. JavaScript is on unless
// DisableJS is set.
type CrawlRequest struct {
	URL           string
	SiteName      string
	BypassCache   bool
	CSSSelector   string
	IncludeImages bool
	DisableJS     bool
}

// Service performs authenticated crawls against previously established
// profiles. Unlike setup, these run headless.
type Service struct {
	engine   crawl.Engine
	plain    crawl.Engine
	profiles *profile.Store
	resolver ExecResolver
	analyzer *Analyzer
	logger   *zap.Logger
	opts     Options
}

// ExecResolver yields a browser executable path. Satisfied by
// *browser.Resolver.
type ExecResolver interface {
	Resolve() (string, error)
}

// NewService wires an authenticated crawl service.
func NewService(engine crawl.Engine, profiles *profile.Store, resolver ExecResolver, analyzer *Analyzer, logger *zap.Logger, opts Options) *Service {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 60 * time.Second
	}
	return &Service{
		engine:   engine,
		profiles: profiles,
		resolver: resolver,
		analyzer: analyzer,
		logger:   logger,
		opts:     opts,
	}
}

// WithPlainEngine routes DisableJS requests through a non-rendering fetcher.
// Those requests skip the browser entirely, so stored cookies do not apply.
func (s *Service) WithPlainEngine(plain crawl.Engine) *Service {
	s.plain = plain
	return s
}

// CrawlWithAuth fetches a URL using the site's stored login state and
// returns the full extraction payload.
func (s *Service) CrawlWithAuth(ctx context.Context, req CrawlRequest) (crawl.CrawlData, error) {
	res, err := s.fetch(ctx, req)
	if err != nil {
		return crawl.CrawlData{}, err
	}
	return crawl.CrawlData{
		URL:        res.URL,
		StatusCode: res.StatusCode,
		Markdown:   res.Markdown,
		Media:      res.Media,
		Links:      res.Links,
	}, nil
}

// MarkdownWithAuth fetches a URL using stored login state and returns only
// the markdown renderings.
func (s *Service) MarkdownWithAuth(ctx context.Context, req CrawlRequest) (crawl.MarkdownData, error) {
	res, err := s.fetch(ctx, req)
	if err != nil {
		return crawl.MarkdownData{}, err
	}
	return crawl.MarkdownData{
		URL:         res.URL,
		StatusCode:  res.StatusCode,
		RawMarkdown: res.Markdown,
		FitMarkdown: res.FitMarkdown,
		Title:       res.Title,
		WordCount:   len(strings.Fields(res.Markdown)),
	}, nil
}

// VerifyLogin loads the test URL under the site profile and classifies the
// page's login state.
func (s *Service) VerifyLogin(ctx context.Context, siteName, testURL string) (LoginStatus, error) {
	res, err := s.fetch(ctx, CrawlRequest{URL: testURL, SiteName: siteName, BypassCache: true})
	if err != nil {
		var cerr *crawl.Error
		// An expired session is still an answer to "am I logged in?".
		if errors.As(err, &cerr) && cerr.Kind == crawl.KindAuthExpired {
			return LoginStatus{
				Status:     StatusNotLoggedIn,
				Message:    cerr.Message,
				Confidence: ConfidenceHigh,
			}, nil
		}
		return LoginStatus{}, err
	}
	return s.analyzer.Analyze(pageText(res), siteName), nil
}

// Fetch runs a headless navigation under the site profile and applies the
// session-expiry heuristic. Exposed for the platform extractors, which need
// the raw Result.
func (s *Service) Fetch(ctx context.Context, req CrawlRequest) (crawl.Result, error) {
	return s.fetch(ctx, req)
}

func (s *Service) fetch(ctx context.Context, req CrawlRequest) (crawl.Result, error) {
	if req.URL == "" {
		return crawl.Result{}, crawl.NewError(crawl.KindCrawlFailed, "url is required")
	}
	if req.SiteName == "" {
		return crawl.Result{}, crawl.NewError(crawl.KindCrawlFailed, "site_name is required")
	}
	if !s.profiles.Exists(req.SiteName) {
		return crawl.Result{}, crawl.NewError(crawl.KindAuthRequired,
			"no auth profile for "+req.SiteName+", run login setup first")
	}

	unlock, ok := s.profiles.TryLock(req.SiteName)
	if !ok {
		return crawl.Result{}, crawl.NewError(crawl.KindCrawlFailed,
			"profile for "+req.SiteName+" is in use by another session")
	}
	defer unlock()

	engine := s.engine
	var browserCfg crawl.BrowserConfig
	if req.DisableJS && s.plain != nil {
		engine = s.plain
		browserCfg = crawl.BrowserConfig{UserAgent: s.opts.UserAgent}
	} else {
		cfg, err := s.browserConfig(req.SiteName, req.DisableJS)
		if err != nil {
			return crawl.Result{}, err
		}
		browserCfg = cfg
	}

	res, err := engine.Fetch(ctx, req.URL, browserCfg, crawl.RunConfig{
		BypassCache:   req.BypassCache,
		CSSSelector:   req.CSSSelector,
		IncludeImages: req.IncludeImages,
		Timeout:       s.opts.NavTimeout,
	})
	if err != nil {
		if ctx.Err() != nil {
			return crawl.Result{}, crawl.WrapError(crawl.KindTimeout, "fetch "+req.URL, err)
		}
		return crawl.Result{}, crawl.WrapError(crawl.KindCrawlFailed, "fetch "+req.URL, err)
	}
	if !res.Success {
		if sessionExpired(res) {
			s.logger.Warn("stored session appears expired",
				zap.String("site", req.SiteName),
				zap.Int("status", res.StatusCode))
			return crawl.Result{}, crawl.NewError(crawl.KindAuthExpired,
				"stored login for "+req.SiteName+" appears expired, run setup again")
		}
		msg := res.ErrorMessage
		if msg == "" {
			msg = "page did not load"
		}
		return crawl.Result{}, crawl.NewError(crawl.KindCrawlFailed, msg)
	}
	return res, nil
}

func (s *Service) browserConfig(siteName string, disableJS bool) (crawl.BrowserConfig, error) {
	cfg := crawl.BrowserConfig{
		Headless:    true,
		JSEnabled:   !disableJS,
		UserDataDir: s.profiles.Path(siteName),
		UserAgent:   s.opts.UserAgent,
		Viewport:    s.opts.Viewport,
	}
	path, err := s.resolver.Resolve()
	if err != nil {
		if s.opts.AllowNoBrowser {
			return cfg, nil
		}
		return crawl.BrowserConfig{}, crawl.WrapError(crawl.KindBrowserNotFound,
			"resolve browser executable", err)
	}
	cfg.ExecPath = path
	return cfg, nil
}

// sessionExpired flags a failed page as an auth problem when the server said
// so outright or the page bounced to a login wall.
func sessionExpired(res crawl.Result) bool {
	if res.StatusCode == 401 || res.StatusCode == 403 {
		return true
	}
	lower := strings.ToLower(pageText(res))
	for _, kw := range []string{"login", "sign in", "signin", "authenticate"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
