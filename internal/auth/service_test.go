package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crawlgate/crawlgate/internal/crawl"
	"github.com/crawlgate/crawlgate/internal/profile"
)

type fakeEngine struct {
	result  crawl.Result
	err     error
	lastURL string
	lastCfg crawl.BrowserConfig
	lastRun crawl.RunConfig
}

func (e *fakeEngine) Fetch(ctx context.Context, url string, browser crawl.BrowserConfig, run crawl.RunConfig) (crawl.Result, error) {
	e.lastURL = url
	e.lastCfg = browser
	e.lastRun = run
	return e.result, e.err
}

type staticResolver struct {
	path string
	err  error
}

func (r staticResolver) Resolve() (string, error) { return r.path, r.err }

func newTestService(t *testing.T, engine *fakeEngine, sites ...string) (*Service, *profile.Store) {
	t.Helper()
	profiles, err := profile.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	for _, site := range sites {
		_, err := profiles.Ensure(site)
		require.NoError(t, err)
	}
	svc := NewService(engine, profiles, staticResolver{path: "/usr/bin/chromium"},
		NewAnalyzer(), zap.NewNop(), Options{
			UserAgent:  "test-agent",
			Viewport:   crawl.Viewport{Width: 1280, Height: 800},
			NavTimeout: 30 * time.Second,
		})
	return svc, profiles
}

func TestCrawlWithAuthRequiresProfile(t *testing.T) {
	svc, _ := newTestService(t, &fakeEngine{})

	_, err := svc.CrawlWithAuth(context.Background(), CrawlRequest{
		URL: "https://medium.com/some-article", SiteName: "medium_com",
	})
	var cerr *crawl.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, crawl.KindAuthRequired, cerr.Kind)
}

func TestCrawlWithAuthSuccess(t *testing.T) {
	engine := &fakeEngine{result: crawl.Result{
		URL:        "https://medium.com/some-article",
		Success:    true,
		StatusCode: 200,
		Markdown:   "# Title\n\nBody text here.",
		Links: crawl.LinkListing{
			Internal: []crawl.LinkRef{{Href: "https://medium.com/other"}},
		},
	}}
	svc, profiles := newTestService(t, engine, "medium_com")

	data, err := svc.CrawlWithAuth(context.Background(), CrawlRequest{
		URL: "https://medium.com/some-article", SiteName: "medium_com", BypassCache: true,
	})
	require.NoError(t, err)
	require.Equal(t, 200, data.StatusCode)
	require.Contains(t, data.Markdown, "Body text")
	require.Len(t, data.Links.Internal, 1)

	// headless, pinned to the profile dir
	require.True(t, engine.lastCfg.Headless)
	require.Equal(t, profiles.Path("medium_com"), engine.lastCfg.UserDataDir)
	require.Equal(t, "/usr/bin/chromium", engine.lastCfg.ExecPath)
	require.True(t, engine.lastRun.BypassCache)
}

func TestMarkdownWithAuthCountsWords(t *testing.T) {
	engine := &fakeEngine{result: crawl.Result{
		URL: "https://investors.com/article", Success: true, StatusCode: 200,
		Markdown:    "one two three four five",
		FitMarkdown: "one two three",
		Title:       "Article",
	}}
	svc, _ := newTestService(t, engine, "investors_com")

	data, err := svc.MarkdownWithAuth(context.Background(), CrawlRequest{
		URL: "https://investors.com/article", SiteName: "investors_com",
	})
	require.NoError(t, err)
	require.Equal(t, 5, data.WordCount)
	require.Equal(t, "one two three", data.FitMarkdown)
	require.Equal(t, "Article", data.Title)
}

func TestCrawlWithAuthDetectsExpiredSession(t *testing.T) {
	tests := []struct {
		name   string
		result crawl.Result
	}{
		{
			name:   "explicit 403",
			result: crawl.Result{Success: false, StatusCode: 403, HTML: "<p>Forbidden</p>"},
		},
		{
			name:   "login wall with 200",
			result: crawl.Result{Success: false, StatusCode: 200, Markdown: "Please sign in to continue"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, &fakeEngine{result: tt.result}, "medium_com")
			_, err := svc.CrawlWithAuth(context.Background(), CrawlRequest{
				URL: "https://medium.com/x", SiteName: "medium_com",
			})
			var cerr *crawl.Error
			require.ErrorAs(t, err, &cerr)
			require.Equal(t, crawl.KindAuthExpired, cerr.Kind)
		})
	}
}

func TestCrawlWithAuthNonAuthFailure(t *testing.T) {
	engine := &fakeEngine{result: crawl.Result{
		Success: false, StatusCode: 500, Markdown: "internal server error",
		ErrorMessage: "status 500",
	}}
	svc, _ := newTestService(t, engine, "medium_com")

	_, err := svc.CrawlWithAuth(context.Background(), CrawlRequest{
		URL: "https://medium.com/x", SiteName: "medium_com",
	})
	var cerr *crawl.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, crawl.KindCrawlFailed, cerr.Kind)
}

func TestCrawlWithAuthWhileProfileLocked(t *testing.T) {
	svc, profiles := newTestService(t, &fakeEngine{}, "medium_com")
	unlock, ok := profiles.TryLock("medium_com")
	require.True(t, ok)
	defer unlock()

	_, err := svc.CrawlWithAuth(context.Background(), CrawlRequest{
		URL: "https://medium.com/x", SiteName: "medium_com",
	})
	var cerr *crawl.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, crawl.KindCrawlFailed, cerr.Kind)
}

func TestCrawlWithAuthEngineError(t *testing.T) {
	svc, _ := newTestService(t, &fakeEngine{err: errors.New("chrome crashed")}, "medium_com")

	_, err := svc.CrawlWithAuth(context.Background(), CrawlRequest{
		URL: "https://medium.com/x", SiteName: "medium_com",
	})
	var cerr *crawl.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, crawl.KindCrawlFailed, cerr.Kind)
}

func TestVerifyLogin(t *testing.T) {
	engine := &fakeEngine{result: crawl.Result{
		Success: true, StatusCode: 200,
		Markdown: "Welcome back! Dashboard | Settings | Logout",
	}}
	svc, _ := newTestService(t, engine, "medium_com")

	status, err := svc.VerifyLogin(context.Background(), "medium_com", "https://medium.com/me")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, status.Status)
}

func TestVerifyLoginExpiredReportsNotLoggedIn(t *testing.T) {
	engine := &fakeEngine{result: crawl.Result{Success: false, StatusCode: 401}}
	svc, _ := newTestService(t, engine, "medium_com")

	status, err := svc.VerifyLogin(context.Background(), "medium_com", "https://medium.com/me")
	require.NoError(t, err)
	require.Equal(t, StatusNotLoggedIn, status.Status)
	require.Equal(t, ConfidenceHigh, status.Confidence)
}

func TestBrowserNotFoundWithoutFallback(t *testing.T) {
	profiles, err := profile.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	_, err = profiles.Ensure("medium_com")
	require.NoError(t, err)

	svc := NewService(&fakeEngine{}, profiles, staticResolver{err: errors.New("not found")},
		NewAnalyzer(), zap.NewNop(), Options{NavTimeout: time.Second})

	_, err = svc.CrawlWithAuth(context.Background(), CrawlRequest{
		URL: "https://medium.com/x", SiteName: "medium_com",
	})
	var cerr *crawl.Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, crawl.KindBrowserNotFound, cerr.Kind)
}

func TestDisableJSRoutesThroughPlainEngine(t *testing.T) {
	headless := &fakeEngine{result: crawl.Result{Success: true, StatusCode: 200}}
	plain := &fakeEngine{result: crawl.Result{Success: true, StatusCode: 200, Markdown: "static page"}}
	svc, _ := newTestService(t, headless, "medium_com")
	svc.WithPlainEngine(plain)

	data, err := svc.CrawlWithAuth(context.Background(), CrawlRequest{
		URL: "https://medium.com/story", SiteName: "medium_com", DisableJS: true,
	})
	require.NoError(t, err)
	require.Equal(t, "static page", data.Markdown)
	require.Empty(t, headless.lastURL)
	require.Equal(t, "https://medium.com/story", plain.lastURL)
	require.Equal(t, "test-agent", plain.lastCfg.UserAgent)
	require.Empty(t, plain.lastCfg.UserDataDir)
}

func TestDisableJSWithoutPlainEngineStaysHeadless(t *testing.T) {
	headless := &fakeEngine{result: crawl.Result{Success: true, StatusCode: 200}}
	svc, _ := newTestService(t, headless, "medium_com")

	_, err := svc.CrawlWithAuth(context.Background(), CrawlRequest{
		URL: "https://medium.com/story", SiteName: "medium_com", DisableJS: true,
	})
	require.NoError(t, err)
	require.False(t, headless.lastCfg.JSEnabled)
	require.NotEmpty(t, headless.lastCfg.UserDataDir)
}
