package headless

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crawlgate/crawlgate/internal/crawl"
)

func TestNewRejectsNegativeParallelism(t *testing.T) {
	t.Parallel()

	_, err := New(Config{MaxParallel: -1}, nil)
	require.Error(t, err)
}

func TestNewAppliesDefaultTimeout(t *testing.T) {
	t.Parallel()

	e, err := New(Config{}, nil)
	require.NoError(t, err)
	require.Equal(t, 60*time.Second, e.cfg.DefaultTimeout)
}

func TestAllocatorOptionsReflectBrowserConfig(t *testing.T) {
	t.Parallel()

	e, err := New(Config{MaxParallel: 1}, nil)
	require.NoError(t, err)

	visible := e.allocatorOptions(crawl.BrowserConfig{
		Headless:    false,
		JSEnabled:   true,
		ExecPath:    "/usr/bin/chromium-browser",
		UserDataDir: "/tmp/profiles/medium_com",
		Viewport:    crawl.Viewport{Width: 1280, Height: 800},
	})
	headless := e.allocatorOptions(crawl.BrowserConfig{Headless: true, JSEnabled: true})
	// The visible configuration must not carry the headless flag.
	require.Greater(t, len(visible), len(headless)-1)
}

func TestSplitFlagStripsLeadingDashes(t *testing.T) {
	t.Parallel()

	// chromedp.Flag adds "--" itself; preformatted args must lose theirs or
	// Chrome receives "----load-extension=..." and ignores the extension.
	name, value := splitFlag("--load-extension=/opt/unlock")
	require.Equal(t, "load-extension", name)
	require.Equal(t, "/opt/unlock", value)

	name, value = splitFlag("--disable-extensions-except=/opt/unlock")
	require.Equal(t, "disable-extensions-except", name)
	require.Equal(t, "/opt/unlock", value)

	name, value = splitFlag("disable-sync")
	require.Equal(t, "disable-sync", name)
	require.Equal(t, true, value)

	name, value = splitFlag("--proxy-server=http://127.0.0.1:8080")
	require.Equal(t, "proxy-server", name)
	require.Equal(t, "http://127.0.0.1:8080", value)
}

func TestBuildResultClassifiesStatus(t *testing.T) {
	t.Parallel()

	e, err := New(Config{}, nil)
	require.NoError(t, err)

	html := `<html><head><title>ok page</title></head><body><p>hello</p></body></html>`

	ok, err := e.buildResult(html, "https://example.com/a", http.StatusOK)
	require.NoError(t, err)
	require.True(t, ok.Success)
	require.Equal(t, "ok page", ok.Title)
	require.Contains(t, ok.Markdown, "hello")

	denied, err := e.buildResult(html, "https://example.com/a", http.StatusForbidden)
	require.NoError(t, err)
	require.False(t, denied.Success)
	require.Equal(t, http.StatusForbidden, denied.StatusCode)
	require.NotEmpty(t, denied.ErrorMessage)
}

func TestResponseMetaFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	status, url := meta.snapshotWithFallbacks("https://req.example.com", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://req.example.com", url)

	status, url = meta.snapshotWithFallbacks("https://req.example.com", "https://final.example.com")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://final.example.com", url)
}
