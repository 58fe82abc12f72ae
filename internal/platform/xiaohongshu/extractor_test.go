package xiaohongshu

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	noteA = "682d7a17000000000f0338e2"
	noteB = "64f1c2d3000000000a0112ab"
	noteC = "aaaabbbbccccddddeeeeffff"
)

// pad grows content past the not-yet-loaded guard without adding links.
func pad(content string) string {
	return content + strings.Repeat("\n<!-- filler -->", 100)
}

func newTestExtractor() *Extractor {
	return NewExtractor(1000, zap.NewNop())
}

func TestExtractShortContentYieldsNothing(t *testing.T) {
	e := newTestExtractor()
	got := e.Extract(`href="https://www.xiaohongshu.com/explore/`+noteA+`?xsec_token=t&xsec_source=pc_feed"`, "https://www.xiaohongshu.com/explore", 20)
	require.Empty(t, got)
}

func TestExtractSingleCompleteLink(t *testing.T) {
	e := newTestExtractor()
	html := pad(`<html><body><a href="https://www.xiaohongshu.com/explore/` + noteA +
		`?xsec_token=ABnu0gBG=&xsec_source=pc_feed">note</a></body></html>`)

	got := e.Extract(html, "https://example.com", 20)
	require.Len(t, got, 1)
	require.Equal(t, noteA, got[0].ContentID)
	require.True(t, got[0].HasCompleteParams)
	require.Equal(t, "ABnu0gBG=", got[0].Tokens["xsec_token"])
	require.Equal(t, "pc_feed", got[0].Tokens["xsec_source"])
}

func TestExtractMarkdownLinks(t *testing.T) {
	e := newTestExtractor()
	md := pad(`[](https://www.xiaohongshu.com/explore/` + noteA + `?xsec_token=tokA=&xsec_source=pc_feed)
some text
[](https://www.xiaohongshu.com/explore/` + noteB + `?xsec_token=tokB=&xsec_source=pc_feed)`)

	got := e.Extract(md, "https://www.xiaohongshu.com/explore", 20)
	require.Len(t, got, 2)
	ids := []string{got[0].ContentID, got[1].ContentID}
	require.ElementsMatch(t, []string{noteA, noteB}, ids)
}

func TestExtractResolvesRelativeLinks(t *testing.T) {
	e := newTestExtractor()
	html := pad(`<a href="/explore/` + noteA + `?xsec_token=t=&xsec_source=pc_feed">x</a>`)

	got := e.Extract(html, "https://www.xiaohongshu.com/explore", 20)
	require.Len(t, got, 1)
	require.Equal(t, "https://www.xiaohongshu.com/explore/"+noteA+"?xsec_token=t=&xsec_source=pc_feed", got[0].URL)
}

func TestExtractDedupesAcrossPatterns(t *testing.T) {
	e := newTestExtractor()
	u := "https://www.xiaohongshu.com/explore/" + noteA + "?xsec_token=t&xsec_source=pc_feed"
	html := pad(`<a href="` + u + `">x</a> [](` + u + `) "` + u + `"`)

	got := e.Extract(html, "https://example.com", 20)
	require.Len(t, got, 1)
}

func TestExtractOrdersCompleteParamsFirst(t *testing.T) {
	e := newTestExtractor()
	html := pad(`
<a href="https://www.xiaohongshu.com/explore/` + noteA + `?foo=bar">incomplete</a>
<a href="https://www.xiaohongshu.com/explore/` + noteB + `?xsec_token=t&xsec_source=pc_feed">complete</a>
<a href="https://www.xiaohongshu.com/explore/` + noteC + `?foo=baz">incomplete</a>`)

	got := e.Extract(html, "https://example.com", 20)
	require.Len(t, got, 3)
	require.Equal(t, noteB, got[0].ContentID)
	require.True(t, got[0].HasCompleteParams)
	require.False(t, got[1].HasCompleteParams)
	require.False(t, got[2].HasCompleteParams)
	// stable partition keeps the incomplete links in source order
	require.Equal(t, noteA, got[1].ContentID)
	require.Equal(t, noteC, got[2].ContentID)
}

func TestExtractTruncatesToMaxLinks(t *testing.T) {
	e := newTestExtractor()
	html := pad(`
<a href="https://www.xiaohongshu.com/explore/` + noteA + `?xsec_token=t&xsec_source=s">a</a>
<a href="https://www.xiaohongshu.com/explore/` + noteB + `?xsec_token=t&xsec_source=s">b</a>
<a href="https://www.xiaohongshu.com/explore/` + noteC + `?xsec_token=t&xsec_source=s">c</a>`)

	got := e.Extract(html, "https://example.com", 2)
	require.Len(t, got, 2)
}

func TestExtractFallbackOnBareIDs(t *testing.T) {
	e := newTestExtractor()
	// No quotes or hrefs anywhere, so the primary patterns see nothing.
	html := pad(`window.route = explore/` + noteA + ` and explore/` + noteA + ` again
plus a short one explore/abc123 that must be rejected`)

	got := e.Extract(html, "https://example.com", 20)
	require.Len(t, got, 1)
	require.Equal(t, noteA, got[0].ContentID)
	require.False(t, got[0].HasCompleteParams)
	require.Empty(t, got[0].Tokens)
	require.Equal(t, noteBaseURL+noteA, got[0].URL)
}

func TestExtractFallbackRejectsNonCanonicalLength(t *testing.T) {
	e := newTestExtractor()
	// 22 hex chars: long enough for the loose pattern, not canonical.
	got := e.Extract(pad(`explore/aabbccddeeff0011223344`), "https://example.com", 20)
	require.Empty(t, got)
}

func TestExtractPrimaryWinsOverFallback(t *testing.T) {
	e := newTestExtractor()
	html := pad(`
<a href="https://www.xiaohongshu.com/explore/` + noteA + `?xsec_token=t&xsec_source=s">primary</a>
bare fallback candidate explore/` + noteC)

	got := e.Extract(html, "https://example.com", 20)
	require.Len(t, got, 1, "fallback must not run when primary matched")
	require.Equal(t, noteA, got[0].ContentID)
}

func TestParseNoteID(t *testing.T) {
	require.Equal(t, noteA, ParseNoteID("https://www.xiaohongshu.com/explore/"+noteA+"?xsec_token=t"))
	require.Equal(t, "", ParseNoteID("https://www.xiaohongshu.com/user/profile/123"))
}
