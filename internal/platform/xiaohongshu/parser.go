package xiaohongshu

import (
	"regexp"
	"strings"

	"github.com/crawlgate/crawlgate/internal/crawl"
	"github.com/crawlgate/crawlgate/internal/platform"
)

// Content type classifications.
const (
	ContentTypeVideo     = "video"
	ContentTypeImageText = "image-text"
	ContentTypeText      = "text"
)

const (
	titleMaxLen  = 50
	authorMaxLen = 50

	placeholderTitle = "xiaohongshu note"
)

var titleTagPattern = regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`)

var titleSuffix = regexp.MustCompile(`\s*-\s*小红书.*$`)

var markdownSyntax = regexp.MustCompile("[#*`\\[\\]()]")

var authorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)"author"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`(?i)"nickname"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`(?i)data-author="([^"]+)"`),
	regexp.MustCompile(`(?i)class="[^"]*author[^"]*"[^>]*>([^<]+)</`),
}

var noiseLinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://`),
	regexp.MustCompile(`^\[.*\]\(.*\)$`),
	regexp.MustCompile(`(?i)^(登录|注册|下载|sign|login)`),
	regexp.MustCompile(`^小红书`),
}

// Asset hosts that count as note media. Everything else on the page (avatars
// from other CDNs, tracking pixels) is dropped.
var assetHosts = []string{"xiaohongshu", "xhscdn"}

// Parser turns a fetched note page into a structured content record.
type Parser struct {
	clock crawl.Clock
}

// NewParser builds a Parser; the clock stamps CrawledAt.
func NewParser(clock crawl.Clock) *Parser {
	return &Parser{clock: clock}
}

// Parse extracts title, body, author, and media from a fetched note page.
func (p *Parser) Parse(res crawl.Result, noteID, noteURL string) platform.Content {
	images, videos := collectNoteMedia(res.Media)
	return platform.Content{
		ContentID:   noteID,
		Title:       extractTitle(res.HTML, res.Markdown),
		Content:     cleanContent(res.Markdown),
		Author:      extractAuthor(res.HTML),
		ContentType: detectContentType(res.HTML, images, videos),
		Images:      images,
		Videos:      videos,
		SourceURL:   noteURL,
		CrawledAt:   p.clock.Now(),
	}
}

// extractTitle prefers the title tag with the site suffix stripped, then the
// first substantial non-URL markdown line, then a placeholder.
func extractTitle(html, markdown string) string {
	if m := titleTagPattern.FindStringSubmatch(html); m != nil {
		title := titleSuffix.ReplaceAllString(strings.TrimSpace(m[1]), "")
		if len(title) > 3 {
			return title
		}
	}
	for _, line := range strings.Split(strings.TrimSpace(markdown), "\n") {
		line = strings.TrimSpace(line)
		if len(line) <= 3 || strings.HasPrefix(line, "http") {
			continue
		}
		clean := strings.TrimSpace(markdownSyntax.ReplaceAllString(line, ""))
		if len(clean) > 3 {
			if runes := []rune(clean); len(runes) > titleMaxLen {
				clean = string(runes[:titleMaxLen])
			}
			return clean
		}
	}
	return placeholderTitle
}

// cleanContent drops navigation noise lines and joins the rest.
func cleanContent(markdown string) string {
	if markdown == "" {
		return ""
	}
	var keep []string
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isNoiseLine(line) {
			continue
		}
		keep = append(keep, line)
	}
	return strings.Join(keep, "\n")
}

func isNoiseLine(line string) bool {
	for _, p := range noiseLinePatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// extractAuthor tries JSON fields, data attributes, and author-class
// elements in order; first plausible hit wins.
func extractAuthor(html string) string {
	for _, p := range authorPatterns {
		if m := p.FindStringSubmatch(html); m != nil {
			author := strings.TrimSpace(m[1])
			if author != "" && len(author) < authorMaxLen {
				return author
			}
		}
	}
	return ""
}

// collectNoteMedia keeps only media hosted on the platform's asset domains.
func collectNoteMedia(media crawl.MediaListing) (images, videos []string) {
	for _, img := range media.Images {
		if isAssetURL(img.Src) {
			images = append(images, img.Src)
		}
	}
	for _, vid := range media.Videos {
		if isAssetURL(vid.Src) {
			videos = append(videos, vid.Src)
		}
	}
	return images, videos
}

func isAssetURL(src string) bool {
	for _, host := range assetHosts {
		if strings.Contains(src, host) {
			return true
		}
	}
	return false
}

// detectContentType classifies by attached media first, then by keyword
// hints in the raw page.
func detectContentType(html string, images, videos []string) string {
	if len(videos) > 0 {
		return ContentTypeVideo
	}
	if len(images) > 0 {
		return ContentTypeImageText
	}
	lower := strings.ToLower(html)
	if strings.Contains(lower, "video") || strings.Contains(html, "视频") {
		return ContentTypeVideo
	}
	if strings.Contains(lower, "image") || strings.Contains(html, "图片") {
		return ContentTypeImageText
	}
	return ContentTypeText
}
