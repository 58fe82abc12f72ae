package xiaohongshu

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/crawlgate/crawlgate/internal/platform"
)

// Note ids are 24 lowercase hex characters.
const noteIDLength = 24

// Primary patterns match fully qualified or site-relative note URLs as they
// appear in markdown links, anchor hrefs, and JSON string literals.
var primaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\]\((https://www\.xiaohongshu\.com/explore/[a-f0-9]{24}\?[^)]*)\)`),
	regexp.MustCompile(`(?i)href="(https://www\.xiaohongshu\.com/explore/[a-f0-9]{24}\?[^"]*)"`),
	regexp.MustCompile(`(?i)href="(/explore/[a-f0-9]{24}\?[^"]*)"`),
	regexp.MustCompile(`(?i)"(https://www\.xiaohongshu\.com/explore/[a-f0-9]{24}\?[^"]*)"`),
	regexp.MustCompile(`(?i)"(/explore/[a-f0-9]{24}\?[^"]*)"`),
}

// Fallback patterns capture bare note ids without requiring the surrounding
// attribute or link syntax.
var fallbackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)explore/([a-f0-9]{20,})`),
	regexp.MustCompile(`(?i)/explore/([a-f0-9]+)\?`),
	regexp.MustCompile(`(?i)xiaohongshu\.com/explore/([a-f0-9]+)`),
}

var noteIDPattern = regexp.MustCompile(`/explore/([a-f0-9]+)`)

// Extractor pulls note links out of rendered listing pages.
type Extractor struct {
	minLength int
	logger    *zap.Logger
}

// NewExtractor builds an Extractor. Content shorter than minLength is
// treated as a page that never finished loading.
func NewExtractor(minLength int, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{minLength: minLength, logger: logger}
}

// Extract finds note links in HTML or markdown. Entries with complete token
// parameters sort first; the result is capped at maxLinks. An empty result
// is not an error.
func (e *Extractor) Extract(content, baseURL string, maxLinks int) []platform.Link {
	if len(content) < e.minLength {
		e.logger.Warn("content too short for extraction", zap.Int("length", len(content)))
		return nil
	}

	urls := e.primaryMatches(content, baseURL)
	if len(urls) == 0 {
		e.logger.Info("primary patterns found nothing, trying fallback")
		return e.fallbackExtract(content, maxLinks)
	}

	links := make([]platform.Link, 0, len(urls))
	for _, full := range urls {
		id := ParseNoteID(full)
		if id == "" || len(id) < 20 {
			continue
		}
		links = append(links, buildLink(id, full))
	}

	// Complete-token links first, original order otherwise.
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].HasCompleteParams && !links[j].HasCompleteParams
	})
	if len(links) > maxLinks {
		links = links[:maxLinks]
	}
	e.logger.Info("extracted note links", zap.Int("count", len(links)))
	return links
}

// primaryMatches unions all pattern matches, resolves relative paths, and
// dedupes by full URL preserving first-seen order.
func (e *Extractor) primaryMatches(content, baseURL string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range primaryPatterns {
		for _, m := range p.FindAllStringSubmatch(content, -1) {
			full := m[1]
			if strings.HasPrefix(full, "/") {
				full = resolveRelative(baseURL, full)
			}
			if _, dup := seen[full]; dup {
				continue
			}
			seen[full] = struct{}{}
			out = append(out, full)
		}
	}
	return out
}

// fallbackExtract captures bare ids. It insists on the canonical id length
// so the looser patterns do not admit garbage, and dedupes by id.
func (e *Extractor) fallbackExtract(content string, maxLinks int) []platform.Link {
	seen := make(map[string]struct{})
	var links []platform.Link
	for _, p := range fallbackPatterns {
		for _, m := range p.FindAllStringSubmatch(content, -1) {
			id := strings.ToLower(m[1])
			if len(id) != noteIDLength {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			links = append(links, platform.Link{
				URL:          noteBaseURL + id,
				ContentID:    id,
				PreviewTitle: previewTitle(id),
			})
			if len(links) >= maxLinks {
				return links
			}
		}
	}
	return links
}

func buildLink(id, fullURL string) platform.Link {
	link := platform.Link{
		URL:          fullURL,
		ContentID:    id,
		PreviewTitle: previewTitle(id),
	}
	if u, err := url.Parse(fullURL); err == nil {
		q := u.Query()
		if len(q) > 0 {
			link.Tokens = make(map[string]string, len(q))
			for k := range q {
				link.Tokens[k] = q.Get(k)
			}
		}
		link.HasCompleteParams = q.Get(paramToken) != "" && q.Has(paramSource)
	}
	return link
}

// ParseNoteID extracts the note id from a note URL, or returns "".
func ParseNoteID(rawURL string) string {
	m := noteIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

func previewTitle(id string) string {
	return "xiaohongshu note " + id
}

func resolveRelative(baseURL, ref string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(rel).String()
}
