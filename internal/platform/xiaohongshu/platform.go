package xiaohongshu

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crawlgate/crawlgate/internal/auth"
	"github.com/crawlgate/crawlgate/internal/clock/system"
	"github.com/crawlgate/crawlgate/internal/crawl"
	"github.com/crawlgate/crawlgate/internal/platform"
)

// SiteName is the auth profile this platform crawls under.
const SiteName = "xiaohongshu_com"

// Link scan width when resolving a note's access URL; wider than the API
// default so a direct hit on the wanted note is more likely.
const accessScanLinks = 50

var bareNoteID = regexp.MustCompile(`^[a-f0-9]{24}$`)

// AuthFetcher runs a navigation under a stored auth profile.
type AuthFetcher interface {
	Fetch(ctx context.Context, req auth.CrawlRequest) (crawl.Result, error)
}

// Options tunes the platform.
type Options struct {
	MinHTMLLength int
	TokenTTL      time.Duration
	Clock         crawl.Clock
}

// Platform crawls xiaohongshu note listings and note pages through an
// authenticated browser profile.
type Platform struct {
	fetcher   AuthFetcher
	extractor *Extractor
	parser    *Parser
	tokens    *TokenCache
	logger    *zap.Logger
}

// New builds the xiaohongshu platform.
func New(fetcher AuthFetcher, logger *zap.Logger, opts Options) *Platform {
	if opts.MinHTMLLength <= 0 {
		opts.MinHTMLLength = 1000
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 300 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Platform{
		fetcher:   fetcher,
		extractor: NewExtractor(opts.MinHTMLLength, logger),
		parser:    NewParser(opts.Clock),
		tokens:    NewTokenCache(opts.TokenTTL, opts.Clock),
		logger:    logger,
	}
}

// Config describes the platform.
func (p *Platform) Config() platform.Config {
	return platform.Config{
		Name:             "xiaohongshu",
		DisplayName:      "小红书",
		SiteName:         SiteName,
		DefaultSourceURL: "https://www.xiaohongshu.com/explore",
		Version:          "1.1.0",
	}
}

// ExtractContentLinks loads a listing page and extracts note links. The
// markdown rendering is preferred when it carries note links; it is much
// less noisy than the raw HTML.
func (p *Platform) ExtractContentLinks(ctx context.Context, req platform.ExtractRequest) ([]platform.Link, error) {
	sourceURL := req.SourceURL
	if sourceURL == "" {
		sourceURL = p.Config().DefaultSourceURL
	}

	res, err := p.fetcher.Fetch(ctx, auth.CrawlRequest{
		URL:         sourceURL,
		SiteName:    SiteName,
		BypassCache: true,
	})
	if err != nil {
		return nil, err
	}

	content := res.HTML
	if res.Markdown != "" && strings.Contains(res.Markdown, "/explore/") {
		content = res.Markdown
	}
	links := p.extractor.Extract(content, sourceURL, req.MaxLinks)
	p.logger.Info("extracted xiaohongshu links",
		zap.String("source", sourceURL),
		zap.Int("count", len(links)))
	return links, nil
}

// CrawlContentByID resolves an access URL for the note, fetches it, and
// parses the page into a content record. Explicit tokens from the caller
// take precedence over anything cached or discovered.
func (p *Platform) CrawlContentByID(ctx context.Context, contentID, sourceURL string, tokens map[string]string) (platform.Content, error) {
	noteID, err := p.ParseContentID(contentID)
	if err != nil {
		return platform.Content{}, err
	}

	var targetURL string
	if TokenInfo(tokens)[paramToken] != "" {
		info := normalizeTokens(tokens)
		p.tokens.Put(info)
		targetURL = BuildNoteURL(noteID, info)
	} else {
		targetURL, err = p.accessURL(ctx, noteID, sourceURL)
		if err != nil {
			return platform.Content{}, err
		}
	}
	p.logger.Info("crawling xiaohongshu note",
		zap.String("note_id", noteID),
		zap.String("url", targetURL))

	res, err := p.fetcher.Fetch(ctx, auth.CrawlRequest{
		URL:         targetURL,
		SiteName:    SiteName,
		BypassCache: true,
	})
	if err != nil {
		return platform.Content{}, err
	}
	return p.parser.Parse(res, noteID, targetURL), nil
}

// ParseContentID accepts either a bare 24-hex note id or any note URL.
func (p *Platform) ParseContentID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if bareNoteID.MatchString(strings.ToLower(raw)) {
		return strings.ToLower(raw), nil
	}
	if id := ParseNoteID(raw); id != "" {
		return id, nil
	}
	return "", crawl.NewError(crawl.KindLinkNotFound, "not a xiaohongshu note id or url: "+raw)
}

// accessURL finds a URL that will actually open the note: cached token
// first, then a fresh scan of the listing page.
func (p *Platform) accessURL(ctx context.Context, noteID, sourceURL string) (string, error) {
	if info, ok := p.tokens.Get(); ok {
		url := BuildNoteURL(noteID, info)
		p.logger.Info("using cached token for note url", zap.String("note_id", noteID))
		return url, nil
	}

	links, err := p.ExtractContentLinks(ctx, platform.ExtractRequest{
		SourceURL: sourceURL,
		MaxLinks:  accessScanLinks,
	})
	if err != nil {
		return "", err
	}

	candidates := complete(links)
	if len(candidates) == 0 {
		candidates = links
	}

	// Direct hit: the listing already links the wanted note.
	for _, link := range candidates {
		if link.ContentID == noteID {
			if info := ExtractTokenFromURL(link.URL); info != nil {
				p.tokens.Put(info)
			}
			return link.URL, nil
		}
	}

	// Borrow the first candidate's token to construct the URL.
	for _, link := range candidates {
		if info := ExtractTokenFromURL(link.URL); info != nil {
			p.tokens.Put(info)
			return BuildNoteURL(noteID, info), nil
		}
	}

	return "", crawl.NewError(crawl.KindLinkNotFound,
		"no usable access link for note "+noteID)
}

func complete(links []platform.Link) []platform.Link {
	var out []platform.Link
	for _, l := range links {
		if l.HasCompleteParams {
			out = append(out, l)
		}
	}
	return out
}

// normalizeTokens applies the source default to caller-supplied tokens.
func normalizeTokens(tokens map[string]string) TokenInfo {
	info := TokenInfo{paramToken: tokens[paramToken]}
	if src := tokens[paramSource]; src != "" {
		info[paramSource] = src
	} else {
		info[paramSource] = defaultSource
	}
	if ch := tokens[paramChannel]; ch != "" {
		info[paramChannel] = ch
	}
	return info
}
