// Package xiaohongshu implements content extraction for xiaohongshu.com,
// whose note pages are gated behind short-lived access tokens carried as
// query parameters.
package xiaohongshu

import (
	"net/url"
	"sync"
	"time"

	"github.com/crawlgate/crawlgate/internal/crawl"
)

// Query parameters gating note access.
const (
	paramToken   = "xsec_token"
	paramSource  = "xsec_source"
	paramChannel = "channel_id"

	defaultSource = "pc_feed"

	noteBaseURL = "https://www.xiaohongshu.com/explore/"
)

// TokenInfo is the set of query parameters that authorize access to a note.
// xsec_token is mandatory; without it the info is unusable.
type TokenInfo map[string]string

// ExtractTokenFromURL pulls token parameters out of a note URL. Returns nil
// when the URL carries no xsec_token. A missing xsec_source is filled with
// the feed default.
func ExtractTokenFromURL(rawURL string) TokenInfo {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	q := u.Query()
	if q.Get(paramToken) == "" {
		return nil
	}
	info := TokenInfo{paramToken: q.Get(paramToken)}
	if src := q.Get(paramSource); src != "" {
		info[paramSource] = src
	} else {
		info[paramSource] = defaultSource
	}
	if ch := q.Get(paramChannel); ch != "" {
		info[paramChannel] = ch
	}
	return info
}

// BuildNoteURL constructs a direct note URL from an id and token info.
func BuildNoteURL(noteID string, info TokenInfo) string {
	base := noteBaseURL + noteID
	if len(info) == 0 {
		return base
	}
	q := url.Values{}
	if v, ok := info[paramToken]; ok {
		q.Set(paramToken, v)
	}
	if v, ok := info[paramSource]; ok {
		q.Set(paramSource, v)
	} else {
		q.Set(paramSource, defaultSource)
	}
	if v, ok := info[paramChannel]; ok {
		q.Set(paramChannel, v)
	}
	if len(q) == 0 {
		return base
	}
	return base + "?" + q.Encode()
}

// TokenCache remembers the most recently seen TokenInfo for a bounded time.
// Single slot: a new Put replaces whatever was stored, regardless of which
// note it came from.
type TokenCache struct {
	mu       sync.Mutex
	info     TokenInfo
	storedAt time.Time
	ttl      time.Duration
	clock    crawl.Clock
}

// NewTokenCache builds a cache with the given TTL.
func NewTokenCache(ttl time.Duration, clock crawl.Clock) *TokenCache {
	return &TokenCache{ttl: ttl, clock: clock}
}

// Put stores the info unless it lacks the mandatory token.
func (c *TokenCache) Put(info TokenInfo) {
	if info[paramToken] == "" {
		return
	}
	c.mu.Lock()
	c.info = info
	c.storedAt = c.clock.Now()
	c.mu.Unlock()
}

// Get returns the stored info if it has not expired.
func (c *TokenCache) Get() (TokenInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.info == nil {
		return nil, false
	}
	if c.clock.Now().Sub(c.storedAt) >= c.ttl {
		return nil, false
	}
	return c.info, true
}
