// Package crawl defines the core types shared across the scraping subsystems.
package crawl

import "time"

// BrowserConfig describes how the browser engine should be launched for a
// single fetch. A non-empty UserDataDir binds the session to a persistent
// profile directory.
type BrowserConfig struct {
	Headless    bool
	JSEnabled   bool
	ExecPath    string
	UserDataDir string
	UserAgent   string
	Viewport    Viewport
	ExtraArgs   []string
}

// Viewport is the emulated browser window size.
type Viewport struct {
	Width  int
	Height int
}

// RunConfig carries per-navigation knobs.
type RunConfig struct {
	BypassCache   bool
	Timeout       time.Duration
	CSSSelector   string
	IncludeImages bool
}

// Result is what a single navigation produces. Success reports whether the
// page loaded; a false Success with an empty error still yields whatever
// partial content the engine captured.
type Result struct {
	URL          string
	Success      bool
	StatusCode   int
	HTML         string
	Markdown     string
	FitMarkdown  string
	Title        string
	Media        MediaListing
	Links        LinkListing
	ErrorMessage string
	FetchedAt    time.Time
}

// MediaListing summarizes media references found in the page.
type MediaListing struct {
	Images []ImageRef `json:"images"`
	Videos []VideoRef `json:"videos"`
}

// ImageRef is one image reference from the rendered document.
type ImageRef struct {
	Src    string `json:"src"`
	Alt    string `json:"alt,omitempty"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
}

// VideoRef is one video source reference from the rendered document.
type VideoRef struct {
	Src    string `json:"src"`
	Poster string `json:"poster,omitempty"`
}

// LinkListing splits anchors into same-host and external sets.
type LinkListing struct {
	Internal []LinkRef `json:"internal"`
	External []LinkRef `json:"external"`
}

// LinkRef is one anchor from the rendered document.
type LinkRef struct {
	Href string `json:"href"`
	Text string `json:"text,omitempty"`
}

// CrawlData is the payload returned for an authenticated crawl.
type CrawlData struct {
	URL        string       `json:"url"`
	StatusCode int          `json:"status_code"`
	Markdown   string       `json:"markdown"`
	Media      MediaListing `json:"media"`
	Links      LinkListing  `json:"links"`
}

// MarkdownData is the payload returned for an authenticated markdown fetch.
type MarkdownData struct {
	URL         string `json:"url"`
	StatusCode  int    `json:"status_code"`
	RawMarkdown string `json:"raw_markdown"`
	FitMarkdown string `json:"fit_markdown"`
	Title       string `json:"title,omitempty"`
	WordCount   int    `json:"word_count"`
}
