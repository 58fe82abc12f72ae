// Package platform defines the pluggable interface for site-specific content
// extraction and a registry the API serves platforms from.
package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Config is the static description of a platform integration.
type Config struct {
	Name             string `json:"name"`
	DisplayName      string `json:"display_name"`
	SiteName         string `json:"site_name"`
	DefaultSourceURL string `json:"default_source_url"`
	Version          string `json:"version"`
}

// Link is one content link discovered on a platform listing page.
// HasCompleteParams reports whether the URL carried every query parameter
// needed to open the content directly.
type Link struct {
	URL               string            `json:"url"`
	ContentID         string            `json:"content_id"`
	PreviewTitle      string            `json:"preview_title,omitempty"`
	HasCompleteParams bool              `json:"has_complete_params"`
	Tokens            map[string]string `json:"tokens,omitempty"`
}

// Content is one fully extracted content item.
type Content struct {
	ContentID   string    `json:"content_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Author      string    `json:"author,omitempty"`
	ContentType string    `json:"content_type"`
	Images      []string  `json:"images,omitempty"`
	Videos      []string  `json:"videos,omitempty"`
	SourceURL   string    `json:"source_url"`
	CrawledAt   time.Time `json:"crawled_at"`
}

// ExtractRequest narrows a link extraction run.
type ExtractRequest struct {
	SourceURL string
	MaxLinks  int
}

// Platform is one site integration. Implementations crawl through the
// authenticated engine and parse the rendered pages.
type Platform interface {
	Config() Config
	ExtractContentLinks(ctx context.Context, req ExtractRequest) ([]Link, error)
	CrawlContentByID(ctx context.Context, contentID, sourceURL string, tokens map[string]string) (Content, error)
	ParseContentID(raw string) (string, error)
}

// Registry holds the registered platforms keyed by name.
type Registry struct {
	mu        sync.RWMutex
	platforms map[string]Platform
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{platforms: make(map[string]Platform)}
}

// Register adds a platform. Duplicate names are an error; registration
// happens once at startup.
func (r *Registry) Register(p Platform) error {
	name := p.Config().Name
	if name == "" {
		return fmt.Errorf("platform has no name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.platforms[name]; ok {
		return fmt.Errorf("platform %s already registered", name)
	}
	r.platforms[name] = p
	return nil
}

// Get looks a platform up by name.
func (r *Registry) Get(name string) (Platform, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.platforms[name]
	return p, ok
}

// List returns the registered platforms sorted by name.
func (r *Registry) List() []Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Platform, 0, len(r.platforms))
	for _, p := range r.platforms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Config().Name < out[j].Config().Name
	})
	return out
}
