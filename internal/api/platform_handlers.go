package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/crawlgate/crawlgate/internal/metrics"
	"github.com/crawlgate/crawlgate/internal/platform"
	"github.com/crawlgate/crawlgate/internal/storage/postgres"
)

type platformInfo struct {
	Name             string `json:"name"`
	DisplayName      string `json:"display_name"`
	SiteName         string `json:"site_name"`
	DefaultSourceURL string `json:"default_source_url"`
	Version          string `json:"version"`
	Available        bool   `json:"available"`
}

type extractLinksRequest struct {
	Platform  string `json:"platform"`
	SourceURL string `json:"source_url"`
	MaxLinks  int    `json:"max_links"`
}

type extractLinksData struct {
	Platform    string          `json:"platform"`
	SourceURL   string          `json:"source_url"`
	Links       []platform.Link `json:"links"`
	TotalCount  int             `json:"total_count"`
	ExtractedAt time.Time       `json:"extracted_at"`
}

type crawlContentRequest struct {
	Platform  string            `json:"platform"`
	ContentID string            `json:"content_id"`
	SourceURL string            `json:"source_url"`
	Tokens    map[string]string `json:"tokens"`
}

type crawlContentData struct {
	Platform string           `json:"platform"`
	Content  platform.Content `json:"content"`
}

func (s *Server) listPlatforms(w http.ResponseWriter, _ *http.Request) {
	infos := []platformInfo{}
	for _, p := range s.platforms.List() {
		cfg := p.Config()
		infos = append(infos, platformInfo{
			Name:             cfg.Name,
			DisplayName:      cfg.DisplayName,
			SiteName:         cfg.SiteName,
			DefaultSourceURL: cfg.DefaultSourceURL,
			Version:          cfg.Version,
			Available:        s.profiles.Exists(cfg.SiteName),
		})
	}
	writeSuccess(w, map[string]any{"platforms": infos, "total_count": len(infos)}, "")
}

func (s *Server) extractLinks(w http.ResponseWriter, r *http.Request) {
	var req extractLinksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, CodeInvalidParams, "invalid JSON body")
		return
	}
	p, ok := s.platforms.Get(req.Platform)
	if !ok {
		writeFailure(w, CodeInvalidParams, "unknown platform: "+req.Platform)
		return
	}
	if req.SourceURL != "" && !isValidURL(req.SourceURL) {
		writeFailure(w, CodeInvalidURL, "invalid source_url format")
		return
	}
	maxLinks := req.MaxLinks
	if maxLinks <= 0 {
		maxLinks = s.cfg.Extract.MaxLinksDefault
	}

	links, err := p.ExtractContentLinks(r.Context(), platform.ExtractRequest{
		SourceURL: req.SourceURL,
		MaxLinks:  maxLinks,
	})
	if err != nil {
		writeOperationError(w, err)
		return
	}
	metrics.ObserveLinksExtracted(req.Platform, len(links))
	if links == nil {
		links = []platform.Link{}
	}

	sourceURL := req.SourceURL
	if sourceURL == "" {
		sourceURL = p.Config().DefaultSourceURL
	}
	writeSuccess(w, extractLinksData{
		Platform:    req.Platform,
		SourceURL:   sourceURL,
		Links:       links,
		TotalCount:  len(links),
		ExtractedAt: s.clock.Now(),
	}, "links extracted")
}

func (s *Server) crawlContent(w http.ResponseWriter, r *http.Request) {
	var req crawlContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, CodeInvalidParams, "invalid JSON body")
		return
	}
	p, ok := s.platforms.Get(req.Platform)
	if !ok {
		writeFailure(w, CodeInvalidParams, "unknown platform: "+req.Platform)
		return
	}
	if req.ContentID == "" {
		writeFailure(w, CodeInvalidParams, "content_id is required")
		return
	}

	content, err := p.CrawlContentByID(r.Context(), req.ContentID, req.SourceURL, req.Tokens)
	if err != nil {
		metrics.ObserveContentCrawl(req.Platform, "error")
		writeOperationError(w, err)
		return
	}
	metrics.ObserveContentCrawl(req.Platform, "success")

	// Persistence is best effort; the crawl result still goes back.
	if id, err := s.idGen.NewID(); err != nil {
		s.logger.Warn("generate record id failed", zap.Error(err))
	} else if err := s.saver.SaveContent(r.Context(), postgres.ContentRecord{
		ID:       id,
		Platform: req.Platform,
		Content:  content,
	}); err != nil {
		s.logger.Warn("save content failed",
			zap.String("platform", req.Platform),
			zap.String("content_id", content.ContentID),
			zap.Error(err),
		)
	}

	writeSuccess(w, crawlContentData{Platform: req.Platform, Content: content}, "content crawled")
}
