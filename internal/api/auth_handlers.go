package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/crawlgate/crawlgate/internal/auth"
	"github.com/crawlgate/crawlgate/internal/metrics"
)

type setupRequest struct {
	SiteName      string `json:"site_name"`
	LoginURL      string `json:"login_url"`
	TestURL       string `json:"test_url"`
	Strategy      string `json:"strategy"`
	SetupTimeout  int    `json:"setup_timeout"`
	WaitTime      int    `json:"wait_time"`
	CheckInterval int    `json:"check_interval"`
	ConfirmMarker string `json:"confirm_marker"`
}

type authCrawlRequest struct {
	SiteName      string `json:"site_name"`
	URL           string `json:"url"`
	JSEnabled     *bool  `json:"js_enabled"`
	BypassCache   *bool  `json:"bypass_cache"`
	IncludeImages bool   `json:"include_images"`
	CSSSelector   string `json:"css_selector"`
}

type profileInfo struct {
	SiteName    string    `json:"site_name"`
	ProfilePath string    `json:"profile_path"`
	CreatedTime time.Time `json:"created_time"`
}

type profileListData struct {
	Profiles   []profileInfo `json:"profiles"`
	TotalCount int           `json:"total_count"`
}

type sessionStatusData struct {
	SiteName  string    `json:"site_name"`
	Active    bool      `json:"active"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

func (s *Server) setupProfile(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, CodeInvalidParams, "invalid JSON body")
		return
	}
	if req.SiteName == "" {
		writeFailure(w, CodeInvalidParams, "site_name is required")
		return
	}
	if !isValidURL(req.LoginURL) {
		writeFailure(w, CodeInvalidURL, "invalid login_url format")
		return
	}
	if req.TestURL != "" && !isValidURL(req.TestURL) {
		writeFailure(w, CodeInvalidURL, "invalid test_url format")
		return
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = auth.StrategyDetect
	}
	result, err := s.setup.Setup(r.Context(), auth.SetupRequest{
		SiteName:      req.SiteName,
		LoginURL:      req.LoginURL,
		TestURL:       req.TestURL,
		Strategy:      strategy,
		SetupTimeout:  time.Duration(req.SetupTimeout) * time.Second,
		WaitTime:      time.Duration(req.WaitTime) * time.Second,
		CheckInterval: time.Duration(req.CheckInterval) * time.Second,
		ConfirmMarker: req.ConfirmMarker,
	})
	if err != nil {
		metrics.ObserveSetup(strategy, "error")
		writeOperationError(w, err)
		return
	}
	metrics.ObserveSetup(strategy, result.Status)
	writeSuccess(w, result, "setup finished")
}

func (s *Server) crawlWithAuth(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAuthCrawl(w, r)
	if !ok {
		return
	}
	data, err := s.authSvc.CrawlWithAuth(r.Context(), req)
	if err != nil {
		metrics.ObserveAuthCrawl(req.SiteName, "error")
		writeOperationError(w, err)
		return
	}
	metrics.ObserveAuthCrawl(req.SiteName, "success")
	writeSuccess(w, data, "crawl finished")
}

func (s *Server) markdownWithAuth(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAuthCrawl(w, r)
	if !ok {
		return
	}
	data, err := s.authSvc.MarkdownWithAuth(r.Context(), req)
	if err != nil {
		metrics.ObserveAuthCrawl(req.SiteName, "error")
		writeOperationError(w, err)
		return
	}
	metrics.ObserveAuthCrawl(req.SiteName, "success")
	writeSuccess(w, data, "markdown extracted")
}

func (s *Server) decodeAuthCrawl(w http.ResponseWriter, r *http.Request) (auth.CrawlRequest, bool) {
	var req authCrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, CodeInvalidParams, "invalid JSON body")
		return auth.CrawlRequest{}, false
	}
	if req.SiteName == "" {
		writeFailure(w, CodeInvalidParams, "site_name is required")
		return auth.CrawlRequest{}, false
	}
	if !isValidURL(req.URL) {
		writeFailure(w, CodeInvalidURL, "invalid url format")
		return auth.CrawlRequest{}, false
	}
	return auth.CrawlRequest{
		URL:           req.URL,
		SiteName:      req.SiteName,
		BypassCache:   boolOrDefault(req.BypassCache, true),
		CSSSelector:   req.CSSSelector,
		IncludeImages: req.IncludeImages,
		DisableJS:     !boolOrDefault(req.JSEnabled, true),
	}, true
}

func (s *Server) listProfiles(w http.ResponseWriter, r *http.Request) {
	infos, err := s.profiles.List()
	if err != nil {
		writeFailure(w, CodeInternalError, "list profiles: "+err.Error())
		return
	}
	data := profileListData{Profiles: []profileInfo{}}
	for _, info := range infos {
		data.Profiles = append(data.Profiles, profileInfo{
			SiteName:    info.SiteName,
			ProfilePath: info.ProfilePath,
			CreatedTime: info.CreatedTime,
		})
	}
	sort.Slice(data.Profiles, func(i, j int) bool {
		return data.Profiles[i].SiteName < data.Profiles[j].SiteName
	})
	data.TotalCount = len(data.Profiles)
	writeSuccess(w, data, "")
}

func (s *Server) deleteProfile(w http.ResponseWriter, r *http.Request) {
	siteName := chi.URLParam(r, "site_name")
	deleted, err := s.profiles.Delete(siteName)
	if err != nil {
		writeFailure(w, CodeInternalError, "delete profile: "+err.Error())
		return
	}
	writeSuccess(w, map[string]bool{"deleted": deleted}, "")
}

func (s *Server) verifyLogin(w http.ResponseWriter, r *http.Request) {
	siteName := chi.URLParam(r, "site_name")
	testURL := r.URL.Query().Get("test_url")
	if !isValidURL(testURL) {
		writeFailure(w, CodeInvalidURL, "test_url query parameter is required")
		return
	}
	status, err := s.authSvc.VerifyLogin(r.Context(), siteName, testURL)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeSuccess(w, status, "")
}

func (s *Server) sessionStatus(w http.ResponseWriter, r *http.Request) {
	siteName := chi.URLParam(r, "site_name")
	data := sessionStatusData{SiteName: siteName}
	for _, ms := range s.sessions.Active() {
		if ms.SiteName == siteName {
			data.Active = true
			data.StartedAt = ms.StartedAt
			break
		}
	}
	writeSuccess(w, data, "")
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	siteName := chi.URLParam(r, "site_name")
	if !s.sessions.Complete(siteName) {
		writeFailure(w, CodeInvalidParams, "no active login session for "+siteName)
		return
	}
	s.logger.Info("manual login session completed", zap.String("site", siteName))
	writeSuccess(w, map[string]bool{"closed": true}, "login session completed")
}

func isValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func boolOrDefault(ptr *bool, def bool) bool {
	if ptr == nil {
		return def
	}
	return *ptr
}
