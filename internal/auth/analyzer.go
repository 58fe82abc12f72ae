// Package auth manages authenticated browser sessions: login orchestration,
// login-state detection, and crawling under a persisted profile.
package auth

import "strings"

// Login classification statuses.
const (
	StatusSuccess     = "success"
	StatusLikely      = "likely_logged_in"
	StatusNotLoggedIn = "not_logged_in"
	StatusUncertain   = "uncertain"
)

// Confidence levels attached to a classification.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// LoginStatus is the analyzer's verdict on one page.
type LoginStatus struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Confidence string `json:"confidence"`
}

// Analyzer classifies page text as logged-in or not from keyword signals.
// It never inspects cookies or tokens; this is a best-effort heuristic.
type Analyzer struct {
	loggedIn      []string
	notLoggedIn   []string
	siteOverrides map[string]siteIndicators
}

type siteIndicators struct {
	loggedIn    []string
	notLoggedIn []string
}

// NewAnalyzer builds an Analyzer with the generic indicator sets and the
// known per-site extensions.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		loggedIn: []string{
			"logout", "sign out", "signout", "account", "dashboard",
			"profile", "settings", "welcome", "my account", "notifications",
		},
		notLoggedIn: []string{
			"login", "sign in", "signin", "authenticate", "create account",
			"forgot password", "register",
		},
		siteOverrides: map[string]siteIndicators{
			"medium_com": {
				loggedIn:    []string{"write a story", "your stories", "reading list"},
				notLoggedIn: []string{"get started", "join medium"},
			},
			"investors_com": {
				loggedIn:    []string{"my ibd", "portfolio", "subscriber"},
				notLoggedIn: []string{"subscribe now", "start free trial"},
			},
			"xiaohongshu_com": {
				loggedIn:    []string{"creator", "publish", "collection"},
				notLoggedIn: []string{"scan qr code", "verification code"},
			},
		},
	}
}

// Analyze counts indicator hits against the lower-cased page text. Each
// indicator contributes at most once regardless of repetition.
func (a *Analyzer) Analyze(pageContent, siteName string) LoginStatus {
	lower := strings.ToLower(pageContent)

	loggedIn := append([]string(nil), a.loggedIn...)
	notLoggedIn := append([]string(nil), a.notLoggedIn...)
	if extra, ok := a.siteOverrides[siteName]; ok {
		loggedIn = append(loggedIn, extra.loggedIn...)
		notLoggedIn = append(notLoggedIn, extra.notLoggedIn...)
	}

	successCount := countHits(lower, loggedIn)
	failCount := countHits(lower, notLoggedIn)

	switch {
	case successCount > failCount && successCount >= 2:
		return LoginStatus{
			Status:     StatusSuccess,
			Message:    "page shows strong logged-in signals",
			Confidence: ConfidenceHigh,
		}
	case successCount > 0 && failCount == 0:
		return LoginStatus{
			Status:     StatusLikely,
			Message:    "page shows some logged-in signals and no login prompts",
			Confidence: ConfidenceMedium,
		}
	case failCount > successCount:
		return LoginStatus{
			Status:     StatusNotLoggedIn,
			Message:    "page shows login prompts",
			Confidence: ConfidenceHigh,
		}
	default:
		return LoginStatus{
			Status:     StatusUncertain,
			Message:    "page shows no conclusive signals",
			Confidence: ConfidenceLow,
		}
	}
}

func countHits(lower string, indicators []string) int {
	count := 0
	for _, ind := range indicators {
		if strings.Contains(lower, ind) {
			count++
		}
	}
	return count
}
