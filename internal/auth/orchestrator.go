package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crawlgate/crawlgate/internal/browser"
	"github.com/crawlgate/crawlgate/internal/crawl"
	"github.com/crawlgate/crawlgate/internal/profile"
)

// Setup strategies.
const (
	StrategyQuick       = "quick"
	StrategyDetect      = "detect"
	StrategyManual      = "manual"
	StrategyInteractive = "interactive"
)

// Setup outcome statuses.
const (
	SetupSuccess   = "success"
	SetupWarning   = "warning"
	SetupTimeout   = "timeout"
	SetupCompleted = "completed"
)

// Defaults applied when a SetupRequest leaves a knob zero.
const (
	defaultWaitTime      = 60 * time.Second
	defaultCheckInterval = 10 * time.Second
	defaultSetupTimeout  = 300 * time.Second
	quickTick            = 30 * time.Second
)

// SetupRequest describes one login setup run.
type SetupRequest struct {
	SiteName      string
	LoginURL      string
	TestURL       string
	Strategy      string
	SetupTimeout  time.Duration
	WaitTime      time.Duration
	CheckInterval time.Duration
	ConfirmMarker string
}

// SetupResult reports how a setup run ended. Status is success, warning,
// timeout, or completed; errors are returned separately as *crawl.Error.
type SetupResult struct {
	SiteName    string      `json:"site_name"`
	Status      string      `json:"status"`
	Message     string      `json:"message"`
	ProfilePath string      `json:"profile_path"`
	LoginCheck  LoginStatus `json:"login_check"`
}

// Options carries the browser defaults the orchestrator launches sessions
// with.
type Options struct {
	UserAgent      string
	Viewport       crawl.Viewport
	NavTimeout     time.Duration
	ExtensionPath  string
	AllowNoBrowser bool
}

// Orchestrator runs login setup flows: it opens a visible browser on the
// site's profile directory, waits for the user to log in per the chosen
// strategy, then verifies the result.
type Orchestrator struct {
	sessions crawl.SessionEngine
	profiles *profile.Store
	resolver *browser.Resolver
	registry *SessionRegistry
	analyzer *Analyzer
	clock    crawl.Clock
	sleeper  crawl.Sleeper
	logger   *zap.Logger
	opts     Options
}

// NewOrchestrator wires a setup orchestrator.
func NewOrchestrator(
	sessions crawl.SessionEngine,
	profiles *profile.Store,
	resolver *browser.Resolver,
	registry *SessionRegistry,
	analyzer *Analyzer,
	clock crawl.Clock,
	sleeper crawl.Sleeper,
	logger *zap.Logger,
	opts Options,
) *Orchestrator {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 60 * time.Second
	}
	return &Orchestrator{
		sessions: sessions,
		profiles: profiles,
		resolver: resolver,
		registry: registry,
		analyzer: analyzer,
		clock:    clock,
		sleeper:  sleeper,
		logger:   logger,
		opts:     opts,
	}
}

// Setup runs one login setup flow end to end. The per-site profile lock is
// held for the whole run; a concurrent setup or crawl on the same site fails
// fast instead of corrupting the profile directory.
func (o *Orchestrator) Setup(ctx context.Context, req SetupRequest) (SetupResult, error) {
	if req.SiteName == "" {
		return SetupResult{}, crawl.NewError(crawl.KindSetupFailed, "site_name is required")
	}
	if req.LoginURL == "" {
		return SetupResult{}, crawl.NewError(crawl.KindSetupFailed, "login_url is required")
	}
	applySetupDefaults(&req)

	unlock, ok := o.profiles.TryLock(req.SiteName)
	if !ok {
		return SetupResult{}, crawl.NewError(crawl.KindSetupFailed,
			"another session is already using the profile for "+req.SiteName)
	}
	defer unlock()

	profilePath, err := o.profiles.Ensure(req.SiteName)
	if err != nil {
		return SetupResult{}, crawl.WrapError(crawl.KindSetupFailed, "prepare profile", err)
	}

	browserCfg, err := o.browserConfig(profilePath)
	if err != nil {
		return SetupResult{}, err
	}

	o.logger.Info("starting login setup",
		zap.String("site", req.SiteName),
		zap.String("strategy", req.Strategy),
		zap.String("login_url", req.LoginURL))

	session, err := o.sessions.OpenSession(ctx, browserCfg)
	if err != nil {
		return SetupResult{}, crawl.WrapError(crawl.KindSetupFailed, "open browser session", err)
	}
	defer session.Close()

	nav := crawl.RunConfig{Timeout: o.opts.NavTimeout, BypassCache: true}
	loginPage, err := session.Navigate(ctx, req.LoginURL, nav)
	if err != nil {
		return SetupResult{}, crawl.WrapError(crawl.KindSetupFailed, "open login page", err)
	}
	if !loginPage.Success {
		return SetupResult{}, crawl.NewError(crawl.KindSetupFailed,
			"login page did not load: "+loginPage.ErrorMessage)
	}

	var outcome strategyOutcome
	switch req.Strategy {
	case StrategyQuick:
		outcome, err = o.waitQuick(ctx, req)
	case StrategyDetect:
		outcome, err = o.waitDetect(ctx, session, req)
	case StrategyManual:
		outcome, err = o.waitManual(ctx, req)
	case StrategyInteractive:
		outcome, err = o.waitInteractive(ctx, session, req)
	default:
		err = crawl.NewError(crawl.KindSetupFailed, "unknown strategy "+req.Strategy)
	}
	if err != nil {
		return SetupResult{}, err
	}

	check := outcome.check
	if !outcome.verified && !outcome.browserGone {
		check = o.verify(ctx, session, req)
	}

	result := SetupResult{
		SiteName:    req.SiteName,
		Status:      outcome.status(check),
		Message:     outcome.message(check),
		ProfilePath: profilePath,
		LoginCheck:  check,
	}
	o.logger.Info("login setup finished",
		zap.String("site", req.SiteName),
		zap.String("status", result.Status),
		zap.String("login_status", check.Status))
	return result, nil
}

// browserConfig resolves the executable and builds the launch configuration
// for a visible login window.
func (o *Orchestrator) browserConfig(profilePath string) (crawl.BrowserConfig, error) {
	cfg := crawl.BrowserConfig{
		Headless:    false,
		JSEnabled:   true,
		UserDataDir: profilePath,
		UserAgent:   o.opts.UserAgent,
		Viewport:    o.opts.Viewport,
	}
	if o.opts.ExtensionPath != "" {
		cfg.ExtraArgs = append(cfg.ExtraArgs,
			"--load-extension="+o.opts.ExtensionPath,
			"--disable-extensions-except="+o.opts.ExtensionPath)
	}
	path, err := o.resolver.Resolve()
	if err != nil {
		if errors.Is(err, browser.ErrNotFound) && o.opts.AllowNoBrowser {
			o.logger.Warn("no browser executable found, relying on chromedp discovery")
			return cfg, nil
		}
		return crawl.BrowserConfig{}, crawl.WrapError(crawl.KindBrowserNotFound,
			"resolve browser executable", err)
	}
	cfg.ExecPath = path
	return cfg, nil
}

type strategyOutcome struct {
	strategy    string
	detected    bool
	confirmed   bool
	timedOut    bool
	browserGone bool
	verified    bool
	check       LoginStatus
}

func (s strategyOutcome) status(check LoginStatus) string {
	switch s.strategy {
	case StrategyQuick:
		if check.Status == StatusSuccess || check.Status == StatusLikely {
			return SetupSuccess
		}
		return SetupWarning
	case StrategyDetect:
		if s.detected {
			return SetupSuccess
		}
		return SetupTimeout
	case StrategyManual:
		if s.confirmed {
			return SetupCompleted
		}
		return SetupTimeout
	default: // interactive
		return SetupCompleted
	}
}

func (s strategyOutcome) message(check LoginStatus) string {
	switch s.strategy {
	case StrategyQuick:
		if check.Status == StatusSuccess || check.Status == StatusLikely {
			return "login verified after fixed wait"
		}
		return "wait elapsed but login could not be verified: " + check.Message
	case StrategyDetect:
		if s.detected {
			return "login detected: " + check.Message
		}
		return "login was not detected before the timeout"
	case StrategyManual:
		if s.confirmed {
			return "login confirmed by user"
		}
		return "no confirmation received before the timeout"
	default:
		if s.browserGone {
			return "browser window closed, profile saved"
		}
		if s.confirmed {
			return "confirmation detected in page"
		}
		return "no confirmation before the timeout, profile saved"
	}
}

// waitQuick sleeps for the fixed wait time, logging progress every 30s so
// operators can see the countdown.
func (o *Orchestrator) waitQuick(ctx context.Context, req SetupRequest) (strategyOutcome, error) {
	remaining := req.WaitTime
	for remaining > 0 {
		step := quickTick
		if remaining < step {
			step = remaining
		}
		if err := o.sleeper.Sleep(ctx, step); err != nil {
			return strategyOutcome{}, crawl.WrapError(crawl.KindSetupFailed, "setup interrupted", err)
		}
		remaining -= step
		if remaining > 0 {
			o.logger.Info("waiting for login",
				zap.String("site", req.SiteName),
				zap.Duration("remaining", remaining))
		}
	}
	return strategyOutcome{strategy: StrategyQuick}, nil
}

// waitDetect polls the test URL until the analyzer sees a logged-in page or
// the setup timeout elapses.
func (o *Orchestrator) waitDetect(ctx context.Context, session crawl.Session, req SetupRequest) (strategyOutcome, error) {
	deadline := o.clock.Now().Add(req.SetupTimeout)
	target := req.TestURL
	if target == "" {
		target = req.LoginURL
	}
	nav := crawl.RunConfig{Timeout: o.opts.NavTimeout, BypassCache: true}
	for o.clock.Now().Before(deadline) {
		if err := o.sleeper.Sleep(ctx, req.CheckInterval); err != nil {
			return strategyOutcome{}, crawl.WrapError(crawl.KindSetupFailed, "setup interrupted", err)
		}
		page, err := session.Navigate(ctx, target, nav)
		if err != nil {
			o.logger.Warn("detect poll failed", zap.String("site", req.SiteName), zap.Error(err))
			continue
		}
		check := o.analyzer.Analyze(pageText(page), req.SiteName)
		if check.Status == StatusSuccess || check.Status == StatusLikely {
			return strategyOutcome{strategy: StrategyDetect, detected: true, verified: true, check: check}, nil
		}
	}
	return strategyOutcome{strategy: StrategyDetect}, nil
}

// waitManual registers an in-memory session and blocks until the user
// confirms completion through the API or the timeout fires.
func (o *Orchestrator) waitManual(ctx context.Context, req SetupRequest) (strategyOutcome, error) {
	ms, err := o.registry.Start(req.SiteName, o.clock.Now())
	if err != nil {
		return strategyOutcome{}, crawl.WrapError(crawl.KindSetupFailed, "register manual session", err)
	}
	defer o.registry.Remove(req.SiteName)

	timer := time.NewTimer(req.SetupTimeout)
	defer timer.Stop()
	select {
	case <-ms.Done():
		return strategyOutcome{strategy: StrategyManual, confirmed: true}, nil
	case <-timer.C:
		return strategyOutcome{strategy: StrategyManual, timedOut: true}, nil
	case <-ctx.Done():
		return strategyOutcome{}, crawl.WrapError(crawl.KindSetupFailed, "setup interrupted", ctx.Err())
	}
}

// waitInteractive watches the open page for the confirmation marker. The
// user closing the browser window also ends the flow; the profile has been
// written by then.
func (o *Orchestrator) waitInteractive(ctx context.Context, session crawl.Session, req SetupRequest) (strategyOutcome, error) {
	deadline := o.clock.Now().Add(req.SetupTimeout)
	target := req.TestURL
	if target == "" {
		target = req.LoginURL
	}
	nav := crawl.RunConfig{Timeout: o.opts.NavTimeout}
	for o.clock.Now().Before(deadline) {
		if err := o.sleeper.Sleep(ctx, req.CheckInterval); err != nil {
			return strategyOutcome{}, crawl.WrapError(crawl.KindSetupFailed, "setup interrupted", err)
		}
		page, err := session.Navigate(ctx, target, nav)
		if err != nil {
			if browserClosed(err) {
				return strategyOutcome{strategy: StrategyInteractive, browserGone: true, verified: true}, nil
			}
			o.logger.Warn("interactive probe failed", zap.String("site", req.SiteName), zap.Error(err))
			continue
		}
		if req.ConfirmMarker != "" &&
			strings.Contains(strings.ToLower(pageText(page)), strings.ToLower(req.ConfirmMarker)) {
			check := o.analyzer.Analyze(pageText(page), req.SiteName)
			return strategyOutcome{strategy: StrategyInteractive, confirmed: true, verified: true, check: check}, nil
		}
	}
	return strategyOutcome{strategy: StrategyInteractive, timedOut: true}, nil
}

// verify loads the test URL one last time and classifies the page.
func (o *Orchestrator) verify(ctx context.Context, session crawl.Session, req SetupRequest) LoginStatus {
	target := req.TestURL
	if target == "" {
		target = req.LoginURL
	}
	page, err := session.Navigate(ctx, target, crawl.RunConfig{Timeout: o.opts.NavTimeout, BypassCache: true})
	if err != nil {
		return LoginStatus{
			Status:     StatusUncertain,
			Message:    "verification navigation failed: " + err.Error(),
			Confidence: ConfidenceLow,
		}
	}
	return o.analyzer.Analyze(pageText(page), req.SiteName)
}

func applySetupDefaults(req *SetupRequest) {
	if req.Strategy == "" {
		req.Strategy = StrategyDetect
	}
	if req.WaitTime <= 0 {
		req.WaitTime = defaultWaitTime
	}
	if req.CheckInterval <= 0 {
		req.CheckInterval = defaultCheckInterval
	}
	if req.SetupTimeout <= 0 {
		req.SetupTimeout = defaultSetupTimeout
	}
}

// pageText prefers the markdown rendering for analysis and falls back to raw
// HTML when conversion produced nothing.
func pageText(r crawl.Result) string {
	if r.Markdown != "" {
		return r.Markdown
	}
	return r.HTML
}

// browserClosed recognizes the errors chromedp returns after the user closes
// the window by hand.
func browserClosed(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "disconnected") ||
		strings.Contains(msg, "closed") ||
		strings.Contains(msg, "connection refused")
}
