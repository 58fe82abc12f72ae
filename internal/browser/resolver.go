// Package browser locates a usable Chromium/Chrome executable on the host.
package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ErrNotFound is returned when no browser executable could be resolved.
var ErrNotFound = fmt.Errorf("no usable browser executable found")

// Resolver probes the environment, a persisted override file, and well-known
// install locations for a browser executable. All probing is read-only.
type Resolver struct {
	configFile   string
	execOverride string
	fallbackPath string
	envVar       string
	goos         string
	logger       *zap.Logger
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithExecOverride sets a configured executable path checked before every
// other source.
func WithExecOverride(path string) Option {
	return func(r *Resolver) { r.execOverride = path }
}

// WithFallbackPath sets a single last-resort path checked after auto-detection.
func WithFallbackPath(path string) Option {
	return func(r *Resolver) { r.fallbackPath = path }
}

// WithGOOS overrides the detected operating system (for tests).
func WithGOOS(goos string) Option {
	return func(r *Resolver) { r.goos = goos }
}

// NewResolver builds a Resolver persisting overrides to configFile.
func NewResolver(configFile string, logger *zap.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		configFile: configFile,
		envVar:     "CHROMIUM_EXECUTABLE_PATH",
		goos:       runtime.GOOS,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the first usable executable path in precedence order:
// configured override, environment variable, persisted config file,
// OS-specific filesystem probing, then the optional fallback path. Returns
// ErrNotFound otherwise.
func (r *Resolver) Resolve() (string, error) {
	if r.execOverride != "" {
		if fileExists(r.execOverride) {
			r.logger.Info("using configured browser path", zap.String("path", r.execOverride))
			return r.execOverride, nil
		}
		r.logger.Warn("configured browser path does not exist", zap.String("path", r.execOverride))
	}

	if path := os.Getenv(r.envVar); path != "" {
		if fileExists(path) {
			r.logger.Info("using browser from environment", zap.String("path", path))
			return path, nil
		}
		r.logger.Warn("browser path from environment does not exist", zap.String("path", path))
	}

	if path := r.customPath(); path != "" {
		r.logger.Info("using browser from config file", zap.String("path", path))
		return path, nil
	}

	if path := r.autoDetect(); path != "" {
		r.logger.Info("auto-detected browser", zap.String("path", path))
		return path, nil
	}

	if r.fallbackPath != "" && fileExists(r.fallbackPath) {
		r.logger.Info("using fallback browser path", zap.String("path", r.fallbackPath))
		return r.fallbackPath, nil
	}

	r.logger.Warn("no usable browser executable found")
	return "", ErrNotFound
}

// SetCustomPath persists a new override if the path exists on disk.
// Returns false without writing anything otherwise.
func (r *Resolver) SetCustomPath(path string) bool {
	if !fileExists(path) {
		return false
	}
	if err := os.WriteFile(r.configFile, []byte(path), 0o644); err != nil {
		r.logger.Warn("persist browser path failed", zap.Error(err))
		return false
	}
	return true
}

func (r *Resolver) customPath() string {
	data, err := os.ReadFile(r.configFile)
	if err != nil {
		return ""
	}
	path := strings.TrimSpace(string(data))
	if path == "" || !fileExists(path) {
		return ""
	}
	return path
}

func (r *Resolver) autoDetect() string {
	for _, pattern := range detectionPatterns(r.goos) {
		matches, err := filepath.Glob(pattern)
		if err != nil || len(matches) == 0 {
			continue
		}
		// Lexicographically greatest match as a "newest version" proxy.
		// Not a true version comparison; see the pattern ordering instead.
		sort.Sort(sort.Reverse(sort.StringSlice(matches)))
		if fileExists(matches[0]) {
			return matches[0]
		}
	}
	return ""
}

func detectionPatterns(goos string) []string {
	switch goos {
	case "darwin":
		return []string{
			"/Users/*/Library/Caches/ms-playwright/chromium-*/chrome-mac/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		}
	case "linux":
		return []string{
			"/home/*/snap/chromium/*/usr/lib/chromium-browser/chrome",
			"/usr/bin/chromium-browser",
			"/usr/bin/google-chrome",
			"/opt/google/chrome/chrome",
		}
	case "windows":
		return []string{
			"C:/Users/*/AppData/Local/ms-playwright/chromium-*/chrome-win/chrome.exe",
			"C:/Program Files/Google/Chrome/Application/chrome.exe",
			"C:/Program Files (x86)/Google/Chrome/Application/chrome.exe",
		}
	default:
		return nil
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
