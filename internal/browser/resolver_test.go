package browser

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeFakeBrowser(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write fake browser: %v", err)
	}
	return path
}

func TestResolvePrefersEnvironmentVariable(t *testing.T) {
	dir := t.TempDir()
	envBrowser := writeFakeBrowser(t, dir, "env-chrome")
	cfgBrowser := writeFakeBrowser(t, dir, "cfg-chrome")

	configFile := filepath.Join(dir, "browser_config.txt")
	if err := os.WriteFile(configFile, []byte(cfgBrowser), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CHROMIUM_EXECUTABLE_PATH", envBrowser)

	r := NewResolver(configFile, zap.NewNop(), WithGOOS("none"))
	got, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != envBrowser {
		t.Fatalf("expected env path %q, got %q", envBrowser, got)
	}
}

func TestResolveFallsBackToConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgBrowser := writeFakeBrowser(t, dir, "cfg-chrome")

	configFile := filepath.Join(dir, "browser_config.txt")
	if err := os.WriteFile(configFile, []byte(cfgBrowser+"\n"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CHROMIUM_EXECUTABLE_PATH", "")

	r := NewResolver(configFile, zap.NewNop(), WithGOOS("none"))
	got, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != cfgBrowser {
		t.Fatalf("expected config path %q, got %q", cfgBrowser, got)
	}
}

func TestResolveIgnoresMissingEnvPath(t *testing.T) {
	dir := t.TempDir()
	fallback := writeFakeBrowser(t, dir, "fallback-chrome")
	t.Setenv("CHROMIUM_EXECUTABLE_PATH", filepath.Join(dir, "does-not-exist"))

	r := NewResolver(filepath.Join(dir, "browser_config.txt"), zap.NewNop(),
		WithGOOS("none"), WithFallbackPath(fallback))
	got, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != fallback {
		t.Fatalf("expected fallback path %q, got %q", fallback, got)
	}
}

func TestResolveReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CHROMIUM_EXECUTABLE_PATH", "")

	r := NewResolver(filepath.Join(dir, "browser_config.txt"), zap.NewNop(), WithGOOS("none"))
	if _, err := r.Resolve(); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetCustomPath(t *testing.T) {
	dir := t.TempDir()
	realBrowser := writeFakeBrowser(t, dir, "chrome")
	configFile := filepath.Join(dir, "browser_config.txt")
	r := NewResolver(configFile, zap.NewNop(), WithGOOS("none"))

	if r.SetCustomPath(filepath.Join(dir, "missing")) {
		t.Fatal("expected SetCustomPath to reject a missing path")
	}
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		t.Fatal("expected no config file after rejected path")
	}

	if !r.SetCustomPath(realBrowser) {
		t.Fatal("expected SetCustomPath to accept an existing path")
	}
	data, err := os.ReadFile(configFile)
	if err != nil {
		t.Fatalf("read config file: %v", err)
	}
	if string(data) != realBrowser {
		t.Fatalf("expected persisted path %q, got %q", realBrowser, string(data))
	}
}

func TestDetectionPatternsPerOS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		goos string
		want bool
	}{
		{goos: "darwin", want: true},
		{goos: "linux", want: true},
		{goos: "windows", want: true},
		{goos: "plan9", want: false},
	}
	for _, tt := range tests {
		if got := len(detectionPatterns(tt.goos)) > 0; got != tt.want {
			t.Fatalf("detectionPatterns(%q): got patterns=%v want=%v", tt.goos, got, tt.want)
		}
	}
}

func TestResolveHonorsExecOverride(t *testing.T) {
	dir := t.TempDir()
	override := writeFakeBrowser(t, dir, "configured-chrome")
	envBrowser := writeFakeBrowser(t, dir, "env-chrome")
	t.Setenv("CHROMIUM_EXECUTABLE_PATH", envBrowser)

	r := NewResolver(filepath.Join(dir, "browser_config.txt"), zap.NewNop(),
		WithExecOverride(override), WithGOOS("none"))
	got, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != override {
		t.Fatalf("expected override path %q, got %q", override, got)
	}
}

func TestResolveSkipsMissingExecOverride(t *testing.T) {
	dir := t.TempDir()
	envBrowser := writeFakeBrowser(t, dir, "env-chrome")
	t.Setenv("CHROMIUM_EXECUTABLE_PATH", envBrowser)

	r := NewResolver(filepath.Join(dir, "browser_config.txt"), zap.NewNop(),
		WithExecOverride(filepath.Join(dir, "gone-chrome")), WithGOOS("none"))
	got, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != envBrowser {
		t.Fatalf("expected env path %q, got %q", envBrowser, got)
	}
}
