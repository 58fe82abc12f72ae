package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
browser:
  profiles_dir: /tmp/profiles
  config_file: /tmp/browser_config.txt
engine:
  user_agent: crawlgate-test
  viewport_width: 1440
  viewport_height: 900
  nav_timeout_seconds: 30
extract:
  min_html_length: 500
  token_ttl_seconds: 60
  max_links_default: 10
db:
  dsn: postgres://localhost/crawlgate
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Browser.ProfilesDir != "/tmp/profiles" {
		t.Fatalf("expected profiles dir override, got %q", cfg.Browser.ProfilesDir)
	}
	if cfg.Engine.UserAgent != "crawlgate-test" {
		t.Fatalf("expected user agent override, got %q", cfg.Engine.UserAgent)
	}
	if cfg.NavTimeout() != 30*time.Second {
		t.Fatalf("expected 30s nav timeout, got %v", cfg.NavTimeout())
	}
	if cfg.TokenTTL() != time.Minute {
		t.Fatalf("expected 60s token ttl, got %v", cfg.TokenTTL())
	}
	if cfg.Logging.Development {
		t.Fatal("expected production logging")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Browser.ProfilesDir != "./auth_profiles" {
		t.Fatalf("expected default profiles dir, got %q", cfg.Browser.ProfilesDir)
	}
	if cfg.Extract.MinHTMLLength != 1000 {
		t.Fatalf("expected default min html length 1000, got %d", cfg.Extract.MinHTMLLength)
	}
	if cfg.Extract.TokenTTLSeconds != 300 {
		t.Fatalf("expected default token ttl 300, got %d", cfg.Extract.TokenTTLSeconds)
	}
}

func TestLoadHonorsPortAndChromiumEnv(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("CHROMIUM_EXECUTABLE_PATH", "/opt/chromium/chrome")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Fatalf("expected PORT override, got %d", cfg.Server.Port)
	}
	if cfg.Browser.ExecPath != "/opt/chromium/chrome" {
		t.Fatalf("expected exec path override, got %q", cfg.Browser.ExecPath)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	bad := cfg
	bad.Server.Port = 0
	if err := bad.Validate(); err == nil || !strings.Contains(err.Error(), "server.port") {
		t.Fatalf("expected server.port error, got %v", err)
	}

	bad = cfg
	bad.Auth.Enabled = true
	if err := bad.Validate(); err == nil || !strings.Contains(err.Error(), "api_key") {
		t.Fatalf("expected api_key error, got %v", err)
	}

	bad = cfg
	bad.Extract.TokenTTLSeconds = 0
	if err := bad.Validate(); err == nil || !strings.Contains(err.Error(), "token_ttl") {
		t.Fatalf("expected token_ttl error, got %v", err)
	}
}
