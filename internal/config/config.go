// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Browser BrowserConfig `mapstructure:"browser"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Extract ExtractConfig `mapstructure:"extract"`
	DB      DBConfig      `mapstructure:"db"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// BrowserConfig locates the browser executable and profile storage.
type BrowserConfig struct {
	ProfilesDir    string `mapstructure:"profiles_dir"`
	ConfigFile     string `mapstructure:"config_file"`
	ExecPath       string `mapstructure:"exec_path"`
	FallbackPath   string `mapstructure:"fallback_path"`
	ExtensionPath  string `mapstructure:"extension_path"`
	AllowNoBrowser bool   `mapstructure:"allow_no_browser"`
}

// EngineConfig governs browser engine sessions.
type EngineConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	ViewportWidth  int    `mapstructure:"viewport_width"`
	ViewportHeight int    `mapstructure:"viewport_height"`
	NavTimeoutSec  int    `mapstructure:"nav_timeout_seconds"`
	MaxParallel    int    `mapstructure:"max_parallel"`
}

// ExtractConfig tunes platform content extraction.
type ExtractConfig struct {
	MinHTMLLength   int `mapstructure:"min_html_length"`
	TokenTTLSeconds int `mapstructure:"token_ttl_seconds"`
	MaxLinksDefault int `mapstructure:"max_links_default"`
}

// DBConfig controls the optional Postgres content store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyEnvOverrides honors the bare environment variables the service has
// always recognized, independent of the CRAWLGATE_ prefix.
func applyEnvOverrides(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			cfg.Server.Port = p
		}
	}
	if path := os.Getenv("CHROMIUM_EXECUTABLE_PATH"); path != "" {
		cfg.Browser.ExecPath = path
	}
	if ext := os.Getenv("CHROME_EXTENSION_PATH"); ext != "" {
		cfg.Browser.ExtensionPath = ext
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("browser.profiles_dir", "./auth_profiles")
	v.SetDefault("browser.config_file", "./browser_config.txt")
	v.SetDefault("engine.user_agent",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("engine.viewport_width", 1280)
	v.SetDefault("engine.viewport_height", 800)
	v.SetDefault("engine.nav_timeout_seconds", 60)
	v.SetDefault("engine.max_parallel", 2)
	v.SetDefault("extract.min_html_length", 1000)
	v.SetDefault("extract.token_ttl_seconds", 300)
	v.SetDefault("extract.max_links_default", 20)
	v.SetDefault("db.table", "platform_contents")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Browser.ProfilesDir == "" {
		return fmt.Errorf("browser.profiles_dir must be set")
	}
	if c.Engine.NavTimeoutSec <= 0 {
		return fmt.Errorf("engine.nav_timeout_seconds must be > 0")
	}
	if c.Extract.MinHTMLLength < 0 {
		return fmt.Errorf("extract.min_html_length must be >= 0")
	}
	if c.Extract.TokenTTLSeconds <= 0 {
		return fmt.Errorf("extract.token_ttl_seconds must be > 0")
	}
	return nil
}

// NavTimeout converts the configured navigation timeout to a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Engine.NavTimeoutSec) * time.Second
}

// TokenTTL converts the configured token TTL to a duration.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Extract.TokenTTLSeconds) * time.Second
}
