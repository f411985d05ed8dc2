// Package config provides configuration management for capishare.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/capiweb/capishare/internal/constants"
)

// Config is the client configuration.
//
// Config file location:
//   - Windows: %USERPROFILE%\.config\capishare\config
//   - Unix: ~/.config/capishare/config
//
// INI format:
//
//	[server]
//	api_url = https://share.example.com/api
//	api_token = <token>
//	session_cookie = <sessionid>
//	csrf_token = <csrftoken>
//	username = alice
//
//	[proxy]
//	mode = no-proxy
//	host = proxy.corp
//	port = 8080
//
//	[transfers]
//	download_dir = ~/Downloads
//	auto_hide_seconds = 3
//
//	[thumbnails]
//	max_concurrent = 2
//	min_spacing_ms = 200
//	retry_delay_seconds = 60
//
//	[ratelimit]
//	requests_per_second = 10
//	burst = 40
type Config struct {
	// Server connection
	APIBaseURL    string
	APIToken      string
	SessionCookie string
	CSRFToken     string
	Username      string

	// Proxy settings
	ProxyMode     string // "no-proxy", "system", "basic", "ntlm"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string
	NoProxy       string // Comma-separated list of hosts to bypass proxy
	ProxyWarmup   bool

	// Transfers
	DownloadDir     string
	AutoHideSeconds int

	// Thumbnails
	ThumbMaxConcurrent     int
	ThumbMinSpacingMs      int
	ThumbRetryDelaySeconds int
	ThumbFetchTimeoutSecs  int

	// Rate limiting
	RequestsPerSecond float64
	Burst             float64
}

// Validation errors
var (
	ErrMissingAPIURL       = errors.New("api_url is required")
	ErrInvalidAPIURL       = errors.New("api_url must be an absolute http(s) URL")
	ErrMissingCredentials  = errors.New("api_token or session_cookie is required")
	ErrInvalidProxyMode    = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost    = errors.New("proxy host is required for basic and ntlm modes")
	ErrInvalidConcurrency  = errors.New("thumbnails max_concurrent must be at least 1")
	ErrInvalidRateLimit    = errors.New("ratelimit requests_per_second and burst must be positive")
	ErrInvalidAutoHide     = errors.New("transfers auto_hide_seconds must not be negative")
	ErrInvalidThumbTimings = errors.New("thumbnails min_spacing_ms, retry_delay_seconds and fetch_timeout_seconds must not be negative")
)

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		ProxyMode:              "no-proxy",
		DownloadDir:            defaultDownloadDir(),
		AutoHideSeconds:        int(constants.TransferAutoHideDelay / time.Second),
		ThumbMaxConcurrent:     constants.ThumbnailMaxConcurrent,
		ThumbMinSpacingMs:      int(constants.ThumbnailMinSpacing / time.Millisecond),
		ThumbRetryDelaySeconds: int(constants.ThumbnailRetryDelay / time.Second),
		ThumbFetchTimeoutSecs:  int(constants.ThumbnailFetchTimeout / time.Second),
		RequestsPerSecond:      constants.APIRatePerSec,
		Burst:                  constants.APIBurstCapacity,
	}
}

// DefaultConfigPath returns the default path for the config file.
func DefaultConfigPath() (string, error) {
	var base string
	if runtime.GOOS == "windows" {
		base = os.Getenv("USERPROFILE")
		if base == "" {
			return "", errors.New("USERPROFILE environment variable not set")
		}
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = home
	}
	return filepath.Join(base, ".config", "capishare", "config"), nil
}

// LoadConfig loads configuration from an INI file.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	server := f.Section("server")
	cfg.APIBaseURL = server.Key("api_url").String()
	cfg.APIToken = server.Key("api_token").String()
	cfg.SessionCookie = server.Key("session_cookie").String()
	cfg.CSRFToken = server.Key("csrf_token").String()
	cfg.Username = server.Key("username").String()

	proxy := f.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(0)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.ProxyPassword = proxy.Key("password").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(false)

	transfers := f.Section("transfers")
	cfg.DownloadDir = expandHome(transfers.Key("download_dir").MustString(cfg.DownloadDir))
	cfg.AutoHideSeconds = transfers.Key("auto_hide_seconds").MustInt(cfg.AutoHideSeconds)

	thumbs := f.Section("thumbnails")
	cfg.ThumbMaxConcurrent = thumbs.Key("max_concurrent").MustInt(cfg.ThumbMaxConcurrent)
	cfg.ThumbMinSpacingMs = thumbs.Key("min_spacing_ms").MustInt(cfg.ThumbMinSpacingMs)
	cfg.ThumbRetryDelaySeconds = thumbs.Key("retry_delay_seconds").MustInt(cfg.ThumbRetryDelaySeconds)
	cfg.ThumbFetchTimeoutSecs = thumbs.Key("fetch_timeout_seconds").MustInt(cfg.ThumbFetchTimeoutSecs)

	rl := f.Section("ratelimit")
	cfg.RequestsPerSecond = rl.Key("requests_per_second").MustFloat64(cfg.RequestsPerSecond)
	cfg.Burst = rl.Key("burst").MustFloat64(cfg.Burst)

	return cfg, nil
}

// SaveConfig saves configuration to an INI file.
// Creates parent directories if they don't exist. The file holds credentials,
// so it is written with owner-only permissions.
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f := ini.Empty()
	sections := []struct {
		name string
		keys [][2]string
	}{
		{"server", [][2]string{
			{"api_url", cfg.APIBaseURL},
			{"api_token", cfg.APIToken},
			{"session_cookie", cfg.SessionCookie},
			{"csrf_token", cfg.CSRFToken},
			{"username", cfg.Username},
		}},
		{"proxy", [][2]string{
			{"mode", cfg.ProxyMode},
			{"host", cfg.ProxyHost},
			{"port", fmt.Sprintf("%d", cfg.ProxyPort)},
			{"user", cfg.ProxyUser},
			{"no_proxy", cfg.NoProxy},
			{"warmup", fmt.Sprintf("%t", cfg.ProxyWarmup)},
		}},
		{"transfers", [][2]string{
			{"download_dir", cfg.DownloadDir},
			{"auto_hide_seconds", fmt.Sprintf("%d", cfg.AutoHideSeconds)},
		}},
		{"thumbnails", [][2]string{
			{"max_concurrent", fmt.Sprintf("%d", cfg.ThumbMaxConcurrent)},
			{"min_spacing_ms", fmt.Sprintf("%d", cfg.ThumbMinSpacingMs)},
			{"retry_delay_seconds", fmt.Sprintf("%d", cfg.ThumbRetryDelaySeconds)},
			{"fetch_timeout_seconds", fmt.Sprintf("%d", cfg.ThumbFetchTimeoutSecs)},
		}},
		{"ratelimit", [][2]string{
			{"requests_per_second", fmt.Sprintf("%g", cfg.RequestsPerSecond)},
			{"burst", fmt.Sprintf("%g", cfg.Burst)},
		}},
	}

	// The proxy password is never persisted.
	for _, s := range sections {
		sec, err := f.NewSection(s.name)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", s.name, err)
		}
		for _, kv := range s.keys {
			sec.Key(kv[0]).SetValue(kv[1])
		}
	}

	tmpPath := path + ".tmp"
	if err := f.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks if the configuration is usable for API calls.
func (c *Config) Validate() error {
	if err := c.ValidateForConnection(); err != nil {
		return err
	}

	switch strings.ToLower(c.ProxyMode) {
	case "", "no-proxy", "system":
	case "basic", "ntlm":
		if strings.TrimSpace(c.ProxyHost) == "" {
			return ErrMissingProxyHost
		}
	default:
		return ErrInvalidProxyMode
	}

	if c.ThumbMaxConcurrent < 1 {
		return ErrInvalidConcurrency
	}
	if c.ThumbMinSpacingMs < 0 || c.ThumbRetryDelaySeconds < 0 || c.ThumbFetchTimeoutSecs < 0 {
		return ErrInvalidThumbTimings
	}
	if c.RequestsPerSecond <= 0 || c.Burst <= 0 {
		return ErrInvalidRateLimit
	}
	if c.AutoHideSeconds < 0 {
		return ErrInvalidAutoHide
	}
	return nil
}

// ValidateForConnection checks only the server URL and credentials.
func (c *Config) ValidateForConnection() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return ErrMissingAPIURL
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidAPIURL
	}
	if strings.TrimSpace(c.APIToken) == "" && strings.TrimSpace(c.SessionCookie) == "" {
		return ErrMissingCredentials
	}
	return nil
}

// AutoHideDelay returns the transfer panel auto-hide delay.
func (c *Config) AutoHideDelay() time.Duration {
	return time.Duration(c.AutoHideSeconds) * time.Second
}

// ThumbMinSpacing returns the minimum gap between thumbnail dispatches.
func (c *Config) ThumbMinSpacing() time.Duration {
	return time.Duration(c.ThumbMinSpacingMs) * time.Millisecond
}

// ThumbRetryDelay returns the flat retry delay for failed thumbnails.
func (c *Config) ThumbRetryDelay() time.Duration {
	return time.Duration(c.ThumbRetryDelaySeconds) * time.Second
}

// ThumbFetchTimeout bounds a single thumbnail fetch. Zero takes the default.
func (c *Config) ThumbFetchTimeout() time.Duration {
	return time.Duration(c.ThumbFetchTimeoutSecs) * time.Second
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() Config {
	r := *c
	r.APIToken = mask(r.APIToken)
	r.SessionCookie = mask(r.SessionCookie)
	r.CSRFToken = mask(r.CSRFToken)
	r.ProxyPassword = mask(r.ProxyPassword)
	return r
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + strings.Repeat("*", 8)
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads")
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
