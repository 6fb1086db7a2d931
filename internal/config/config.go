package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Defaults applied when optional settings are left unset.
const (
	DefaultUpstreamTimeout = 10 * time.Second
	DefaultDebounce        = 300 * time.Millisecond
	DefaultSessionTTL      = 30 * time.Minute
	DefaultMaxSessions     = 1000
	DefaultAvatarMaxSizeMB = 5
)

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	ContactAPI ContactAPIConfig `koanf:"contact_api"`
	Directory  DirectoryConfig  `koanf:"directory"`
	Avatar     AvatarConfig     `koanf:"avatar"`
	Log        LogConfig        `koanf:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host       string          `koanf:"host"`
	Port       int             `koanf:"port"`
	Mode       string          `koanf:"mode"`
	CSRFSecret string          `koanf:"csrf_secret"`
	RateLimit  RateLimitConfig `koanf:"rate_limit"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

// ContactAPIConfig holds the location of the external contact service and
// the HTTP client settings used to reach it.
type ContactAPIConfig struct {
	BaseURL string     `koanf:"base_url"`
	Timeout string     `koanf:"timeout"`
	Pool    PoolConfig `koanf:"pool"`
}

// PoolConfig holds HTTP connection pool settings for the contact service client.
type PoolConfig struct {
	MaxIdleConns        int    `koanf:"max_idle_conns"`
	MaxIdleConnsPerHost int    `koanf:"max_idle_conns_per_host"`
	IdleConnTimeout     string `koanf:"idle_conn_timeout"`
}

// DirectoryConfig holds settings of the contact listing sessions.
type DirectoryConfig struct {
	Debounce    string `koanf:"debounce"`
	SessionTTL  string `koanf:"session_ttl"`
	MaxSessions int    `koanf:"max_sessions"`
}

// AvatarConfig holds avatar upload settings.
type AvatarConfig struct {
	MaxSizeMB int `koanf:"max_size_mb"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level           string `koanf:"level"`
	Format          string `koanf:"format"`
	Color           *bool  `koanf:"color"`
	FilePath        string `koanf:"file_path"`
	MaxSizeMB       int    `koanf:"max_size_mb"`
	RetentionDays   int    `koanf:"retention_days"`
	MaxBackups      int    `koanf:"max_backups"`
	CompressRotated *bool  `koanf:"compress_rotated"`
}

// dotenvFiles are preloaded into the process environment before the env
// overlay is applied. Missing files are ignored.
var dotenvFiles = []string{".env"}

// Load reads configuration from a YAML file and overlays environment variables.
// Environment variables use the prefix "APP__" and double-underscore as the
// hierarchy separator. Single underscores are preserved as part of the key name.
// For example, APP__SERVER__PORT=9090 overrides server.port and
// APP__CONTACT_API__BASE_URL=http://api:3000 overrides contact_api.base_url.
// Variables already set in the environment win over those from a .env file.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Load YAML config file.
	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}

	if err := loadDotEnv(dotenvFiles...); err != nil {
		return nil, err
	}

	// Overlay environment variables with prefix APP__.
	// APP__SERVER__PORT -> server.port
	// APP__CONTACT_API__POOL__MAX_IDLE_CONNS -> contact_api.pool.max_idle_conns
	if err := k.Load(env.Provider("APP__", ".", func(s string) string {
		key := strings.TrimPrefix(s, "APP__")
		key = strings.ToLower(key)
		key = strings.ReplaceAll(key, "__", ".")
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Validate checks cross-field constraints and supported values.
func (c *Config) Validate() error {
	// Validate server.mode.
	mode := strings.TrimSpace(c.Server.Mode)
	switch mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		c.Server.Mode = mode
	default:
		return fmt.Errorf("invalid server.mode %q: must be one of %q, %q, %q", c.Server.Mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}

	// Validate server.port range.
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", c.Server.Port)
	}

	// Validate server.host.
	host := strings.TrimSpace(c.Server.Host)
	if host == "" {
		return fmt.Errorf("server.host is required")
	}
	c.Server.Host = host

	// In release mode the CSRF secret must be strong; other modes fall back
	// to a random per-process secret when it is unset.
	c.Server.CSRFSecret = strings.TrimSpace(c.Server.CSRFSecret)
	if c.Server.Mode == gin.ReleaseMode {
		if len(c.Server.CSRFSecret) < 32 {
			return fmt.Errorf("invalid server.csrf_secret: must be at least 32 characters in release mode")
		}
		if CountSecretClasses(c.Server.CSRFSecret) < 3 {
			return fmt.Errorf("server.csrf_secret must include at least 3 character classes (lowercase, uppercase, digit, symbol) in release mode")
		}
	}

	// Validate server.rate_limit (when enabled, rps and burst must be positive).
	if c.Server.RateLimit.Enabled {
		if c.Server.RateLimit.RPS <= 0 {
			return fmt.Errorf("invalid server.rate_limit.rps %v: must be positive when rate limiting is enabled", c.Server.RateLimit.RPS)
		}
		if c.Server.RateLimit.Burst <= 0 {
			return fmt.Errorf("invalid server.rate_limit.burst %d: must be positive when rate limiting is enabled", c.Server.RateLimit.Burst)
		}
	}

	// Validate contact_api.base_url.
	baseURL := strings.TrimSpace(c.ContactAPI.BaseURL)
	if baseURL == "" {
		return fmt.Errorf("contact_api.base_url is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid contact_api.base_url %q: %w", c.ContactAPI.BaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid contact_api.base_url %q: must be an absolute http or https URL", c.ContactAPI.BaseURL)
	}
	c.ContactAPI.BaseURL = strings.TrimRight(baseURL, "/")

	// Normalize optional duration fields: whitespace-only means unset.
	c.ContactAPI.Timeout = strings.TrimSpace(c.ContactAPI.Timeout)
	c.ContactAPI.Pool.IdleConnTimeout = strings.TrimSpace(c.ContactAPI.Pool.IdleConnTimeout)
	c.Directory.Debounce = strings.TrimSpace(c.Directory.Debounce)
	c.Directory.SessionTTL = strings.TrimSpace(c.Directory.SessionTTL)

	// Optional durations must be valid and positive when set.
	durations := []struct {
		name  string
		value string
	}{
		{"contact_api.timeout", c.ContactAPI.Timeout},
		{"contact_api.pool.idle_conn_timeout", c.ContactAPI.Pool.IdleConnTimeout},
		{"directory.debounce", c.Directory.Debounce},
		{"directory.session_ttl", c.Directory.SessionTTL},
	}
	for _, f := range durations {
		if f.value == "" {
			continue
		}
		d, err := time.ParseDuration(f.value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", f.name, f.value, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid %s %q: must be greater than 0", f.name, f.value)
		}
	}

	// Counts may be left at zero for the default but never negative.
	counts := []struct {
		name  string
		value int
	}{
		{"contact_api.pool.max_idle_conns", c.ContactAPI.Pool.MaxIdleConns},
		{"contact_api.pool.max_idle_conns_per_host", c.ContactAPI.Pool.MaxIdleConnsPerHost},
		{"directory.max_sessions", c.Directory.MaxSessions},
		{"avatar.max_size_mb", c.Avatar.MaxSizeMB},
	}
	for _, f := range counts {
		if f.value < 0 {
			return fmt.Errorf("invalid %s %d: must not be negative", f.name, f.value)
		}
	}

	// Validate log.level.
	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Log.Level = level
	default:
		return fmt.Errorf("invalid log.level %q: must be one of %q, %q, %q, %q", c.Log.Level, "debug", "info", "warn", "error")
	}

	// Validate log.format.
	format := strings.ToLower(strings.TrimSpace(c.Log.Format))
	switch format {
	case "text", "json":
		c.Log.Format = format
	default:
		return fmt.Errorf("invalid log.format %q: must be one of %q, %q", c.Log.Format, "text", "json")
	}

	return nil
}

// UpstreamTimeout returns the per-request timeout of the contact service client.
func (c ContactAPIConfig) UpstreamTimeout() time.Duration {
	return durationOr(c.Timeout, DefaultUpstreamTimeout)
}

// DebounceWindow returns how long a search term must be stable before it is applied.
func (c DirectoryConfig) DebounceWindow() time.Duration {
	return durationOr(c.Debounce, DefaultDebounce)
}

// TTL returns how long an idle listing session is kept.
func (c DirectoryConfig) TTL() time.Duration {
	return durationOr(c.SessionTTL, DefaultSessionTTL)
}

// Capacity returns the maximum number of live listing sessions.
func (c DirectoryConfig) Capacity() int {
	if c.MaxSessions <= 0 {
		return DefaultMaxSessions
	}
	return c.MaxSessions
}

// MaxBytes returns the avatar size ceiling in bytes.
func (c AvatarConfig) MaxBytes() int64 {
	mb := c.MaxSizeMB
	if mb <= 0 {
		mb = DefaultAvatarMaxSizeMB
	}
	return int64(mb) << 20
}

// durationOr parses s, returning def when s is empty or invalid. Load has
// already rejected invalid values, so the fallback only covers unset fields.
func durationOr(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// CountSecretClasses counts how many character classes (lowercase, uppercase,
// digit, symbol) are present in the given secret string.
func CountSecretClasses(secret string) int {
	hasLower := false
	hasUpper := false
	hasDigit := false
	hasSymbol := false

	for _, r := range secret {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	classes := 0
	if hasLower {
		classes++
	}
	if hasUpper {
		classes++
	}
	if hasDigit {
		classes++
	}
	if hasSymbol {
		classes++
	}

	return classes
}
