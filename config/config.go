package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Audit     AuditConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3001
	Mode string // "debug", "release", "test"; default: "release"

	// ShutdownTimeout bounds how long in-flight requests may drain.
	ShutdownTimeout time.Duration // default: 5s
}

// BrowserConfig controls the shared Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's OS sandbox (needed in containers).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// StartupTimeout bounds launching and connecting to the browser.
	StartupTimeout time.Duration // default: 30s

	// Stealth injects anti-automation-detection JS into every session.
	Stealth bool // default: false

	// AcceptLanguage is sent as an extra header on every session.
	AcceptLanguage string // default: "en-US,en;q=0.9"
}

// AuditConfig controls a single page audit.
type AuditConfig struct {
	// NavigationTimeout is the deadline for navigation + network idle.
	NavigationTimeout time.Duration // default: 30s

	// IdleWindow is how long the network must stay quiet to count as idle.
	IdleWindow time.Duration // default: 500ms

	// UserAgent is the desktop browser UA presented to audited sites.
	UserAgent string

	// MaxEmails caps the number of reported email addresses.
	MaxEmails int // default: 5
}

// AuthConfig controls API key authentication of /audit.
type AuthConfig struct {
	// APIKeys is the list of valid API keys. Empty means open access.
	APIKeys []string
}

// RateLimitConfig controls per-client rate limiting of /audit.
type RateLimitConfig struct {
	// Requests is the number of requests allowed per Window.
	Requests int // default: 100

	// Window is the replenishment period for Requests.
	Window time.Duration // default: 15m
}

// CORSConfig controls cross-origin access for the dashboard.
type CORSConfig struct {
	// AllowedOrigins lists permitted origins; "*" allows any.
	AllowedOrigins []string // default: ["*"]
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// DefaultUserAgent is a current desktop Chrome UA string.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Load reads configuration from AUDIT_* environment variables with sane
// defaults. PORT is honoured as a fallback for the listen port.
func Load() *Config {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.port", "AUDIT_SERVER_PORT", "PORT")

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.startup_timeout", 30*time.Second)
	v.SetDefault("browser.stealth", false)
	v.SetDefault("browser.accept_language", "en-US,en;q=0.9")

	v.SetDefault("audit.navigation_timeout", 30*time.Second)
	v.SetDefault("audit.idle_window", 500*time.Millisecond)
	v.SetDefault("audit.user_agent", DefaultUserAgent)
	v.SetDefault("audit.max_emails", 5)

	v.SetDefault("auth.api_keys", "")

	v.SetDefault("ratelimit.requests", 100)
	v.SetDefault("ratelimit.window", 15*time.Minute)

	v.SetDefault("cors.allowed_origins", "*")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			Mode:            v.GetString("server.mode"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Browser: BrowserConfig{
			Headless:       v.GetBool("browser.headless"),
			NoSandbox:      v.GetBool("browser.no_sandbox"),
			BrowserBin:     v.GetString("browser.bin"),
			StartupTimeout: v.GetDuration("browser.startup_timeout"),
			Stealth:        v.GetBool("browser.stealth"),
			AcceptLanguage: v.GetString("browser.accept_language"),
		},
		Audit: AuditConfig{
			NavigationTimeout: v.GetDuration("audit.navigation_timeout"),
			IdleWindow:        v.GetDuration("audit.idle_window"),
			UserAgent:         v.GetString("audit.user_agent"),
			MaxEmails:         v.GetInt("audit.max_emails"),
		},
		Auth: AuthConfig{
			APIKeys: splitList(v.GetString("auth.api_keys")),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("ratelimit.requests"),
			Window:   v.GetDuration("ratelimit.window"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
