// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	LogLevel    slog.Level

	Backend   BackendConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	SSE       SSEConfig

	MaxRequestBodySize int64
}

// BackendConfig locates the agent backend. An empty URL runs every chat in
// fallback mode.
type BackendConfig struct {
	URL         string
	ChatPath    string
	GRPCAddr    string
	Timeout     time.Duration
	TypingDelay time.Duration

	// ForcePreview keeps the server on the local fallback even when URL is set.
	ForcePreview bool
}

// SessionConfig controls in-memory chat sessions.
type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// RateLimitConfig bounds chat requests per user.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// SSEConfig controls server-sent event streams.
type SSEConfig struct {
	KeepaliveInterval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/studio.db"),
		LogLevel:    getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		Backend: BackendConfig{
			URL:          strings.TrimRight(getEnv("BACKEND_URL", ""), "/"),
			ChatPath:     getEnv("BACKEND_CHAT_PATH", "/api/agent/chat"),
			GRPCAddr:     getEnv("BACKEND_GRPC_ADDR", ""),
			Timeout:      getEnvDuration("BACKEND_TIMEOUT", 30*time.Second),
			TypingDelay:  getEnvDuration("FALLBACK_TYPING_DELAY", 0),
			ForcePreview: getEnvBool("PREVIEW_MODE", false),
		},
		Session: SessionConfig{
			TTL:           getEnvDuration("SESSION_TTL", 60*time.Minute),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		SSE: SSEConfig{
			KeepaliveInterval: getEnvDuration("SSE_KEEPALIVE_INTERVAL", 15*time.Second),
		},
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return errors.New("DB_PATH cannot be empty")
	}
	if c.Backend.URL != "" {
		u, err := url.Parse(c.Backend.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("BACKEND_URL %q must be an absolute URL", c.Backend.URL)
		}
	}
	if !strings.HasPrefix(c.Backend.ChatPath, "/") {
		return errors.New("BACKEND_CHAT_PATH must start with /")
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("BACKEND_TIMEOUT must be > 0")
	}
	if c.Backend.TypingDelay < 0 {
		return errors.New("FALLBACK_TYPING_DELAY cannot be negative")
	}
	if c.Session.TTL <= 0 {
		return errors.New("SESSION_TTL must be > 0")
	}
	if c.Session.SweepInterval <= 0 {
		return errors.New("SESSION_SWEEP_INTERVAL must be > 0")
	}
	if c.RateLimit.Requests <= 0 {
		return errors.New("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.SSE.KeepaliveInterval <= 0 {
		return errors.New("SSE_KEEPALIVE_INTERVAL must be > 0")
	}
	if c.MaxRequestBodySize <= 0 {
		return errors.New("MAX_REQUEST_BODY_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// HasBackend reports whether a live agent backend is configured.
func (c *Config) HasBackend() bool {
	return c.Backend.URL != "" && !c.Backend.ForcePreview
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
