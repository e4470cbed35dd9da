package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Environment string
	Host        string
	Port        int
	// base path the app is mounted under, e.g. /frontend-centinela-pos
	BasePath string `toml:"base_path"`
	// public origin of the app, used for the websocket origin check
	AllowedOrigins []string `toml:"allowed_origins"`
	// proxies whose X-Real-Ip / X-Forwarded-For headers are honored
	TrustedProxies []string `toml:"trusted_proxies"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// remote REST API
	APIBaseURL string `toml:"api_base_url"`
	APITimeout int    `toml:"api_timeout_seconds"`
	// socket.io endpoint of the chat server, e.g. ws://localhost:3000/socket.io/?EIO=4&transport=websocket
	ChatURL string `toml:"chat_url"`

	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	// postgres
	PostgresHost     string `toml:"postgres_host"`
	PostgresPort     string `toml:"postgres_port"`
	PostgresDBName   string `toml:"postgres_db_name"`
	PostgresUser     string `toml:"postgres_user"`
	PostgresMaxConns int32  `toml:"postgres_max_conns"`

	// sessions
	SessionTTLHours     int  `toml:"session_ttl_hours"`
	SessionCookieSecure bool `toml:"session_cookie_secure"`

	// login attempts allowed per IP per minute
	LoginRateLimit int `toml:"login_rate_limit"`

	MetricsHost string `toml:"metrics_host"`
	MetricsPort string `toml:"metrics_port"`
	// upper bound for request bodies, logo and profile photo uploads included
	MaxBodyMB int `toml:"max_body_mb"`
}

func (c *Config) SessionTTL() time.Duration {
	if c.SessionTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c *Config) APITimeoutDuration() time.Duration {
	if c.APITimeout <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.APITimeout) * time.Second
}

func (c *Config) MaxBodyBytes() int64 {
	if c.MaxBodyMB <= 0 {
		return 8 << 20
	}
	return int64(c.MaxBodyMB) << 20
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}

	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}
	cfg.BasePath = strings.TrimSuffix(cfg.BasePath, "/")

	return cfg, nil
}

// Load reads the TOML file at path and returns the section for env.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file [%s]: %w", path, err)
	}
	return t.Get(env)
}
