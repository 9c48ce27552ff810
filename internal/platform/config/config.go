// Package config provides configuration loading and management using koanf.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default configuration values.
const (
	// DefaultServerPort is the default HTTP server port.
	DefaultServerPort = 8080

	// DefaultMaxRequestSize is the default maximum request body size (1MB).
	DefaultMaxRequestSize = 1 << 20 // 1048576 bytes

	// DefaultClientRetryMaxAttempts is the default number of retry attempts.
	DefaultClientRetryMaxAttempts = 3

	// DefaultClientRetryMultiplier is the default exponential backoff multiplier.
	DefaultClientRetryMultiplier = 2.0

	// DefaultClientRetryJitterFactor is the default jitter percentage (±25%).
	DefaultClientRetryJitterFactor = 0.25

	// DefaultClientCircuitMaxFailures is the default consecutive failures before the circuit opens.
	DefaultClientCircuitMaxFailures = 5

	// DefaultClientCircuitHalfOpenLimit is the default number of trial requests while half-open.
	DefaultClientCircuitHalfOpenLimit = 3

	// DefaultTransportMaxIdleConns is the default max idle connections.
	DefaultTransportMaxIdleConns = 100

	// DefaultTransportMaxIdleConnsPerHost is the default max idle connections per host.
	DefaultTransportMaxIdleConnsPerHost = 10

	// DefaultLogFileMaxSizeMB is the default max log file size in megabytes.
	DefaultLogFileMaxSizeMB = 100

	// DefaultLogFileMaxBackups is the default number of old log files to retain.
	DefaultLogFileMaxBackups = 3

	// DefaultLogFileMaxAgeDays is the default max days to retain old log files.
	DefaultLogFileMaxAgeDays = 28

	// DefaultDatabaseMaxOpenConns is the default pool size for PostgreSQL.
	DefaultDatabaseMaxOpenConns = 20

	// DefaultDatabaseMaxIdleConns is the default number of idle pooled connections.
	DefaultDatabaseMaxIdleConns = 5

	// DefaultLeaderboardSize is the number of quotes mirrored on the leaderboard.
	DefaultLeaderboardSize = 7

	// DefaultRetentionMaxAge is how long an unpopular quote is kept (14 days).
	DefaultRetentionMaxAge = 14 * 24 * time.Hour

	// DefaultQuoteOfWeekMinUpvotes is the upvote threshold for the quote of the week.
	DefaultQuoteOfWeekMinUpvotes = 2

	// DefaultDiscordWritesPerSecond paces message writes below Discord's per-channel limit.
	DefaultDiscordWritesPerSecond = 1.0
)

// envPrefix marks environment variables read into the configuration.
const envPrefix = "APP_"

// Config is the root configuration structure.
type Config struct {
	App         AppConfig         `koanf:"app"           validate:"required"`
	Server      ServerConfig      `koanf:"server"        validate:"required"`
	Log         LogConfig         `koanf:"log"           validate:"required"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Auth        AuthConfig        `koanf:"auth"`
	CORS        CORSConfig        `koanf:"cors"`
	Client      ClientConfig      `koanf:"client"        validate:"required"`
	Database    DatabaseConfig    `koanf:"database"      validate:"required"`
	Discord     DiscordConfig     `koanf:"discord"       validate:"required"`
	Leaderboard LeaderboardConfig `koanf:"leaderboard"`
	Retention   RetentionConfig   `koanf:"retention"     validate:"required"`
	QuoteOfWeek QuoteOfWeekConfig `koanf:"quote_of_week"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Version     string `koanf:"version"     validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev qa prod test"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"required,min=1,max=65535"`
	Host            string        `koanf:"host"             validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	RequestTimeout  time.Duration `koanf:"request_timeout"  validate:"required,min=100ms"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string        `koanf:"level"  validate:"required,oneof=trace debug info warn error"`
	Format string        `koanf:"format" validate:"required,oneof=json text pretty"`
	File   LogFileConfig `koanf:"file"`
}

// LogFileConfig contains rolling log file settings.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"        validate:"required_if=Enabled true"`
	MaxSizeMB  int    `koanf:"max_size"    validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"     validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"      validate:"required_if=Enabled true,omitempty,url"`
	ServiceName  string  `koanf:"service_name"  validate:"required_if=Enabled true"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
}

// AuthConfig names the gateway headers carrying the caller's identity.
// The command layer forwards the Discord user ID in SubjectHeader.
type AuthConfig struct {
	SubjectHeader string `koanf:"subject_header" validate:"required"`
	RolesHeader   string `koanf:"roles_header"`

	// MaintainerRole is required for deletes, maintenance and leaderboard refresh.
	// Empty leaves those routes open to any caller.
	MaintainerRole string `koanf:"maintainer_role"`
}

// CORSConfig contains cross-origin settings for browser clients.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// ClientConfig contains HTTP client settings for downstream services.
type ClientConfig struct {
	Timeout        time.Duration        `koanf:"timeout"         validate:"required,min=100ms"`
	Retry          RetryConfig          `koanf:"retry"           validate:"required"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker" validate:"required"`
	Transport      TransportConfig      `koanf:"transport"       validate:"required"`
}

// RetryConfig contains retry settings for HTTP clients.
type RetryConfig struct {
	MaxAttempts     int           `koanf:"max_attempts"     validate:"required,min=1,max=10"`
	InitialInterval time.Duration `koanf:"initial_interval" validate:"required,min=10ms"`
	MaxInterval     time.Duration `koanf:"max_interval"     validate:"required,min=100ms"`
	Multiplier      float64       `koanf:"multiplier"       validate:"required,min=1.1,max=10"`
	JitterFactor    float64       `koanf:"jitter_factor"    validate:"min=0,max=1"`
}

// CircuitBreakerConfig contains circuit breaker settings for HTTP clients.
type CircuitBreakerConfig struct {
	MaxFailures   int           `koanf:"max_failures"    validate:"required,min=1"`
	Timeout       time.Duration `koanf:"timeout"         validate:"required,min=1s"`
	HalfOpenLimit int           `koanf:"half_open_limit" validate:"required,min=1"`
}

// TransportConfig contains HTTP transport pool settings.
type TransportConfig struct {
	MaxIdleConns        int           `koanf:"max_idle_conns"          validate:"required,min=1"`
	MaxIdleConnsPerHost int           `koanf:"max_idle_conns_per_host" validate:"required,min=1"`
	IdleConnTimeout     time.Duration `koanf:"idle_conn_timeout"       validate:"required,min=1s"`
}

// DatabaseConfig contains quote store connection settings.
type DatabaseConfig struct {
	Driver             string        `koanf:"driver"               validate:"required,oneof=sqlite postgres"`
	DSN                string        `koanf:"dsn"                  validate:"required"`
	MaxOpenConns       int           `koanf:"max_open_conns"       validate:"required,min=1"`
	MaxIdleConns       int           `koanf:"max_idle_conns"       validate:"min=0"`
	ConnMaxLifetime    time.Duration `koanf:"conn_max_lifetime"`
	SlowQueryThreshold time.Duration `koanf:"slow_query_threshold"`
}

// DiscordConfig contains Discord REST API settings for the leaderboard mirror.
type DiscordConfig struct {
	BaseURL              string  `koanf:"base_url"               validate:"required,url"`
	BotToken             string  `koanf:"bot_token"`
	LeaderboardChannelID string  `koanf:"leaderboard_channel_id" validate:"omitempty,numeric"`
	AnnounceChannelID    string  `koanf:"announce_channel_id"    validate:"omitempty,numeric"`
	WritesPerSecond      float64 `koanf:"writes_per_second"      validate:"gt=0"`
}

// LeaderboardConfig contains leaderboard synchronizer settings.
type LeaderboardConfig struct {
	Enabled bool `koanf:"enabled"`
	Size    int  `koanf:"size"    validate:"required,min=1,max=25"`
}

// RetentionConfig contains retention sweeper settings.
type RetentionConfig struct {
	MaxAge     time.Duration `koanf:"max_age"     validate:"required,min=1h"`
	MinUpvotes int           `koanf:"min_upvotes" validate:"min=0"`
}

// QuoteOfWeekConfig contains quote of the week settings.
type QuoteOfWeekConfig struct {
	MinUpvotes int `koanf:"min_upvotes" validate:"min=0"`
}

// defaults returns the default configuration values.
func defaults() map[string]any {
	return map[string]any{
		"app.name":        "quotebook",
		"app.version":     "dev",
		"app.environment": "local",

		"server.port":             DefaultServerPort,
		"server.host":             "0.0.0.0",
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",
		"server.request_timeout":  "15s",
		"server.max_request_size": DefaultMaxRequestSize,

		"log.level":            "info",
		"log.format":           "json",
		"log.file.enabled":     false,
		"log.file.path":        "./logs/quotebook.log",
		"log.file.max_size":    DefaultLogFileMaxSizeMB,
		"log.file.max_backups": DefaultLogFileMaxBackups,
		"log.file.max_age":     DefaultLogFileMaxAgeDays,
		"log.file.compress":    true,

		"telemetry.enabled":       false,
		"telemetry.endpoint":      "",
		"telemetry.service_name":  "quotebook",
		"telemetry.sampling_rate": 1.0,

		"auth.subject_header":  "X-User-ID",
		"auth.roles_header":    "X-User-Roles",
		"auth.maintainer_role": "maintainer",

		"cors.allowed_origins": []string{},

		"client.timeout":                           "10s",
		"client.retry.max_attempts":                DefaultClientRetryMaxAttempts,
		"client.retry.initial_interval":            "200ms",
		"client.retry.max_interval":                "5s",
		"client.retry.multiplier":                  DefaultClientRetryMultiplier,
		"client.retry.jitter_factor":               DefaultClientRetryJitterFactor,
		"client.circuit_breaker.max_failures":      DefaultClientCircuitMaxFailures,
		"client.circuit_breaker.timeout":           "30s",
		"client.circuit_breaker.half_open_limit":   DefaultClientCircuitHalfOpenLimit,
		"client.transport.max_idle_conns":          DefaultTransportMaxIdleConns,
		"client.transport.max_idle_conns_per_host": DefaultTransportMaxIdleConnsPerHost,
		"client.transport.idle_conn_timeout":       "90s",

		"database.driver":               "sqlite",
		"database.dsn":                  "quotes.db",
		"database.max_open_conns":       DefaultDatabaseMaxOpenConns,
		"database.max_idle_conns":       DefaultDatabaseMaxIdleConns,
		"database.conn_max_lifetime":    "30m",
		"database.slow_query_threshold": "200ms",

		"discord.base_url":               "https://discord.com/api/v10",
		"discord.bot_token":              "",
		"discord.leaderboard_channel_id": "",
		"discord.announce_channel_id":    "",
		"discord.writes_per_second":      DefaultDiscordWritesPerSecond,

		"leaderboard.enabled": false,
		"leaderboard.size":    DefaultLeaderboardSize,

		"retention.max_age":     DefaultRetentionMaxAge.String(),
		"retention.min_upvotes": 0,

		"quote_of_week.min_upvotes": DefaultQuoteOfWeekMinUpvotes,
	}
}

// Load loads configuration with the following precedence (highest to lowest):
//  1. Environment variables (APP_ prefix), including those from a .env file
//  2. Profile config file (configs/{profile}.yaml)
//  3. Base config file (configs/base.yaml)
//  4. Default values
func Load(profile string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	defaultValues := defaults()

	err := k.Load(confmap.Provider(defaultValues, "."), nil)
	if err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// 2. Load base config file if it exists
	err = loadFileIfExists(k, "configs/base.yaml")
	if err != nil {
		return nil, fmt.Errorf("loading base config: %w", err)
	}

	// 3. Load profile config file if it exists
	if profile != "" {
		profilePath := fmt.Sprintf("configs/%s.yaml", profile)

		err := loadFileIfExists(k, profilePath)
		if err != nil {
			return nil, fmt.Errorf("loading profile config %q: %w", profile, err)
		}
	}

	// 4. Load .env into the process environment; real env vars win
	err = godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	// 5. Load environment variables with APP_ prefix
	err = k.Load(env.Provider(envPrefix, ".", envKeyMapper(defaultValues)), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config

	err = k.Unmarshal("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// envKeyMapper maps APP_DISCORD_BOT_TOKEN to discord.bot_token. Known keys
// are matched first so underscores inside key names survive; unknown
// variables fall back to treating every underscore as a separator.
func envKeyMapper(known map[string]any) func(string) string {
	byEnv := make(map[string]string, len(known))
	for key := range known {
		byEnv[strings.ReplaceAll(key, ".", "_")] = key
	}

	return func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		if key, ok := byEnv[name]; ok {
			return key
		}

		return strings.ReplaceAll(name, "_", ".")
	}
}

// loadFileIfExists loads a YAML config file if it exists.
// Returns nil if the file doesn't exist, error only for parse/read failures.
func loadFileIfExists(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil // File doesn't exist, that's fine
	}

	return k.Load(file.Provider(path), yaml.Parser())
}
