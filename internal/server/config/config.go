// Package config loads the sync server configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevJWTSecret is the fallback signing secret. Refused outside development.
const DevJWTSecret = "dev-secret-change-in-production"

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Sync      SyncConfig
	Health    HealthConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Address         string
	Env             string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Path string
}

type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

type SyncConfig struct {
	// StrategyFile is an optional YAML file overriding the default strategy table.
	StrategyFile        string
	MaxConcurrency      int
	MaxDownloadEntities int
}

type HealthConfig struct {
	MaxPendingConflicts int
	MaxFailedEntities   int
}

type RateLimitConfig struct {
	RequestsPerMinute      int
	BatchRequestsPerMinute int
	Enabled                bool
}

type LoggingConfig struct {
	Level  string
	Format string
	// File включает запись в файл с ротацией, пусто - stderr
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Load reads .env (when present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := &env{getenv: getenv}

	cfg := &Config{
		Server: ServerConfig{
			Address:         e.str("SERVER_ADDRESS", ":8080"),
			Env:             e.str("ENV", "development"),
			ReadTimeout:     e.duration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    e.duration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: e.duration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Path: e.str("DB_PATH", "booksync.db"),
		},
		JWT: JWTConfig{
			Secret:         e.str("JWT_SECRET", DevJWTSecret),
			Issuer:         e.str("JWT_ISSUER", "booksync"),
			AccessTokenTTL: e.duration("JWT_ACCESS_TTL", 15*time.Minute),
		},
		Sync: SyncConfig{
			StrategyFile:        e.str("STRATEGY_FILE", ""),
			MaxConcurrency:      e.integer("SYNC_MAX_CONCURRENCY", 5),
			MaxDownloadEntities: e.integer("SYNC_MAX_DOWNLOAD_ENTITIES", 1000),
		},
		Health: HealthConfig{
			MaxPendingConflicts: e.integer("HEALTH_MAX_PENDING_CONFLICTS", 1000),
			MaxFailedEntities:   e.integer("HEALTH_MAX_FAILED_ENTITIES", 1000),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute:      e.integer("RATE_LIMIT_REQUESTS_PER_MINUTE", 120),
			BatchRequestsPerMinute: e.integer("RATE_LIMIT_BATCH_PER_MINUTE", 10),
			Enabled:                e.boolean("RATE_LIMIT_ENABLED", true),
		},
		Logging: LoggingConfig{
			Level:      e.str("LOG_LEVEL", "info"),
			Format:     e.str("LOG_FORMAT", "text"),
			File:       e.str("LOG_FILE", ""),
			MaxSizeMB:  e.integer("LOG_MAX_SIZE_MB", 100),
			MaxBackups: e.integer("LOG_MAX_BACKUPS", 5),
		},
	}

	if len(e.errs) > 0 {
		return nil, errors.Join(e.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// Validate checks value ranges and production safety.
func (c *Config) Validate() error {
	var errs []error
	if c.Sync.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("SYNC_MAX_CONCURRENCY must be positive, got %d", c.Sync.MaxConcurrency))
	}
	if c.Sync.MaxDownloadEntities < 1 {
		errs = append(errs, fmt.Errorf("SYNC_MAX_DOWNLOAD_ENTITIES must be positive, got %d", c.Sync.MaxDownloadEntities))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if !c.IsDevelopment() && c.JWT.Secret == DevJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set outside development"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Logging.Format))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// env collects parse errors instead of silently falling back to defaults.
type env struct {
	getenv func(string) string
	errs   []error
}

func (e *env) str(key, def string) string {
	if v := e.getenv(key); v != "" {
		return v
	}
	return def
}

func (e *env) integer(key string, def int) int {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func (e *env) boolean(key string, def bool) bool {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := e.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return d
}
