package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapEnv(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(mapEnv(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "booksync.db", cfg.Database.Path)
	assert.Equal(t, DevJWTSecret, cfg.JWT.Secret)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, 5, cfg.Sync.MaxConcurrency)
	assert.Equal(t, 1000, cfg.Sync.MaxDownloadEntities)
	assert.Empty(t, cfg.Sync.StrategyFile)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(mapEnv(map[string]string{
		"ENV":                          "production",
		"SERVER_ADDRESS":               "127.0.0.1:9000",
		"DB_PATH":                      "/var/lib/booksync/sync.db",
		"JWT_SECRET":                   "prod-secret",
		"JWT_ACCESS_TTL":               "1h",
		"SYNC_MAX_CONCURRENCY":         "8",
		"SYNC_MAX_DOWNLOAD_ENTITIES":   "250",
		"HEALTH_MAX_PENDING_CONFLICTS": "10",
		"STRATEGY_FILE":                "strategies.yaml",
		"RATE_LIMIT_ENABLED":           "false",
		"LOG_LEVEL":                    "debug",
		"LOG_FORMAT":                   "json",
	}))
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address)
	assert.Equal(t, "/var/lib/booksync/sync.db", cfg.Database.Path)
	assert.Equal(t, time.Hour, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, 8, cfg.Sync.MaxConcurrency)
	assert.Equal(t, 250, cfg.Sync.MaxDownloadEntities)
	assert.Equal(t, 10, cfg.Health.MaxPendingConflicts)
	assert.Equal(t, "strategies.yaml", cfg.Sync.StrategyFile)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		env  map[string]string
		name string
	}{
		{name: "bad int", env: map[string]string{"SYNC_MAX_CONCURRENCY": "five"}},
		{name: "zero concurrency", env: map[string]string{"SYNC_MAX_CONCURRENCY": "0"}},
		{name: "bad duration", env: map[string]string{"JWT_ACCESS_TTL": "soon"}},
		{name: "bad bool", env: map[string]string{"RATE_LIMIT_ENABLED": "maybe"}},
		{name: "dev secret in production", env: map[string]string{"ENV": "production"}},
		{name: "bad log format", env: map[string]string{"LOG_FORMAT": "xml"}},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(mapEnv(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DB_PATH=from-dotenv.db\n"), 0o600))
	t.Chdir(dir)
	// godotenv не перезаписывает уже заданные переменные
	t.Setenv("SERVER_ADDRESS", ":7070")
	t.Setenv("DB_PATH", "")
	require.NoError(t, os.Unsetenv("DB_PATH"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.db", cfg.Database.Path)
	assert.Equal(t, ":7070", cfg.Server.Address)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, "json", slog.LevelInfo))
	logger.Debug("hidden")
	logger.Info("sync done", "tenant_id", "tenant-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "sync done", line["msg"])
	assert.Equal(t, "tenant-1", line["tenant_id"])
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	logger, closer, err := NewLogger(LoggingConfig{Level: "info", Format: "text", File: path, MaxSizeMB: 1})
	require.NoError(t, err)
	logger.Info("hello", "component", "test")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "component=test")
}
