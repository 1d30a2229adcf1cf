package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/canvas-sync/pkg/errs"
	"github.com/Sternrassler/canvas-sync/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "canvas-sync.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CANVAS_HOST", "canvas.example.edu")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 10.0, cfg.RateLimit)
	assert.Equal(t, 5, cfg.RateBurst)
	assert.Equal(t, 50, cfg.Pagination.PageSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Pagination.Delay)
	assert.Equal(t, StoreFile, cfg.Snapshot.Store)
	assert.Equal(t, time.Duration(0), cfg.Snapshot.TTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Empty(t, cfg.MetricsAddr)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
host: canvas.example.edu
logLevel: debug
pagination:
  pageSize: 100
  delay: 1s
snapshot:
  store: redis
  ttl: 1h
redis:
  host: cache.internal
  port: 6380
  database: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "canvas.example.edu", cfg.Host)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 100, cfg.Pagination.PageSize)
	assert.Equal(t, time.Second, cfg.Pagination.Delay)
	assert.Equal(t, StoreRedis, cfg.Snapshot.Store)
	assert.Equal(t, time.Hour, cfg.Snapshot.TTL)
	assert.Equal(t, "cache.internal:6380", cfg.Redis.Addr())
	assert.Equal(t, 2, cfg.Redis.Database)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "host: canvas.example.edu\n")
	t.Setenv("CANVAS_HOST", "other.example.edu")
	t.Setenv("CANVAS_TOKEN", "secret")
	t.Setenv("CANVAS_REDIS_HOST", "redis.example.edu")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "other.example.edu", cfg.Host)
	assert.Equal(t, "secret", cfg.Token)
	assert.Equal(t, "redis.example.edu", cfg.Redis.Host)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err, "an explicit config file must exist")

	_, err = Load(writeConfig(t, "logLevel: debug\n"))
	assert.ErrorIs(t, err, errs.ErrInvalidArgument, "host is required")

	_, err = Load(writeConfig(t, "host: h\nsnapshot:\n  store: s3\n"))
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = Load(writeConfig(t, "host: h\npagination:\n  delay: -1s\n"))
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = Load(writeConfig(t, "host: h\nlogLevel: verbose\n"))
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestAuthenticator(t *testing.T) {
	cfg := &Configuration{Token: "abc"}
	token, err := cfg.Authenticator()
	require.NoError(t, err)
	assert.NotNil(t, token)

	tokenFile := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("from-file\n"), 0o600))
	cfg = &Configuration{TokenFile: tokenFile}
	_, err = cfg.Authenticator()
	require.NoError(t, err)

	_, err = (&Configuration{}).Authenticator()
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestDerivedConfigs(t *testing.T) {
	cfg := &Configuration{
		Host:       "canvas.example.edu",
		LogLevel:   "warn",
		LogPretty:  true,
		Timeout:    10 * time.Second,
		RateLimit:  2,
		RateBurst:  1,
		Pagination: PaginationConfiguration{PageSize: 20, Delay: time.Second},
	}

	token, err := (&Configuration{Token: "abc"}).Authenticator()
	require.NoError(t, err)

	cc := cfg.ClientConfig(token)
	assert.Equal(t, "canvas.example.edu", cc.Host)
	assert.Empty(t, cc.BaseURL)
	assert.Equal(t, 10*time.Second, cc.Timeout)
	assert.Equal(t, 2.0, cc.RateLimit)
	assert.Equal(t, 1, cc.RateBurst)

	pc := cfg.PaginationConfig()
	assert.Equal(t, 20, pc.PageSize)
	assert.Equal(t, time.Second, pc.Delay)

	lc := cfg.LoggingConfig()
	assert.Equal(t, logging.LevelWarn, lc.Level)
	assert.True(t, lc.Pretty)
}
