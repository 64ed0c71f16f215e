package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(content), 0o600))
	return filename
}

func TestLoadConfig(t *testing.T) {
	filename := writeConfig(t, `
baseURL: https://auth.example.com/
listenAddr: ":9000"
database:
  driver: mysql
  dsn: "krealm:secret@tcp(127.0.0.1:3306)/krealm"
  replicas:
    - "krealm:secret@tcp(127.0.0.2:3306)/krealm"
redis:
  url: redis://localhost:6379/0
auth:
  accessTokenTTL: 5m
  rotateRefreshTokens: true
webhooks:
  workers: 8
`)
	t.Setenv("LISTENADDR", ":9100")

	cfg, err := LoadConfig(filename)
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com", cfg.BaseURL)
	assert.Equal(t, ":9100", cfg.ListenAddr)
	assert.Equal(t, "krealm:secret@tcp(127.0.0.1:3306)/krealm?parseTime=true", cfg.Database.Dsn)
	assert.Equal(t, []string{"krealm:secret@tcp(127.0.0.2:3306)/krealm?parseTime=true"}, cfg.Database.Replicas)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.True(t, cfg.Auth.RotateRefreshTokens)
	assert.Equal(t, 8, cfg.Webhooks.Workers)
	assert.Equal(t, RateLimitStorageRedis, cfg.RateLimit.Storage)
	assert.Equal(t, DefaultRateLimitMax, cfg.RateLimit.Max)
	assert.Equal(t, DefaultAdminUsername, cfg.Admin.Username)
}

func TestSanitize(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Driver: DriverSQLite}}
	require.NoError(t, cfg.Sanitize())
	assert.Equal(t, DefaultSQLitePath, cfg.Database.Dsn)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultHealthCheckAddr, cfg.HealthCheckAddr)

	cfg = &Config{}
	assert.ErrorIs(t, cfg.Sanitize(), ErrMissingDSN)

	cfg = &Config{Database: DatabaseConfig{Driver: "postgres", Dsn: "x"}}
	assert.ErrorIs(t, cfg.Sanitize(), ErrUnsupportedDriver)

	cfg = &Config{Database: DatabaseConfig{Driver: DriverSQLite}, RateLimit: RateLimitConfig{Storage: "etcd"}}
	assert.ErrorIs(t, cfg.Sanitize(), ErrUnsupportedRateStore)

	cfg = &Config{Database: DatabaseConfig{Dsn: "not a dsn"}}
	assert.Error(t, cfg.Sanitize())
}
