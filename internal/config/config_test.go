package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("INTRANET_API_URL", "")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("INTRANET_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8080/api", cfg.Client.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Client.Timeout())
	assert.Empty(t, cfg.Postgres.DSN)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, "intranet.events", cfg.Redis.EventsChannel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("INTRANET_API_URL", "https://intranet.example.com/api")
	t.Setenv("INTRANET_TIMEOUT_SECONDS", "not-a-number")
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("POSTGRES_RUN_MIGRATIONS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://intranet.example.com/api", cfg.Client.BaseURL)
	assert.Equal(t, 15, cfg.Client.TimeoutSeconds)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
	assert.False(t, cfg.Postgres.RunMigrations)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")
	_, err := Load()
	assert.Error(t, err)
}

func TestZeroTimeouts(t *testing.T) {
	assert.Zero(t, ClientConfig{}.Timeout())
	assert.Zero(t, ServerConfig{}.RequestTimeout())
}
