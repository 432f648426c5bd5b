package persistence

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/intranet/internal/config"
	"github.com/spec-kit/intranet/internal/events"
)

func TestDisabledBackends(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	pg, err := NewPostgres(ctx, config.PostgresConfig{}, logger)
	require.NoError(t, err)
	assert.False(t, pg.Enabled())
	assert.Error(t, pg.Ping(ctx))
	pg.Close()
	assert.NoError(t, RunMigrations(ctx, pg.Pool, logger))

	r := NewRedis(config.RedisConfig{}, logger)
	assert.Nil(t, r)
	assert.Error(t, r.Ping(ctx))
	assert.NoError(t, r.PublishEvent(ctx, events.Event{Type: events.EventResourceCreated}))
	r.Subscribe(events.NewInMemoryDispatcher())
	r.Close()
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	content, err := migrationFiles.ReadFile(names[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "CREATE TABLE IF NOT EXISTS resources")
}
