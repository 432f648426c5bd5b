package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/intranet/internal/config"
	"github.com/spec-kit/intranet/internal/events"
)

// Redis wraps the go-redis client. A nil *Redis is valid and disabled.
type Redis struct {
	Client  *redis.Client
	channel string
}

// NewRedis connects to Redis using the provided configuration. It returns nil
// when no address is configured.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if cfg.Addr == "" {
		logger.Info("REDIS_ADDR not provided; event fan-out disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client, channel: cfg.EventsChannel}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// PublishEvent fans a domain event out to the events channel as JSON.
func (r *Redis) PublishEvent(ctx context.Context, event events.Event) error {
	if r == nil || r.Client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return r.Client.Publish(ctx, r.channel, payload).Err()
}

// Subscribe registers the publisher on every event of the dispatcher.
func (r *Redis) Subscribe(dispatcher events.Dispatcher) {
	if r == nil || dispatcher == nil {
		return
	}
	dispatcher.SubscribeAll(r.PublishEvent)
}
