package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultKeyPrefix namespaces limiter counters in a shared Redis.
const DefaultKeyPrefix = "propoto:rl:"

// Redis is a fixed-window limiter whose counters live in Redis, so replicas share limits.
// Redis errors fail open.
type Redis struct {
	client *redis.Client
	config *Config
	prefix string
	logger *zap.Logger
}

// NewRedis returns a limiter using client. A nil config uses DefaultConfig.
func NewRedis(client *redis.Client, config *Config, logger *zap.Logger) *Redis {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, config: config, prefix: DefaultKeyPrefix, logger: logger}
}

// Allow counts the request in the current window for clientID and endpoint.
func (r *Redis) Allow(ctx context.Context, clientID, endpoint, method string) (bool, Info) {
	ec, decided := r.config.resolve(clientID, endpoint, method)
	if decided != nil {
		return decided.Allowed, *decided
	}

	key := r.prefix + clientID + ":" + method + ":" + endpoint
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		r.logger.Warn("rate limit counter unavailable, allowing request", zap.String("key", key), zap.Error(err))
		return true, Info{Allowed: true}
	}
	if count == 1 {
		r.client.Expire(ctx, key, ec.Window)
	}

	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		// A counter without expiry would block the client forever.
		r.client.Expire(ctx, key, ec.Window)
		ttl = ec.Window
	}

	allowed := count <= int64(ec.Limit)
	info := Info{
		Allowed:   allowed,
		Limit:     ec.Limit,
		Remaining: max(ec.Limit-int(count), 0),
		ResetTime: time.Now().Add(ttl),
	}
	if !allowed {
		info.RetryAfter = ttl
	}
	return allowed, info
}
