package routing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/transfer-booking/internal/models"
)

// RedisCache shares distance lookups between server instances.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: "route:dist:", ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, a, b models.Coord) (Result, bool) {
	raw, err := r.client.Get(ctx, r.prefix+keyFor(a, b)).Bytes()
	if err != nil {
		return Result{}, false
	}
	var v Result
	if err := json.Unmarshal(raw, &v); err != nil {
		return Result{}, false
	}
	return v, true
}

func (r *RedisCache) Set(ctx context.Context, a, b models.Coord, v Result) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = r.client.Set(ctx, r.prefix+keyFor(a, b), raw, r.ttl).Err()
}
