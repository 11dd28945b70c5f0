package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLedger claims with SETNX so every instance sees the same claims.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	return &RedisLedger{client: client, ttl: ttl}
}

func ConfirmationKey(uuid string) string { return "booking:confirmed:" + uuid }

func (r *RedisLedger) Claim(ctx context.Context, uuid string) (bool, error) {
	ok, err := r.client.SetNX(ctx, ConfirmationKey(uuid), time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim confirmation: %w", err)
	}
	return ok, nil
}

func (r *RedisLedger) Release(ctx context.Context, uuid string) error {
	if err := r.client.Del(ctx, ConfirmationKey(uuid)).Err(); err != nil {
		return fmt.Errorf("release confirmation: %w", err)
	}
	return nil
}
