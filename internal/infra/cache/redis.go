package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGate реализует domain.Gate через SETNX с TTL.
// Используется как антиспам-окно для оценки фото.
type RedisGate struct {
	client *redis.Client
}

// NewRedisGate создаёт замок.
func NewRedisGate(client *redis.Client) *RedisGate {
	return &RedisGate{client: client}
}

// Acquire возвращает true, если ключ взят этим вызовом.
func (g *RedisGate) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return g.client.SetNX(ctx, key, "1", ttl).Result()
}
