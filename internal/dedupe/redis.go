package dedupe

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces claimed IDs.
const keyPrefix = "annabot:msg:"

// redisStore implements Store with SETNX so several bot processes sharing
// one Redis never answer the same message twice.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// Claim implements Store.
func (s *redisStore) Claim(ctx context.Context, id string) (bool, error) {
	return s.client.SetNX(ctx, keyPrefix+id, 1, s.ttl).Result()
}

// Close implements Store.
func (s *redisStore) Close() error {
	return s.client.Close()
}
