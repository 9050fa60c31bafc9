// Package dedupe remembers processed message IDs so a redelivered message
// is answered only once.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soyeahso/annabot/internal/config"
)

// StoreType represents the type of dedupe store.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeNone   StoreType = "none"
)

var (
	// ErrInvalidConfig is returned when a store is missing a required option.
	ErrInvalidConfig = errors.New("dedupe: invalid configuration")
	// ErrInvalidStoreType is returned for an unknown StoreType.
	ErrInvalidStoreType = errors.New("dedupe: invalid store type")
)

const defaultTTL = time.Hour

// Store claims message IDs.
type Store interface {
	// Claim records id and reports whether this is the first claim within
	// the TTL window.
	Claim(ctx context.Context, id string) (bool, error)
	Close() error
}

// StoreOption is a functional option for configuring a dedupe store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient *redis.Client
	ttl         time.Duration
	now         func() time.Time
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithTTL sets how long a claimed ID is remembered.
func WithTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.ttl = ttl
	}
}

// withClock overrides time.Now for the memory store.
func withClock(now func() time.Time) StoreOption {
	return func(c *storeConfig) {
		c.now = now
	}
}

// NewStore creates a Store of the given type.
// For Redis, requires WithRedisClient option.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	cfg := &storeConfig{now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.ttl <= 0 {
		cfg.ttl = defaultTTL
	}

	switch storeType {
	case StoreTypeMemory:
		return newMemoryStore(cfg.ttl, cfg.now), nil

	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return &redisStore{client: cfg.redisClient, ttl: cfg.ttl}, nil

	case StoreTypeNone:
		return noopStore{}, nil

	default:
		return nil, ErrInvalidStoreType
	}
}

// NewFromConfig builds the store selected by cfg.
func NewFromConfig(cfg config.DedupeConfig) (Store, error) {
	storeType := StoreType(cfg.Driver)
	if storeType == "" {
		storeType = StoreTypeMemory
	}

	opts := []StoreOption{WithTTL(cfg.TTL())}
	if storeType == StoreTypeRedis {
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("%w: redis url is required", ErrInvalidConfig)
		}
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		opts = append(opts, WithRedisClient(redis.NewClient(redisOpts)))
	}

	return NewStore(storeType, opts...)
}

// noopStore claims everything.
type noopStore struct{}

func (noopStore) Claim(context.Context, string) (bool, error) { return true, nil }
func (noopStore) Close() error                                { return nil }
