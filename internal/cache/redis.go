package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisOptions configures a Redis cache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // prepended to every key
	Timeout  time.Duration // per operation, default 500ms
	Logger   zerolog.Logger
}

// Redis is a Cache backed by Redis.
type Redis struct {
	c       *redis.Client
	prefix  string
	timeout time.Duration
	log     zerolog.Logger
}

// NewRedis connects to Redis and verifies the connection with PING.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis: empty address")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 500 * time.Millisecond
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	return &Redis{
		c:       client,
		prefix:  opts.Prefix,
		timeout: opts.Timeout,
		log:     opts.Logger.With().Str("component", "redis_cache").Logger(),
	}, nil
}

// Get returns the value for key. Errors other than a missing key are logged.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	v, err := r.c.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn().Err(err).Str("key", key).Msg("redis get failed")
		}
		return nil, false
	}
	return v, true
}

// Set stores val under key.
func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.c.Set(ctx, r.prefix+key, val, ttl).Err(); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("redis set failed")
	}
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.c.Del(ctx, r.prefix+key).Err(); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("redis delete failed")
	}
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.c.Close()
}

var _ Cache = (*Redis)(nil)
