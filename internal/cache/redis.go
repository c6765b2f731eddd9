package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/redtrack-io/redtrack/internal/metrics"
)

// RedisCache shares resolved permissions between server instances. Purge bumps
// a generation counter that is part of every key, so stale entries become
// unreachable at once and expire on their TTL.
type RedisCache struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig defines the Redis connection and key layout.
type RedisConfig struct {
	Addrs     []string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration

	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisCache connects to Redis (or a cluster when more than one address is
// given) and verifies the connection.
func NewRedisCache(config RedisConfig) (*RedisCache, error) {
	if len(config.Addrs) == 0 {
		return nil, fmt.Errorf("redis cache: no address configured")
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        config.Addrs,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisCacheWithClient(client, config.KeyPrefix, config.TTL), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "redtrack:"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (rc *RedisCache) Get(ctx context.Context, key string) ([]string, bool) {
	timer := prometheus.NewTimer(metrics.CacheLatency.WithLabelValues("redis", "get"))
	defer timer.ObserveDuration()

	fullKey, err := rc.fullKey(ctx, key)
	if err != nil {
		rc.fail("get", err)
		return nil, false
	}
	data, err := rc.client.Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheRequests.WithLabelValues("redis", "miss").Inc()
		return nil, false
	}
	if err != nil {
		rc.fail("get", err)
		return nil, false
	}

	var perms []string
	if err := json.Unmarshal(data, &perms); err != nil {
		rc.fail("decode", err)
		return nil, false
	}
	metrics.CacheRequests.WithLabelValues("redis", "hit").Inc()
	return perms, true
}

func (rc *RedisCache) Set(ctx context.Context, key string, perms []string) {
	timer := prometheus.NewTimer(metrics.CacheLatency.WithLabelValues("redis", "set"))
	defer timer.ObserveDuration()

	if perms == nil {
		perms = []string{}
	}
	data, err := json.Marshal(perms)
	if err != nil {
		rc.fail("encode", err)
		return
	}
	fullKey, err := rc.fullKey(ctx, key)
	if err != nil {
		rc.fail("set", err)
		return
	}
	if err := rc.client.Set(ctx, fullKey, data, rc.ttl).Err(); err != nil {
		rc.fail("set", err)
	}
}

// Purge invalidates every entry written so far.
func (rc *RedisCache) Purge(ctx context.Context) error {
	timer := prometheus.NewTimer(metrics.CacheLatency.WithLabelValues("redis", "purge"))
	defer timer.ObserveDuration()

	if err := rc.client.Incr(ctx, rc.generationKey()).Err(); err != nil {
		metrics.CacheRequests.WithLabelValues("redis", "error").Inc()
		return fmt.Errorf("bump permission cache generation: %w", err)
	}
	return nil
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

func (rc *RedisCache) generationKey() string {
	return rc.keyPrefix + "perm:generation"
}

func (rc *RedisCache) fullKey(ctx context.Context, key string) (string, error) {
	gen, err := rc.client.Get(ctx, rc.generationKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("%sg%d:%s", rc.keyPrefix, gen, key), nil
}

func (rc *RedisCache) fail(op string, err error) {
	metrics.CacheRequests.WithLabelValues("redis", "error").Inc()
	log.Printf("cache: redis %s failed: %v", op, err)
}
