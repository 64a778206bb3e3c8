package upstream

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	appLog "plancal/internal/log"
)

// KeyPrefix namespaces every key RedisCache writes.
const KeyPrefix = "plancal:upstream:"

// RedisOptions configures a RedisCache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache stores bodies in Redis with native expiry. When Redis is
// unreachable at startup, or fails later, the cache turns itself off and
// every lookup misses.
type RedisCache struct {
	client *redis.Client

	mu       sync.RWMutex
	disabled bool
}

// NewRedisCache connects to Redis. It never fails: an unreachable server
// yields a disabled cache and a warning.
func NewRedisCache(ctx context.Context, opts RedisOptions) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		appLog.Warn("redis cache unavailable, running without caching", "addr", opts.Addr, "err", err.Error())
		_ = client.Close()
		return &RedisCache{disabled: true}
	}

	appLog.Info("redis cache initialized", "addr", opts.Addr)
	return &RedisCache{client: client}
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Available reports whether the cache is operational.
func (c *RedisCache) Available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *RedisCache) fail(err error, op string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}
	c.mu.Lock()
	c.disabled = true
	c.mu.Unlock()
	appLog.Error("disabling redis cache", err, "operation", op)
}

func redisKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return KeyPrefix + hex.EncodeToString(sum[:])
}

func (c *RedisCache) Match(ctx context.Context, key string) ([]byte, bool, error) {
	if !c.Available() {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		c.fail(err, "get")
		return nil, false, err
	}
	return data, true, nil
}

func (c *RedisCache) Put(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	if !c.Available() {
		return nil
	}
	if err := c.client.Set(ctx, redisKey(key), body, ttl).Err(); err != nil {
		c.fail(err, "set")
		return err
	}
	return nil
}
