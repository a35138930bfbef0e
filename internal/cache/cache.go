// Package cache is the optional Redis cache for search responses.
// A Service built without a client is a no-op: reads miss and writes are ignored.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	TTLDefault = 5 * time.Minute // Search responses

	PrefixSearch  = "trendscope:search:"
	PrefixCluster = "trendscope:cluster:"
)

// ErrMiss is returned by reads when the key is absent or the cache is unavailable.
var ErrMiss = errors.New("cache miss")

// Service is the Redis cache service.
type Service interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	IsAvailable() bool
	Ping(ctx context.Context) error
}

type redisCache struct {
	client *redis.Client
}

// NewService wraps client; client may be nil.
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

// Options configures Connect.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Connect builds a Service for opts.Addr. An empty address yields a disabled cache.
func Connect(ctx context.Context, opts Options) (Service, error) {
	if opts.Addr == "" {
		return NewService(nil), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return NewService(nil), fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return NewService(client), nil
}

func (c *redisCache) IsAvailable() bool {
	return c.client != nil
}

func (c *redisCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return c.client.Ping(ctx).Err()
}

func (c *redisCache) Get(ctx context.Context, key string, dest any) error {
	if c.client == nil {
		return ErrMiss
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

func (c *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = TTLDefault
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// credentialScope keys entries by a digest of the API key so results are never shared
// across credentials and the key itself is never written to Redis.
func credentialScope(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:8])
}

// SearchKey names the cached response of a search.
func SearchKey(kind, query string, limit int, apiKey string) string {
	return fmt.Sprintf("%s%s:%s:%d:%s", PrefixSearch, kind, credentialScope(apiKey), limit,
		strings.ToLower(strings.TrimSpace(query)))
}

// ClusterKey names the cached detail of a cluster.
func ClusterKey(label, apiKey string) string {
	return PrefixCluster + credentialScope(apiKey) + ":" + label
}
