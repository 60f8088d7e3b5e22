package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// TokenCache remembers principals the provider already vouched for.
type TokenCache interface {
	Get(ctx context.Context, token string) (*Principal, bool)
	Set(ctx context.Context, token string, p *Principal, ttl time.Duration)
}

// RedisTokenCache keys entries by a SHA-256 of the token; raw tokens are
// never written to redis.
type RedisTokenCache struct {
	client redis.Cmdable
	prefix string
}

func NewRedisTokenCache(client redis.Cmdable) *RedisTokenCache {
	return &RedisTokenCache{client: client, prefix: "sitegen:principal:"}
}

func (c *RedisTokenCache) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return c.prefix + hex.EncodeToString(sum[:])
}

func (c *RedisTokenCache) Get(ctx context.Context, token string) (*Principal, bool) {
	raw, err := c.client.Get(ctx, c.key(token)).Bytes()
	if err != nil {
		return nil, false
	}
	var p Principal
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false
	}
	return &p, true
}

func (c *RedisTokenCache) Set(ctx context.Context, token string, p *Principal, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	// a failed write only costs a provider round trip next time
	_ = c.client.Set(ctx, c.key(token), raw, ttl).Err()
}
