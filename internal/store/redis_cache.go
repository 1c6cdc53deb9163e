package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/go-redirector/internal/redirect"
)

// Entries are hashes holding the payload and its sliding window in
// milliseconds. Keys that are not hashes read back as an empty payload so the
// resolver discards them.
var slidingGet = redis.NewScript(`
local t = redis.call('TYPE', KEYS[1]).ok
if t == 'none' then
	return false
end
if t ~= 'hash' then
	return ''
end
local v = redis.call('HMGET', KEYS[1], 'data', 'sld')
if not v[1] then
	return ''
end
local sld = tonumber(v[2])
if sld and sld > 0 then
	redis.call('PEXPIRE', KEYS[1], sld)
end
return v[1]
`)

// RedisCache is a redis.Client backed redirect.Cache with sliding expiration.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a Redis cache. prefix namespaces keys per instance.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	res, err := slidingGet.Run(ctx, r.client, []string{r.prefix + key}).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redirect.ErrCacheMiss
		}

		return nil, err
	}

	return []byte(res), nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	fullKey := r.prefix + key

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, fullKey)
	pipe.HSet(ctx, fullKey, map[string]interface{}{
		"data": value,
		"sld":  ttl.Milliseconds(),
	})

	if ttl > 0 {
		pipe.PExpire(ctx, fullKey, ttl)
	}

	_, err := pipe.Exec(ctx)

	return err
}

func (r *RedisCache) Remove(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// Shutdown is a no-op for RedisCache (client managed externally).
func (r *RedisCache) Shutdown() error {
	return nil
}

var _ redirect.Cache = (*RedisCache)(nil)
