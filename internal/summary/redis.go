package summary

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// tombstone is larger than any real version.
const tombstone = "1000000000000000000"

var putScript = redis.NewScript(`
local floor = tonumber(redis.call('HGET', KEYS[1], 'floor') or '0')
local cur = tonumber(redis.call('HGET', KEYS[1], 'version') or '0')
local v = tonumber(ARGV[1])
if v < floor or v < cur then
  return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'text', ARGV[2], 'insufficient', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

var invalidateScript = redis.NewScript(`
local floor = tonumber(redis.call('HGET', KEYS[1], 'floor') or '0')
local v = tonumber(ARGV[1])
if v > floor then
  floor = v
  redis.call('HSET', KEYS[1], 'floor', ARGV[1])
end
local cur = tonumber(redis.call('HGET', KEYS[1], 'version') or '0')
if cur < floor then
  redis.call('HDEL', KEYS[1], 'version', 'text', 'insufficient')
end
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

// RedisCache shares summaries between instances. Each document is one hash
// holding floor, version, text and insufficient.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{client: client, ttl: ttl}
}

func key(docID string) string {
	return fmt.Sprintf("summary:%s", docID)
}

func (c *RedisCache) Get(ctx context.Context, docID string, version int64) (Result, bool, error) {
	vals, err := c.client.HMGet(ctx, key(docID), "floor", "version", "text", "insufficient").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Result{}, false, nil
		}
		return Result{}, false, fmt.Errorf("read summary cache: %w", err)
	}

	floor := parseInt(vals[0])
	cached := parseInt(vals[1])
	text, _ := vals[2].(string)
	if vals[1] == nil || cached != version || version < floor {
		return Result{}, false, nil
	}
	return Result{Text: text, Insufficient: vals[3] == "1", Version: version}, true, nil
}

func (c *RedisCache) Put(ctx context.Context, docID string, version int64, r Result) error {
	insufficient := "0"
	if r.Insufficient {
		insufficient = "1"
	}
	err := putScript.Run(ctx, c.client, []string{key(docID)},
		version, r.Text, insufficient, c.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("write summary cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, docID string, version int64) error {
	err := invalidateScript.Run(ctx, c.client, []string{key(docID)}, version, c.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("invalidate summary cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Drop(ctx context.Context, docID string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key(docID))
	pipe.HSet(ctx, key(docID), "floor", tombstone)
	pipe.PExpire(ctx, key(docID), c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("drop summary cache: %w", err)
	}
	return nil
}

func parseInt(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
