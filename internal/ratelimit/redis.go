package ratelimit

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// takeScript runs the fixed-window decision on the Redis server so concurrent
// instances cannot both admit the last slot. Returns {allowed, count, resetMs}.
var takeScript = redis.NewScript(`
local max = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call('HMGET', KEYS[1], 'count', 'reset')
local count = tonumber(data[1])
local reset = tonumber(data[2])

if count == nil or reset == nil or now >= reset then
	reset = now + window
	redis.call('HSET', KEYS[1], 'count', 1, 'reset', reset)
	redis.call('PEXPIREAT', KEYS[1], reset)
	return {1, 1, reset}
end

if count < max then
	count = redis.call('HINCRBY', KEYS[1], 'count', 1)
	return {1, count, reset}
end

return {0, count, reset}
`)

// DefaultRedisPrefix namespaces rate-limit keys in a shared Redis.
const DefaultRedisPrefix = "bastion:rl"

// RedisStore keeps records in Redis so every server instance shares the same
// counts. Keys are hashed; raw IPs and user ids never reach Redis.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	policy string
}

// NewRedisStore creates the store for one policy.
func NewRedisStore(client redis.UniversalClient, prefix, policy string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, policy: policy}
}

// RedisStoreFactory returns a factory binding each policy to its own key space.
func RedisStoreFactory(client redis.UniversalClient, prefix string) StoreFactory {
	return func(policy string) CounterStore {
		return NewRedisStore(client, prefix, policy)
	}
}

func (s *RedisStore) redisKey(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return s.prefix + ":" + s.policy + ":" + hex.EncodeToString(sum[:])
}

func (s *RedisStore) Take(ctx context.Context, key string, max int, window time.Duration, now time.Time) (Record, bool, error) {
	res, err := takeScript.Run(ctx, s.client, []string{s.redisKey(key)},
		max, window.Milliseconds(), now.UnixMilli()).Int64Slice()
	if err != nil {
		return Record{}, false, fmt.Errorf("rate limit take: %w", err)
	}
	if len(res) != 3 {
		return Record{}, false, fmt.Errorf("rate limit take: unexpected reply length %d", len(res))
	}

	return Record{
		Key:           key,
		Count:         int(res[1]),
		WindowResetAt: time.UnixMilli(res[2]),
	}, res[0] == 1, nil
}

func (s *RedisStore) Get(ctx context.Context, key string, now time.Time) (Record, bool, error) {
	vals, err := s.client.HMGet(ctx, s.redisKey(key), "count", "reset").Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("rate limit get: %w", err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return Record{}, false, nil
	}

	count, err := parseRedisInt(vals[0])
	if err != nil {
		return Record{}, false, fmt.Errorf("rate limit get: parse count: %w", err)
	}
	reset, err := parseRedisInt(vals[1])
	if err != nil {
		return Record{}, false, fmt.Errorf("rate limit get: parse reset: %w", err)
	}

	rec := Record{Key: key, Count: int(count), WindowResetAt: time.UnixMilli(reset)}
	if rec.Expired(now) {
		return Record{}, false, nil
	}
	return rec, true, nil
}

func parseRedisInt(v any) (int64, error) {
	str, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected type %T", v)
	}
	return strconv.ParseInt(str, 10, 64)
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("rate limit reset: %w", err)
	}
	return nil
}
