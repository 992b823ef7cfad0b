package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultWindowKeyPrefix = "signin:ratelimit:"

// RedisWindowStore keeps each window as a sorted set scored by unix microseconds,
// so several service instances share the same request log.
type RedisWindowStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisWindowStore expires idle keys after ttl, which should be at least the rate limit window
func NewRedisWindowStore(client *redis.Client, ttl time.Duration) *RedisWindowStore {
	return &RedisWindowStore{
		client: client,
		prefix: defaultWindowKeyPrefix,
		ttl:    ttl,
	}
}

func (s *RedisWindowStore) redisKey(key string) string {
	return s.prefix + key
}

func (s *RedisWindowStore) Get(ctx context.Context, key string) ([]time.Time, error) {
	members, err := s.client.ZRangeWithScores(ctx, s.redisKey(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read rate limit window: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	out := make([]time.Time, len(members))
	for i, m := range members {
		out[i] = time.UnixMicro(int64(m.Score))
	}
	return out, nil
}

// Set rewrites the window atomically. An empty slice removes the key.
func (s *RedisWindowStore) Set(ctx context.Context, key string, timestamps []time.Time) error {
	if len(timestamps) == 0 {
		return s.Delete(ctx, key)
	}

	rk := s.redisKey(key)
	members := make([]redis.Z, len(timestamps))
	for i, ts := range timestamps {
		us := ts.UnixMicro()
		// index keeps members unique when two requests share a timestamp
		members[i] = redis.Z{Score: float64(us), Member: fmt.Sprintf("%d-%d", us, i)}
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, rk)
		pipe.ZAdd(ctx, rk, members...)
		if s.ttl > 0 {
			pipe.PExpire(ctx, rk, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write rate limit window: %w", err)
	}
	return nil
}

func (s *RedisWindowStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete rate limit window: %w", err)
	}
	return nil
}

// Range walks the keyspace with SCAN under the store prefix
func (s *RedisWindowStore) Range(ctx context.Context, fn func(key string) bool) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if !fn(strings.TrimPrefix(iter.Val(), s.prefix)) {
			return nil
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan rate limit windows: %w", err)
	}
	return nil
}
