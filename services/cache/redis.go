package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"nasdaq_screener/config"
)

const (
	redisKeyPrefix = "screener:cache:"
	redisTagPrefix = "screener:tag:"
	redisGenPrefix = "screener:gen:"
)

// RedisStore keeps entries as plain keys and each tag as a set of entry keys
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, cfg config.CacheConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}
	return value, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	if ttl < 0 {
		ttl = 0
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, redisKeyPrefix+key, value, ttl)
	for _, tag := range tags {
		tagKey := redisTagPrefix + tag
		pipe.SAdd(ctx, tagKey, key)
		if ttl > 0 {
			// the tag set must outlive its newest member
			pipe.Expire(ctx, tagKey, ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Invalidate(ctx context.Context, tag string) error {
	tagKey := redisTagPrefix + tag
	keys, err := r.client.SMembers(ctx, tagKey).Result()
	if err != nil {
		return fmt.Errorf("redis smembers failed: %w", err)
	}

	del := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		del = append(del, redisKeyPrefix+key)
	}
	del = append(del, tagKey)

	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, redisGenPrefix+tag)
	pipe.Del(ctx, del...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis invalidate failed: %w", err)
	}
	return nil
}

// Generation sums the invalidation counters of tags; unknown tags count zero
func (r *RedisStore) Generation(ctx context.Context, tags ...string) (uint64, error) {
	if len(tags) == 0 {
		return 0, nil
	}
	keys := make([]string, len(tags))
	for i, tag := range tags {
		keys[i] = redisGenPrefix + tag
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis mget failed: %w", err)
	}
	var sum uint64
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid generation for %s: %w", tags[i], err)
		}
		sum += n
	}
	return sum, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
