package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "sellhub:idempotency:"
	pendingMarker = "pending"
)

// RedisStore shares idempotency keys between server instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redisURL and checks the server answers.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Reserve(ctx context.Context, key string) (uint, error) {
	k := keyPrefix + key
	ok, err := r.client.SetNX(ctx, k, pendingMarker, r.ttl).Result()
	if err != nil {
		return 0, fmt.Errorf("reserve key: %w", err)
	}
	if ok {
		return 0, nil
	}
	val, err := r.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		ok, err = r.client.SetNX(ctx, k, pendingMarker, r.ttl).Result()
		if err != nil {
			return 0, fmt.Errorf("reserve key: %w", err)
		}
		if ok {
			return 0, nil
		}
		return 0, ErrInProgress
	}
	if err != nil {
		return 0, fmt.Errorf("read key: %w", err)
	}
	return parseStored(val)
}

func (r *RedisStore) Complete(ctx context.Context, key string, orderID uint) error {
	if err := r.client.Set(ctx, keyPrefix+key, strconv.FormatUint(uint64(orderID), 10), r.ttl).Err(); err != nil {
		return fmt.Errorf("complete key: %w", err)
	}
	return nil
}

// releaseScript deletes the key only while it still holds the pending marker.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *RedisStore) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, r.client, []string{keyPrefix + key}, pendingMarker).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release key: %w", err)
	}
	return nil
}

// parseStored turns a stored value into Reserve's result.
func parseStored(val string) (uint, error) {
	if val == pendingMarker {
		return 0, ErrInProgress
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("corrupt idempotency entry %q", val)
	}
	return uint(id), nil
}
