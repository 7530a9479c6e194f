package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the alert cache under a single redis key, for
// deployments where several app instances share one cache.
type RedisStore struct {
	client redis.Cmdable
	key    string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.Cmdable, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// DialRedis creates a client and verifies the connection with a PING.
func DialRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (r *RedisStore) Get(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *RedisStore) Set(ctx context.Context, value []byte) error {
	return r.client.Set(ctx, r.key, value, 0).Err()
}
