package localstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// devicePrefix namespaces every device's keys in the shared Redis database.
const devicePrefix = "storefront:device:"

// RedisStore keeps the values of one device in Redis under a per-device prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

// Set implements Store. Values do not expire.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// RedisFactory hands out RedisStores sharing one client.
type RedisFactory struct {
	client *redis.Client
}

// NewRedisFactory creates a factory over client.
func NewRedisFactory(client *redis.Client) *RedisFactory {
	return &RedisFactory{client: client}
}

// ForDevice implements Factory.
func (f *RedisFactory) ForDevice(deviceID string) (Store, error) {
	if !validDeviceID(deviceID) {
		return nil, ErrInvalidDeviceID
	}
	return &RedisStore{client: f.client, prefix: devicePrefix + deviceID + ":"}, nil
}

// NewRedisClient connects to addr and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}
