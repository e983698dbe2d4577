package localstate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces local state in a shared Redis.
const KeyPrefix = "garderoba:local:"

// Redis is a Store kept in Redis under one key prefix per device, so state
// survives server restarts.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis returns the Store for device.
func NewRedis(client *redis.Client, device string) *Redis {
	return &Redis{client: client, prefix: KeyPrefix + DeviceID(device) + ":"}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *Redis) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// RedisDevices hands out Redis stores sharing one client.
type RedisDevices struct {
	Client *redis.Client
}

func (d RedisDevices) Device(id string) Store {
	return NewRedis(d.Client, id)
}
