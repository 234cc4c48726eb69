package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/cart-recovery/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	cartKey    = "cart:snapshot"
	sessionKey = "cart:session-id"
)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// RedisStore keeps the snapshot under fixed keys with no TTL: the snapshot
// lives for the life of the device profile, not for a cache window.
type RedisStore struct {
	client *redis.Client
}

func (r *RedisStore) Load(ctx context.Context) ([]domain.CartLine, error) {
	data, err := r.client.Get(ctx, cartKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var lines []domain.CartLine
	if err2 := json.Unmarshal(data, &lines); err2 != nil {
		return nil, fmt.Errorf("unmarshal snapshot failed: %w", err2)
	}

	return lines, nil
}

func (r *RedisStore) Save(ctx context.Context, lines []domain.CartLine) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("marshal snapshot failed: %w", err)
	}

	if errSet := r.client.Set(ctx, cartKey, string(data), 0).Err(); errSet != nil {
		return fmt.Errorf("redis set failed: %w", errSet)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, cartKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisStore) LoadSessionID(ctx context.Context) (string, error) {
	id, err := r.client.Get(ctx, sessionKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoSnapshot
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return id, nil
}

func (r *RedisStore) SaveSessionID(ctx context.Context, id string) error {
	if err := r.client.Set(ctx, sessionKey, id, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
