package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"priskombo/internal/basket"
)

type RedisBasketRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisBasketRepository(client *redis.Client, ttl time.Duration) *RedisBasketRepository {
	return &RedisBasketRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisBasketRepository) key(sessionID string) string {
	return fmt.Sprintf("%s:%s", basket.StorageKey, sessionID)
}

func (r *RedisBasketRepository) Load(ctx context.Context, sessionID string) (*basket.Basket, error) {
	data, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return basket.New(sessionID), nil
	}
	if err != nil {
		return nil, err
	}

	var b basket.Basket
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Save writes the basket and refreshes its TTL.
func (r *RedisBasketRepository) Save(ctx context.Context, b *basket.Basket) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(b.SessionID), data, r.ttl).Err()
}

func (r *RedisBasketRepository) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, r.key(sessionID)).Err()
}

func (r *RedisBasketRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
