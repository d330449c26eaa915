package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/phenrril/storefront/internal/domain"
)

const DefaultTTL = 7 * 24 * time.Hour

// Redis mirrors each holder's cart as one JSON value that expires after a
// week of inactivity.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedis(client redis.Cmdable, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func key(holder string) string { return "cart:" + holder }

func (r *Redis) Load(ctx context.Context, holder string) ([]domain.CartItem, error) {
	raw, err := r.client.Get(ctx, key(holder)).Result()
	if errors.Is(err, redis.Nil) {
		return []domain.CartItem{}, nil
	}
	if err != nil {
		return nil, err
	}
	var items []domain.CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Redis) Save(ctx context.Context, holder string, items []domain.CartItem) error {
	if len(items) == 0 {
		return r.Clear(ctx, holder)
	}
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key(holder), string(b), r.ttl).Err()
}

func (r *Redis) Clear(ctx context.Context, holder string) error {
	return r.client.Del(ctx, key(holder)).Err()
}
