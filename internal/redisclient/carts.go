package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"energy-store/internal/cart"

	"github.com/go-redis/redis/v8"
)

// CartStore keeps session carts in Redis as JSON with a sliding TTL
type CartStore struct {
	client *Client
	ttl    time.Duration
}

var _ cart.Store = (*CartStore)(nil)

// NewCartStore creates a Redis-backed cart store
func NewCartStore(client *Client, ttl time.Duration) *CartStore {
	return &CartStore{client: client, ttl: ttl}
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}

// Load returns the session cart, or an empty cart when none is stored
func (s *CartStore) Load(ctx context.Context, sessionID string) (*cart.Cart, error) {
	raw, err := s.client.rdb.Get(ctx, cartKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return cart.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	var items []cart.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return cart.New(items...), nil
}

// Save stores the cart; an empty cart deletes the key
func (s *CartStore) Save(ctx context.Context, sessionID string, c *cart.Cart) error {
	if c.IsEmpty() {
		return s.Delete(ctx, sessionID)
	}

	raw, err := json.Marshal(c.Items())
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	return s.client.rdb.Set(ctx, cartKey(sessionID), raw, s.ttl).Err()
}

// Delete removes the session cart
func (s *CartStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.rdb.Del(ctx, cartKey(sessionID)).Err()
}
